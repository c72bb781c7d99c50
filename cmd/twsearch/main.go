package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"unicode/utf8"

	"cloud.google.com/go/storage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	twitter "github.com/anatolykoptev/go-twitter-timeline"
	"github.com/anatolykoptev/go-twitter-timeline/sink"
)

type queryList []string

func (q *queryList) String() string     { return strings.Join(*q, ", ") }
func (q *queryList) Set(v string) error { *q = append(*q, v); return nil }

func main() {
	log.SetFlags(0)

	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("load %s: %v", p, err)
		}
	}

	flags := flag.NewFlagSet("twsearch", flag.ExitOnError)
	var queries queryList
	flags.Var(&queries, "q", "search query (repeatable)")
	var (
		limit       = flags.Int("limit", 100, "max distinct results per query; 0 is unlimited")
		product     = flags.String("product", string(twitter.SearchLatest), "search tab: Latest, Top, People, Photos, Videos")
		adaptive    = flags.Bool("adaptive", false, "use the legacy adaptive search endpoint")
		concurrency = flags.Int("concurrency", 4, "queries run at once")
		retries     = flags.Int("retries", 3, "retries per page")
		outDir      = flags.String("out", "", "write <query>.jsonl files here instead of stdout")
		saveDir     = flags.String("save", env("TWSEARCH_SAVE_DIR", ""), "save raw pages under this directory")
		redisAddr   = flags.String("redis", env("TWSEARCH_REDIS_ADDR", ""), "save raw pages to this redis server")
		gcsBucket   = flags.String("gcs", env("TWSEARCH_GCS_BUCKET", ""), "save raw pages to this GCS bucket")
		proxy       = flags.String("proxy", env("TWSEARCH_PROXY", ""), "proxy URL")
		authToken   = flags.String("auth-token", env("TWITTER_AUTH_TOKEN", ""), "auth_token cookie; guest session when empty")
		ct0         = flags.String("ct0", env("TWITTER_CT0", ""), "ct0 cookie")
		verbose     = flags.Bool("v", false, "debug logging")
		jsonLogs    = flags.Bool("json-logs", false, "log as JSON")
	)
	_ = flags.Parse(os.Args[1:])
	queries = append(queries, flags.Args()...)
	if len(queries) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan os.Signal, 1)
	go func() {
		var n int
		for sig := range ch {
			logger.Warn("caught signal", slog.String("signal", sig.String()))
			if n > 0 {
				os.Exit(2)
			}
			n++
			cancel()
		}
	}()
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	var sinks sink.Multi
	if *saveDir != "" {
		sinks = append(sinks, sink.NewFile(*saveDir, logger))
	}
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		sinks = append(sinks, sink.NewRedis(rdb, sink.RedisOptions{Logger: logger}))
	}
	if *gcsBucket != "" {
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatalf("storage client: %v", err)
		}
		defer gcs.Close()
		sinks = append(sinks, sink.NewGCS(gcs, *gcsBucket, "", logger))
	}

	var session *twitter.Session
	if *authToken != "" {
		session = twitter.NewSession(*authToken, *ct0, "")
	}
	client, err := twitter.NewClient(twitter.ClientConfig{
		Session: session,
		Proxy:   *proxy,
		Logger:  logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	cfg := twitter.Config{
		Retries:     *retries,
		Concurrency: *concurrency,
		Logger:      logger,
	}
	if len(sinks) > 0 {
		cfg.Sink = sinks
	}

	qs := make([]twitter.Query, 0, len(queries))
	for _, raw := range queries {
		if *adaptive {
			qs = append(qs, twitter.AdaptiveSearchQuery(raw, raw, *limit))
			continue
		}
		qs = append(qs, twitter.SearchQuery(raw, raw, twitter.SearchProduct(*product), *limit))
	}

	results, err := twitter.NewOrchestrator(client, cfg).Run(ctx, qs...)
	if err != nil {
		log.Fatal(err)
	}

	for _, q := range queries {
		if err := writeResult(*outDir, results[q]); err != nil {
			log.Fatal(err)
		}
	}
	printSummary(queries, results)
}

type record struct {
	Query   string `json:"query"`
	Kind    string `json:"kind"`
	EntryID string `json:"entry_id"`
	Data    any    `json:"data"`
}

func writeResult(dir string, res *twitter.Result) error {
	out := os.Stdout
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		name := strings.NewReplacer("/", "_", " ", "_").Replace(res.Query) + ".jsonl"
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	for _, e := range res.Entries {
		if err := enc.Encode(record{
			Query:   res.Query,
			Kind:    e.Kind.String(),
			EntryID: e.EntryID,
			Data:    e.Entity(),
		}); err != nil {
			return fmt.Errorf("write %s: %w", res.Query, err)
		}
	}
	return nil
}

func printSummary(queries []string, results map[string]*twitter.Result) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"query", "posts", "users", "tombstones", "pages", "outcome", "error"})
	for _, q := range slices.Sorted(slices.Values(queries)) {
		res := results[q]
		var posts, users, tombs int
		for _, e := range res.Entries {
			switch e.Kind {
			case twitter.EntryPost:
				posts++
			case twitter.EntryUser:
				users++
			case twitter.EntryTombstone:
				tombs++
			}
		}
		errText := ""
		if res.Err != nil {
			errText = truncate(res.Err.Error(), 60)
		}
		t.AppendRow(table.Row{q, posts, users, tombs, res.PageCount, res.Outcome.String(), errText})
	}
	fmt.Fprintln(os.Stderr, t.Render())
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
