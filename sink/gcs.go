package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// GCS uploads pages to <prefix>/<query>/<run>/<unix-nanos>.json in a bucket.
// run is a random id fixed per sink, so separate processes never collide.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	run    string
	logger *slog.Logger
	now    func() time.Time
}

// NewGCS returns a sink writing to bucket through client.
func NewGCS(client *storage.Client, bucket, prefix string, logger *slog.Logger) *GCS {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "raw"
	}
	return &GCS{
		client: client,
		bucket: bucket,
		prefix: prefix,
		run:    uuid.NewString(),
		logger: logger,
		now:    time.Now,
	}
}

func (g *GCS) objectKey(query string, ts time.Time) string {
	return path.Join(g.prefix, safeName(query), g.run, strconv.FormatInt(ts.UnixNano(), 10)+".json")
}

// SavePage implements twitter.PageSink.
func (g *GCS) SavePage(ctx context.Context, query string, page []byte) error {
	key := g.objectKey(query, g.now())

	err := retry.Do(
		func() error {
			w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, err := w.Write(page); err != nil {
				w.Close()
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("retrying page upload",
				slog.Uint64("attempt", uint64(n)),
				slog.String("key", key),
				slog.Any("error", err))
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	g.logger.Debug("page uploaded",
		slog.String("bucket", g.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(page)))
	return nil
}

// Pages returns every page stored for query across runs, in key order.
func (g *GCS) Pages(ctx context.Context, query string) ([][]byte, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: path.Join(g.prefix, safeName(query)) + "/",
	})

	var pages [][]byte
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}

		r, err := g.client.Bucket(g.bucket).Object(attrs.Name).NewReader(ctx)
		if err != nil {
			return nil, fmt.Errorf("open storage reader: %w", err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("read from storage: %w", err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}
