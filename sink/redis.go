package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis appends pages to one list per query under <prefix>:<query>.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	maxLen int64
	logger *slog.Logger
}

// RedisOptions configures a Redis sink.
type RedisOptions struct {
	// Prefix namespaces the list keys. Default: "twitter:pages".
	Prefix string
	// TTL expires a query's list after its last write; 0 keeps it forever.
	TTL time.Duration
	// MaxLen keeps only the newest MaxLen pages per query; 0 is unbounded.
	MaxLen int64
	Logger *slog.Logger
}

// NewRedis returns a sink writing through client.
func NewRedis(client redis.Cmdable, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "twitter:pages"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Redis{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		maxLen: opts.MaxLen,
		logger: opts.Logger,
	}
}

func (r *Redis) key(query string) string {
	return r.prefix + ":" + safeName(query)
}

// SavePage implements twitter.PageSink.
func (r *Redis) SavePage(ctx context.Context, query string, page []byte) error {
	key := r.key(query)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, page)
		if r.maxLen > 0 {
			pipe.LTrim(ctx, key, -r.maxLen, -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	r.logger.Debug("page saved to redis", slog.String("key", key), slog.Int("bytes", len(page)))
	return nil
}

// Pages returns the stored pages of query, oldest first.
func (r *Redis) Pages(ctx context.Context, query string) ([][]byte, error) {
	vals, err := r.client.LRange(ctx, r.key(query), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", r.key(query), err)
	}
	pages := make([][]byte, len(vals))
	for i, v := range vals {
		pages[i] = []byte(v)
	}
	return pages, nil
}
