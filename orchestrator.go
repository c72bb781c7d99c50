package twitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs many queries concurrently over one shared Fetcher.
type Orchestrator struct {
	driver *Driver
	cfg    Config
}

// NewOrchestrator returns an orchestrator whose drivers fetch through f.
func NewOrchestrator(f Fetcher, cfg Config) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{driver: NewDriver(f, cfg), cfg: cfg}
}

// Run executes every query and waits for all of them. A failing query never
// cancels its siblings; its Result carries the outcome instead. The error is
// non-nil only for invalid input: an empty or duplicate query name.
func (o *Orchestrator) Run(ctx context.Context, queries ...Query) (map[string]*Result, error) {
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		if q.Name == "" {
			return nil, errors.New("query with empty name")
		}
		if _, dup := seen[q.Name]; dup {
			return nil, fmt.Errorf("duplicate query name %q", q.Name)
		}
		seen[q.Name] = struct{}{}
	}

	start := time.Now()
	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(queries))
	)
	// No shared context: one query failing must not cancel the others.
	var g errgroup.Group
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}
	for _, q := range queries {
		g.Go(func() error {
			res := o.driver.Run(ctx, q)
			mu.Lock()
			results[q.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += len(r.Entries)
	}
	o.cfg.Logger.Info("queries finished",
		slog.Int("queries", len(queries)),
		slog.Int("entries", total),
		slog.Duration("elapsed", time.Since(start)))
	return results, nil
}
