package twitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/emirpasic/gods/sets/hashset"
)

// Fetcher retrieves one raw page. Implementations must be safe for
// concurrent use; Client is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, endpoint string, params url.Values) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return f(ctx, endpoint, params)
}

// PageSink persists raw pages. Failures are logged and never stop a query.
type PageSink interface {
	SavePage(ctx context.Context, query string, page []byte) error
}

// Outcome is how a query run ended.
type Outcome int

const (
	// OutcomeComplete means the timeline ran out of pages.
	OutcomeComplete Outcome = iota
	// OutcomeLimit means Query.Limit distinct entities were collected.
	OutcomeLimit
	// OutcomeRetriesExhausted means a page kept failing; Result holds
	// everything collected before it.
	OutcomeRetriesExhausted
	// OutcomeCanceled means the context ended first.
	OutcomeCanceled
	// OutcomeFailed means a non-retryable error, such as an unavailable
	// user envelope or an unknown endpoint.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeLimit:
		return "limit"
	case OutcomeRetriesExhausted:
		return "retries_exhausted"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeFailed:
		return "failed"
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Result is everything one query run produced.
type Result struct {
	Query string
	// Entries holds distinct content entries in fetch order.
	Entries []Entry
	// Pages holds raw bodies when Config.KeepPages is set.
	Pages [][]byte
	// PageCount is the number of pages fetched successfully.
	PageCount int
	// Cursor is the last bottom cursor seen; it resumes the walk.
	Cursor  string
	Outcome Outcome
	Err     error
}

// Entities returns the content payload of each entry.
func (r *Result) Entities() []Entity {
	out := make([]Entity, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Entity())
	}
	return out
}

type driverState int

const (
	stateInit driverState = iota
	stateFetching
	stateClassifying
	stateDeciding
	stateDone
	stateFailed
)

func (s driverState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateFetching:
		return "fetching"
	case stateClassifying:
		return "classifying"
	case stateDeciding:
		return "deciding"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Driver walks the pages of one query at a time. A Driver holds no
// per-run state and may run several queries concurrently.
type Driver struct {
	fetcher Fetcher
	cfg     Config
}

// NewDriver returns a driver fetching through f.
func NewDriver(f Fetcher, cfg Config) *Driver {
	cfg.defaults()
	return &Driver{fetcher: f, cfg: cfg}
}

// run is the mutable state of one Run call.
type run struct {
	q       Query
	log     *slog.Logger
	cls     *Classifier
	seen    *hashset.Set
	res     *Result
	cursor  string
	scan    bool
	page    *Page
	pending sync.WaitGroup
}

// Run walks q until it completes, hits its limit, exhausts retries on a
// page, or ctx ends. It never returns nil.
func (d *Driver) Run(ctx context.Context, q Query) *Result {
	r := &run{
		q:    q,
		log:  d.cfg.Logger.With(slog.String("query", q.Name)),
		seen: hashset.New(),
		res:  &Result{Query: q.Name},
	}
	resolver := &Resolver{MaxDepth: d.cfg.MaxDepth, Logger: r.log}
	r.cls = NewClassifier(resolver, 0, d.cfg.Hooks)
	defer r.pending.Wait()

	state := stateInit
	for state != stateDone && state != stateFailed {
		next := d.step(ctx, r, state)
		r.log.Debug("driver transition", slog.String("from", state.String()), slog.String("to", next.String()))
		state = next
	}

	switch r.res.Outcome {
	case OutcomeComplete, OutcomeLimit:
		r.log.Info("query finished",
			slog.String("outcome", r.res.Outcome.String()),
			slog.Int("entries", len(r.res.Entries)),
			slog.Int("pages", r.res.PageCount))
	default:
		r.log.Warn("query stopped",
			slog.String("outcome", r.res.Outcome.String()),
			slog.Int("entries", len(r.res.Entries)),
			slog.Int("pages", r.res.PageCount),
			slog.Any("error", r.res.Err))
	}
	return r.res
}

func (d *Driver) step(ctx context.Context, r *run, state driverState) driverState {
	switch state {
	case stateInit:
		if _, err := r.q.Params(""); err != nil {
			return d.fail(r, OutcomeFailed, err)
		}
		// Params already validated the endpoint name.
		ep, _ := LookupEndpoint(r.q.Endpoint)
		r.scan = !ep.GraphQL()
		return stateFetching

	case stateFetching:
		page, err := d.fetchPage(ctx, r)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return d.fail(r, OutcomeCanceled, ctx.Err())
			case errors.Is(err, ErrEmptyPage) && r.res.PageCount > 0:
				// Trailing empty pages are how some timelines end.
				r.res.Outcome = OutcomeComplete
				return stateDone
			case errors.Is(err, ErrRetriesExhausted):
				return d.fail(r, OutcomeRetriesExhausted, err)
			}
			return d.fail(r, OutcomeFailed, err)
		}
		r.page = page
		r.res.PageCount++
		if d.cfg.KeepPages {
			r.res.Pages = append(r.res.Pages, page.Raw())
		}
		d.save(ctx, r, page.Raw())
		return stateClassifying

	case stateClassifying:
		added, resolved := 0, 0
		for e := range r.cls.Page(r.page) {
			if !e.IsContent() {
				continue
			}
			resolved++
			key := dedupeKey(e)
			if r.seen.Contains(key) {
				continue
			}
			r.seen.Add(key)
			r.res.Entries = append(r.res.Entries, e)
			added++
			if r.q.Limit > 0 && r.seen.Size() >= r.q.Limit {
				break
			}
		}
		if d.cfg.Hooks.OnPage != nil {
			d.cfg.Hooks.OnPage(r.q.Name, r.res.PageCount, added)
		}
		r.log.Info("page classified",
			slog.Int("page", r.res.PageCount),
			slog.Int("new", added),
			slog.Int("total", len(r.res.Entries)))
		if resolved > 0 && added == 0 && r.res.PageCount > 1 {
			// Converged: the service is replaying results we already have.
			// A page whose entries all failed to resolve is not convergence.
			r.res.Outcome = OutcomeComplete
			return stateDone
		}
		return stateDeciding

	case stateDeciding:
		if r.q.Limit > 0 && r.seen.Size() >= r.q.Limit {
			r.res.Outcome = OutcomeLimit
			return stateDone
		}
		next := nextCursor(r.page, r.scan)
		r.page = nil
		if next == "" || next == r.cursor {
			r.res.Outcome = OutcomeComplete
			return stateDone
		}
		r.cursor = next
		r.res.Cursor = next
		if ctx.Err() != nil {
			return d.fail(r, OutcomeCanceled, ctx.Err())
		}
		return stateFetching
	}
	return stateFailed
}

func (d *Driver) fail(r *run, o Outcome, err error) driverState {
	r.res.Outcome = o
	r.res.Err = err
	return stateFailed
}

// fetchPage fetches and parses the page at r.cursor, retrying transient
// failures with exponential backoff.
func (d *Driver) fetchPage(ctx context.Context, r *run) (*Page, error) {
	params, err := r.q.Params(r.cursor)
	if err != nil {
		return nil, err
	}

	var (
		page     *Page
		lastErr  error
		failures int
	)
	attempt := func() error {
		fctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()

		p, err := d.fetchOnce(fctx, r.q.Endpoint, params)
		if err != nil {
			failures++
			lastErr = err
			if !retryable(err) {
				return retry.Unrecoverable(err)
			}
			return err
		}
		page = p
		return nil
	}

	err = retry.Do(attempt,
		retry.Attempts(uint(d.cfg.Retries+1)),
		retry.Delay(d.cfg.BaseDelay),
		retry.MaxDelay(d.cfg.MaxDelay),
		retry.MaxJitter(d.cfg.MaxJitter),
		retry.Context(ctx),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			delay := d.backoff(failures - 1)
			r.log.Warn("page fetch failed, retrying",
				slog.Int("attempt", failures),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr))
			if d.cfg.Hooks.OnRetry != nil {
				d.cfg.Hooks.OnRetry(r.q.Name, uint(failures), lastErr)
			}
			return delay
		}),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
	)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !retryable(lastErr) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, failures, lastErr)
}

func (d *Driver) fetchOnce(ctx context.Context, endpoint string, params url.Values) (*Page, error) {
	body, err := d.fetcher.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	p, err := ParsePage(body)
	if err != nil {
		return nil, err
	}
	if p.ContentCount() == 0 {
		return nil, ErrEmptyPage
	}
	return p, nil
}

// backoff returns the delay before retry n (0-based):
// BaseDelay·2^n plus up to MaxJitter, capped at MaxDelay.
func (d *Driver) backoff(n int) time.Duration {
	n = max(n, 0)
	delay := d.cfg.BaseDelay
	for range n {
		if delay >= d.cfg.MaxDelay {
			break
		}
		delay *= 2
	}
	if d.cfg.MaxJitter > 0 {
		delay += rand.N(d.cfg.MaxJitter)
	}
	return min(delay, d.cfg.MaxDelay)
}

// retryable reports whether a page failure may succeed on another attempt.
// Fetchers outside this package report transport failures as plain errors,
// so anything not known to be permanent is retried.
func retryable(err error) bool {
	switch {
	case IsEntityUnavailable(err), errors.Is(err, ErrAuthRequired), errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (d *Driver) save(ctx context.Context, r *run, body []byte) {
	if d.cfg.Sink == nil {
		return
	}
	r.pending.Go(func() {
		if err := d.cfg.Sink.SavePage(context.WithoutCancel(ctx), r.q.Name, body); err != nil {
			r.log.Warn("save page failed", slog.Any("error", err))
		}
	})
}

// nextCursor returns the bottom cursor of p. Legacy search pages may hide
// it outside any cursor entry, so with scan set the raw document is searched
// for a scroll token as well.
func nextCursor(p *Page, scan bool) string {
	if c, ok := p.Cursors.Get(DirectionBottom); ok {
		return c.Value
	}
	if !scan {
		return ""
	}
	if v, ok := ScanCursor(p.Raw()); ok {
		return v
	}
	return ""
}

// dedupeKey identifies an entity within one run. Tombstones share the post
// namespace so a post and its tombstone count once.
func dedupeKey(e Entry) string {
	id := strconv.FormatUint(e.Entity().EntityID(), 10)
	if e.Kind == EntryUser {
		return "u" + id
	}
	return "p" + id
}
