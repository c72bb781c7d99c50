package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// doFunc performs one HTTP exchange and returns body, lower-cased response
// headers and status.
type doFunc func(method, url string, headers map[string]string) ([]byte, map[string]string, int, error)

// Client is the browser-fingerprinted HTTP transport. It implements Fetcher.
type Client struct {
	do      doFunc
	session *Session
	limiter *rate.Limiter
	limits  *ratelimit.Limiter
	cfg     ClientConfig
	log     *slog.Logger
}

// NewClient creates a transport client.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.defaults()

	opts := []stealth.ClientOption{
		stealth.WithHeaderOrder(twitterHeaderOrder),
	}
	if cfg.Proxy != "" {
		opts = append(opts, stealth.WithProxy(cfg.Proxy))
		cfg.Logger.Debug("using proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}

	do := func(method, u string, headers map[string]string) ([]byte, map[string]string, int, error) {
		return bc.DoWithHeaderOrder(method, u, headers, nil, twitterHeaderOrder)
	}
	return newClient(cfg, do), nil
}

func newClient(cfg ClientConfig, do doFunc) *Client {
	cfg.defaults()
	s := cfg.Session
	if s == nil {
		s = NewGuestSession("")
	}
	return &Client{
		do:      do,
		session: s,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		limits:  ratelimit.NewLimiter(cfg.RateLimit),
		cfg:     cfg,
		log:     cfg.Logger,
	}
}

// Session returns the session requests are signed with.
func (c *Client) Session() *Session { return c.session }

// Fetch performs one GET against endpoint. Every failure is a *FetchError
// except context cancellation and unknown endpoints.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	ep, err := LookupEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if requiresAuth(endpoint) && !c.session.Authenticated() {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrAuthRequired)
	}

	if c.limits.IsRateLimited(endpoint) || !c.limits.Allow(endpoint) {
		c.recordAPICall(endpoint, false, true)
		return nil, &FetchError{
			Endpoint:   endpoint,
			Class:      errRateLimited,
			RetryAfter: c.limits.AvailableAt(endpoint),
			Err:        errors.New("endpoint rate limited locally"),
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	// Anti-fingerprint jitter
	if !c.cfg.NoJitter {
		if err := stealth.DefaultJitter.Sleep(ctx); err != nil {
			return nil, err
		}
	}

	if c.session.Authenticated() {
		if c.session.CT0Age() > ct0MaxAge {
			c.session.RotateCT0()
			c.log.Info("ct0 rotated (proactive)", slog.String("endpoint", endpoint))
		}
	} else if c.session.GuestToken() == "" {
		token, err := c.acquireGuestToken(ctx)
		if err != nil {
			return nil, &FetchError{Endpoint: endpoint, Class: errAuthExpired, Err: err}
		}
		c.session.SetGuestToken(token)
		c.log.Info("guest token acquired", slog.String("endpoint", endpoint))
	}

	u := ep.URL()
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	body, respHdrs, status, err := c.doCtx(ctx, "GET", u, c.headers("GET", u))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.recordAPICall(endpoint, false, false)
		return nil, &FetchError{Endpoint: endpoint, Class: errTransport, Err: err}
	}

	switch {
	case status == 429:
		until := parseRateLimitReset(respHdrs["x-rate-limit-reset"])
		c.limits.MarkRateLimited(endpoint, until)
		c.recordAPICall(endpoint, false, true)
		return nil, &FetchError{Endpoint: endpoint, Status: status, Class: errRateLimited, RetryAfter: until}

	case status == 401 || status == 403:
		c.recordAPICall(endpoint, false, false)
		class := classifyError(body)
		c.recover(endpoint, class)
		return nil, &FetchError{Endpoint: endpoint, Status: status, Class: class, Err: errors.New(truncateBytes(body, 200))}

	case status != 200:
		c.recordAPICall(endpoint, false, false)
		c.log.Warn("fetch non-200", slog.String("endpoint", endpoint), slog.Int("status", status), slog.String("body", truncateBytes(body, 500)))
		return nil, &FetchError{Endpoint: endpoint, Status: status, Class: errHTTP, Err: errors.New(truncateBytes(body, 200))}
	}

	if !gjson.ValidBytes(body) {
		c.recordAPICall(endpoint, false, false)
		return nil, &FetchError{Endpoint: endpoint, Status: status, Class: errMalformed, Err: ErrMalformedPage}
	}

	// HTTP 200 can still carry error codes in the body.
	switch class := classifyError(body); class {
	case errNone:
	case errInternal:
		if !hasResponseData(body) {
			c.recordAPICall(endpoint, false, false)
			return nil, &FetchError{Endpoint: endpoint, Status: status, Class: class, Err: errors.New("internal error without data")}
		}
		c.log.Debug("error 131 with usable data, treating as success", slog.String("endpoint", endpoint))
	default:
		c.recordAPICall(endpoint, false, class == errBanned)
		c.recover(endpoint, class)
		return nil, &FetchError{Endpoint: endpoint, Status: status, Class: class, Err: errors.New(truncateBytes(body, 200))}
	}

	if ct0 := extractCT0FromHeaders(respHdrs); ct0 != "" && c.session.Authenticated() {
		c.session.SetCT0(ct0)
	}
	c.recordAPICall(endpoint, true, false)
	return body, nil
}

// headers returns the session headers plus the transaction id, if configured.
func (c *Client) headers(method, rawURL string) map[string]string {
	h := c.session.Headers()
	if c.cfg.TransactionID == nil {
		return h
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if txID, err := c.cfg.TransactionID(method, p); err == nil {
		h["x-client-transaction-id"] = txID
	} else {
		c.log.Debug("failed to generate transaction id", slog.Any("error", err))
	}
	return h
}

// recover adjusts the session so the next attempt has a chance to succeed.
func (c *Client) recover(endpoint string, class errorClass) {
	switch class {
	case errCSRF:
		c.log.Warn("CSRF error 353, rotating ct0", slog.String("endpoint", endpoint))
		c.session.RotateCT0()
	case errAuthExpired, errNotAuthorized:
		if !c.session.Authenticated() {
			c.log.Warn("guest token rejected, dropping it", slog.String("endpoint", endpoint))
			c.session.SetGuestToken("")
		}
	case errBanned:
		c.limits.MarkRateLimited(endpoint, time.Now().Add(15*time.Minute))
	}
}

// doCtx runs one exchange, giving up when ctx ends. The underlying request
// is not interrupted; its result is discarded.
func (c *Client) doCtx(ctx context.Context, method, u string, headers map[string]string) ([]byte, map[string]string, int, error) {
	type result struct {
		body   []byte
		hdrs   map[string]string
		status int
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		body, hdrs, status, err := c.do(method, u, headers)
		ch <- result{body, hdrs, status, err}
	}()
	select {
	case r := <-ch:
		return r.body, r.hdrs, r.status, r.err
	case <-ctx.Done():
		return nil, nil, 0, ctx.Err()
	}
}

// getGuestToken activates a fresh guest token.
func (c *Client) getGuestToken(ctx context.Context) (string, error) {
	headers := map[string]string{
		"authorization": "Bearer " + BearerToken,
		"content-type":  "application/json",
		"user-agent":    defaultUserAgent,
	}
	body, _, status, err := c.doCtx(ctx, "POST", twitterAPIURL+"/1.1/guest/activate.json", headers)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", fmt.Errorf("guest token: HTTP %d", status)
	}
	var resp struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.GuestToken == "" {
		return "", errors.New("empty guest token in response")
	}
	return resp.GuestToken, nil
}

// acquireGuestToken fetches a fresh guest token with exponential backoff.
func (c *Client) acquireGuestToken(ctx context.Context) (string, error) {
	backoff := stealth.BackoffConfig{
		InitialWait: 2 * time.Second,
		MaxWait:     60 * time.Second,
		Multiplier:  2.0,
		JitterPct:   0.3,
	}
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff.Duration(attempt)):
			}
		}
		token, err := c.getGuestToken(ctx)
		if err == nil {
			return token, nil
		}
		lastErr = err
		c.log.Warn("guest token acquisition failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return "", fmt.Errorf("acquire guest token after 3 attempts: %w", lastErr)
}

// recordAPICall calls the metrics hook if configured.
func (c *Client) recordAPICall(endpoint string, success, rateLimited bool) {
	if c.cfg.MetricsHook != nil {
		c.cfg.MetricsHook(endpoint, success, rateLimited)
	}
}

// hasResponseData returns true if the JSON body contains a non-null "data" field.
func hasResponseData(body []byte) bool {
	d := gjson.GetBytes(body, "data")
	return d.Exists() && d.Type != gjson.Null
}
