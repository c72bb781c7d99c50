package twitter

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	body    string
	headers map[string]string
	status  int
	err     error
}

type request struct {
	method  string
	url     string
	headers map[string]string
}

// fakeHTTP answers requests from a queue; an empty queue answers 200 with
// an empty search page.
type fakeHTTP struct {
	mu        sync.Mutex
	requests  []request
	responses []response
}

func (f *fakeHTTP) push(rs ...response) { f.responses = append(f.responses, rs...) }

func (f *fakeHTTP) do(method, u string, headers map[string]string) ([]byte, map[string]string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request{method: method, url: u, headers: headers})
	if len(f.responses) == 0 {
		return []byte(searchPage()), nil, 200, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return []byte(r.body), r.headers, r.status, r.err
}

func testClient(t *testing.T, s *Session, f *fakeHTTP, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	rl := ratelimit.DefaultConfig
	rl.RequestsPerWindow = 1000
	cfg := ClientConfig{
		Session:           s,
		RequestsPerSecond: 1000,
		Burst:             10,
		RateLimit:         rl,
		NoJitter:          true,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return newClient(cfg, f.do)
}

func searchParams(t *testing.T) url.Values {
	t.Helper()
	params, err := SearchQuery("q", "golang", SearchLatest, 0).Params("")
	require.NoError(t, err)
	return params
}

func TestClientFetchAuthenticated(t *testing.T) {
	f := &fakeHTTP{}
	f.push(response{body: searchTimelineBody, status: 200, headers: map[string]string{"set-cookie": "ct0=fresh; Path=/"}})
	s := NewSession("tok", "stale", "")

	var calls []bool
	c := testClient(t, s, f, func(cfg *ClientConfig) {
		cfg.MetricsHook = func(endpoint string, success, rateLimited bool) {
			assert.Equal(t, "SearchTimeline", endpoint)
			calls = append(calls, success)
		}
	})

	body, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	require.NoError(t, err)
	assert.Equal(t, searchTimelineBody, string(body))

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "GET", req.method)
	assert.True(t, strings.HasPrefix(req.url, Endpoints["SearchTimeline"].URL()+"?"))
	assert.Contains(t, req.url, "variables=")
	assert.Equal(t, "stale", req.headers["x-csrf-token"])

	assert.Equal(t, "fresh", s.Headers()["x-csrf-token"])
	assert.Equal(t, []bool{true}, calls)
}

func TestClientFetchGuestToken(t *testing.T) {
	f := &fakeHTTP{}
	f.push(response{body: `{"guest_token":"gt-9"}`, status: 200})
	c := testClient(t, nil, f)

	_, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	require.NoError(t, err)
	assert.Equal(t, "gt-9", c.Session().GuestToken())

	require.Len(t, f.requests, 2)
	assert.Equal(t, "POST", f.requests[0].method)
	assert.True(t, strings.HasSuffix(f.requests[0].url, "/1.1/guest/activate.json"))
	assert.Equal(t, "gt-9", f.requests[1].headers["x-guest-token"])

	// The token is reused.
	_, err = c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	require.NoError(t, err)
	assert.Len(t, f.requests, 3)
}

func TestClientFetchRequiresAuth(t *testing.T) {
	f := &fakeHTTP{}
	c := testClient(t, NewGuestSession("gt"), f)

	_, err := c.Fetch(context.Background(), "Followers", nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Empty(t, f.requests)
}

func TestClientFetchUnknownEndpoint(t *testing.T) {
	c := testClient(t, NewGuestSession("gt"), &fakeHTTP{})
	_, err := c.Fetch(context.Background(), "Bookmarks", nil)
	assert.ErrorContains(t, err, "unknown endpoint")
}

func TestClientFetchRateLimited(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	f := &fakeHTTP{}
	f.push(response{status: 429, headers: map[string]string{"x-rate-limit-reset": strconv.FormatInt(reset.Unix(), 10)}})
	c := testClient(t, NewGuestSession("gt"), f)

	_, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.RateLimited())
	assert.Equal(t, 429, fe.Status)
	assert.True(t, fe.RetryAfter.Equal(reset))

	// The endpoint stays blocked locally without another request.
	_, err = c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.RateLimited())
	assert.Len(t, f.requests, 1)
}

func TestClientFetchCSRFRotatesCT0(t *testing.T) {
	f := &fakeHTTP{}
	f.push(response{body: `{"errors":[{"code":353,"message":"This request requires a matching csrf cookie and header."}]}`, status: 403})
	s := NewSession("tok", "old", "")
	c := testClient(t, s, f)

	_, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, errCSRF, fe.Class)
	assert.Equal(t, 403, fe.Status)
	assert.NotEqual(t, "old", s.Headers()["x-csrf-token"])
}

func TestClientFetchGuestTokenRejected(t *testing.T) {
	f := &fakeHTTP{}
	f.push(response{body: `{"errors":[{"code":32,"message":"Could not authenticate you."}]}`, status: 200})
	c := testClient(t, NewGuestSession("expired"), f)

	_, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, errAuthExpired, fe.Class)
	assert.Empty(t, c.Session().GuestToken())
}

func TestClientFetchInternalErrorWithData(t *testing.T) {
	f := &fakeHTTP{}
	body := `{"data":{"search_by_raw_query":{}},"errors":[{"code":131,"message":"Internal error"}]}`
	f.push(
		response{body: body, status: 200},
		response{body: `{"errors":[{"code":131}]}`, status: 200},
	)
	c := testClient(t, NewGuestSession("gt"), f)

	got, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	_, err = c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, errInternal, fe.Class)
}

func TestClientFetchFailures(t *testing.T) {
	reset := errors.New("connection reset by peer")
	tests := []struct {
		name   string
		resp   response
		class  errorClass
		status int
	}{
		{"transport", response{err: reset}, errTransport, 0},
		{"server error", response{body: "upstream", status: 502}, errHTTP, 502},
		{"not json", response{body: "<html>", status: 200}, errMalformed, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeHTTP{}
			f.push(tt.resp)
			c := testClient(t, NewGuestSession("gt"), f)

			_, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.class, fe.Class)
			assert.Equal(t, tt.status, fe.Status)
			assert.Equal(t, "SearchTimeline", fe.Endpoint)
			assert.True(t, retryable(err))
		})
	}
}

func TestClientFetchTransactionID(t *testing.T) {
	f := &fakeHTTP{}
	var gotPath string
	c := testClient(t, NewGuestSession("gt"), f, func(cfg *ClientConfig) {
		cfg.TransactionID = func(method, path string) (string, error) {
			gotPath = path
			return "tx-" + method, nil
		}
	})

	_, err := c.Fetch(context.Background(), "SearchTimeline", searchParams(t))
	require.NoError(t, err)
	ep := Endpoints["SearchTimeline"]
	assert.Equal(t, "/i/api/graphql/"+ep.ID+"/SearchTimeline", gotPath)
	assert.Equal(t, "tx-GET", f.requests[0].headers["x-client-transaction-id"])
}

func TestClientFetchCanceled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newClient(ClientConfig{
		Session:           NewGuestSession("gt"),
		RequestsPerSecond: 1000,
		NoJitter:          true,
	}, func(string, string, map[string]string) ([]byte, map[string]string, int, error) {
		<-release
		return nil, nil, 200, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, "SearchTimeline", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHasResponseData(t *testing.T) {
	assert.True(t, hasResponseData([]byte(`{"data":{"x":1}}`)))
	assert.False(t, hasResponseData([]byte(`{"data":null}`)))
	assert.False(t, hasResponseData([]byte(`{"errors":[]}`)))
}
