package twitter

import (
	"crypto/rand"
	"encoding/hex"
	"maps"
	"strings"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// defaultUserAgent is the fallback User-Agent when the session has none.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ct0MaxAge is the maximum age of a ct0 token before proactive rotation.
const ct0MaxAge = 4 * time.Hour

// Session holds the credentials a request is signed with. Logging in is
// out of scope: callers obtain auth_token and ct0 elsewhere, or fall back
// to a guest token. A Session is safe for concurrent use.
type Session struct {
	mu             sync.Mutex
	authToken      string
	ct0            string
	userAgent      string
	guestToken     string
	ct0RefreshedAt time.Time
}

// NewSession returns an authenticated session. An empty ct0 is generated.
func NewSession(authToken, ct0, userAgent string) *Session {
	if ct0 == "" {
		ct0 = GenerateCT0()
	}
	return &Session{
		authToken:      authToken,
		ct0:            ct0,
		userAgent:      userAgent,
		ct0RefreshedAt: time.Now(),
	}
}

// NewGuestSession returns an unauthenticated session using guestToken.
func NewGuestSession(guestToken string) *Session {
	return &Session{guestToken: guestToken}
}

// Authenticated reports whether the session carries an auth token.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken != ""
}

// GuestToken returns the current guest token, if any.
func (s *Session) GuestToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestToken
}

// SetGuestToken replaces the guest token.
func (s *Session) SetGuestToken(token string) {
	s.mu.Lock()
	s.guestToken = token
	s.mu.Unlock()
}

// SetCT0 stores a ct0 value returned by the server.
func (s *Session) SetCT0(ct0 string) {
	s.mu.Lock()
	s.ct0 = ct0
	s.ct0RefreshedAt = time.Now()
	s.mu.Unlock()
}

// RotateCT0 replaces ct0 with a freshly generated value.
func (s *Session) RotateCT0() { s.SetCT0(GenerateCT0()) }

// CT0Age returns how long ago ct0 was last set.
func (s *Session) CT0Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.ct0RefreshedAt)
}

// Headers returns a snapshot of the request headers for the session's
// current credentials.
func (s *Session) Headers() map[string]string {
	s.mu.Lock()
	authToken, ct0, ua, gt := s.authToken, s.ct0, s.userAgent, s.guestToken
	s.mu.Unlock()

	if ua == "" {
		ua = defaultUserAgent
	}
	if authToken == "" {
		return guestHeaders(gt, ua)
	}
	return twitterHeaders(authToken, ct0, ua)
}

// twitterHeaders returns the base headers required by Twitter's API for an
// authenticated session.
func twitterHeaders(authToken, ct0, userAgent string) map[string]string {
	h := map[string]string{
		"authorization":             "Bearer " + BearerToken,
		"x-csrf-token":              ct0,
		"x-twitter-active-user":     "yes",
		"x-twitter-auth-type":       "OAuth2Session",
		"x-twitter-client-language": "en",
		"content-type":              "application/json",
		"cookie":                    "auth_token=" + authToken + "; ct0=" + ct0,
		"user-agent":                userAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"accept-encoding":           "gzip, deflate, br",
		"referer":                   "https://twitter.com/",
		"origin":                    "https://twitter.com",
		"sec-fetch-dest":            "empty",
		"sec-fetch-mode":            "cors",
		"sec-fetch-site":            "same-origin",
	}
	if ch := stealth.ClientHintsHeaders(userAgent); ch != nil {
		maps.Copy(h, ch)
	}
	return h
}

// guestHeaders returns headers for unauthenticated (guest token) requests.
func guestHeaders(guestToken, userAgent string) map[string]string {
	h := map[string]string{
		"authorization":             "Bearer " + BearerToken,
		"x-twitter-active-user":     "yes",
		"x-twitter-client-language": "en",
		"content-type":              "application/json",
		"user-agent":                userAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"accept-encoding":           "gzip, deflate, br",
		"referer":                   "https://twitter.com/",
		"origin":                    "https://twitter.com",
	}
	if guestToken != "" {
		h["x-guest-token"] = guestToken
	}
	return h
}

// twitterHeaderOrder is the Twitter-specific header order for TLS fingerprint consistency.
var twitterHeaderOrder = []string{
	"authorization",
	"content-type",
	"x-csrf-token",
	"x-guest-token",
	"x-twitter-active-user",
	"x-twitter-auth-type",
	"x-twitter-client-language",
	"x-client-transaction-id",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
	"cookie",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
}

// GenerateCT0 generates a random 32-byte hex string for use as a ct0 CSRF token.
func GenerateCT0() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", 64)
	}
	return hex.EncodeToString(b)
}

// extractCT0FromHeaders parses the ct0 value from a set-cookie response header.
func extractCT0FromHeaders(headers map[string]string) string {
	for part := range strings.SplitSeq(headers["set-cookie"], ";") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), "ct0="); ok && v != "" {
			return v
		}
	}
	return ""
}
