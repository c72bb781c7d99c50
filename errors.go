package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownMediaType is returned for media that is not a photo, video or animated GIF.
	ErrUnknownMediaType = errors.New("unknown media type")
	// ErrIDOverflow is returned for ids that do not fit in 64 unsigned bits.
	ErrIDOverflow = errors.New("id overflows uint64")
	// ErrInvalidID is returned for ids that are not decimal numbers.
	ErrInvalidID = errors.New("invalid id")
	// ErrTimestampFormat is returned for created_at values in an unexpected layout.
	ErrTimestampFormat = errors.New("unexpected timestamp format")
	// ErrDepthExceeded is returned when quoted/retweeted nesting passes Resolver.MaxDepth.
	ErrDepthExceeded = errors.New("post nesting too deep")
	// ErrMissingData is returned when an entry has none of the expected payloads.
	ErrMissingData = errors.New("entry data missing")
	// ErrEmptyPage marks a fetched page that carried no content entries.
	ErrEmptyPage = errors.New("page has no content entries")
	// ErrMalformedPage is returned for response bodies that are not JSON objects.
	ErrMalformedPage = errors.New("malformed page")
	// ErrAuthRequired is returned by Client for endpoints a guest session cannot use.
	ErrAuthRequired = errors.New("endpoint requires an authenticated session")
	// ErrRetriesExhausted is terminal for one query; accumulated results are kept.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// EntityUnavailableError is returned when the service replaced a user or
// post with an error discriminator (suspended, protected, rate limited).
// It only affects the entity it was returned for.
type EntityUnavailableError struct {
	TypeName string
	Reason   string
}

func (e *EntityUnavailableError) Error() string {
	if e.Reason == "" {
		return e.TypeName
	}
	return e.TypeName + " " + e.Reason
}

// IsEntityUnavailable reports whether err wraps an *EntityUnavailableError.
func IsEntityUnavailable(err error) bool {
	var eu *EntityUnavailableError
	return errors.As(err, &eu)
}

// errorClass categorizes Twitter API error responses for targeted handling.
type errorClass int

const (
	errNone          errorClass = iota
	errBanned                   // 88: rate limit abuse
	errSuspended                // 64: account suspended
	errLocked                   // 326: account locked (captcha needed)
	errCSRF                     // 353: csrf token mismatch
	errAuthExpired              // 32: could not authenticate
	errBlocked                  // 161: blocked from performing action
	errNotAuthorized            // 179, 219: not authorized
	errInternal                 // 131: Twitter internal error
	errRateLimited              // HTTP 429
	errHTTP                     // other non-2xx status
	errTransport                // network failure or timeout
	errMalformed                // body is not JSON
)

func (c errorClass) String() string {
	switch c {
	case errBanned:
		return "banned"
	case errSuspended:
		return "suspended"
	case errLocked:
		return "locked"
	case errCSRF:
		return "csrf"
	case errAuthExpired:
		return "auth_expired"
	case errBlocked:
		return "blocked"
	case errNotAuthorized:
		return "not_authorized"
	case errInternal:
		return "internal"
	case errRateLimited:
		return "rate_limited"
	case errHTTP:
		return "http"
	case errTransport:
		return "transport"
	case errMalformed:
		return "malformed"
	}
	return "none"
}

// classifyError inspects a response body for known Twitter error codes.
func classifyError(body []byte) errorClass {
	var errResp struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return errNone
	}

	for _, e := range errResp.Errors {
		switch e.Code {
		case 88:
			return errBanned
		case 64:
			return errSuspended
		case 326:
			return errLocked
		case 353:
			return errCSRF
		case 32:
			return errAuthExpired
		case 161:
			return errBlocked
		case 179, 219:
			return errNotAuthorized
		case 131:
			return errInternal
		}
	}
	return errNone
}

// FetchError is a failed page fetch. Every FetchError is retryable by the
// pagination driver.
type FetchError struct {
	Endpoint   string
	Status     int
	Class      errorClass
	RetryAfter time.Time // set for rate-limited responses
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch ")
	b.WriteString(e.Endpoint)
	if e.Status != 0 {
		b.WriteString(": HTTP ")
		b.WriteString(strconv.Itoa(e.Status))
	}
	if e.Class != errNone {
		b.WriteString(" (")
		b.WriteString(e.Class.String())
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// RateLimited reports whether the server answered 429 or code 88.
func (e *FetchError) RateLimited() bool {
	return e.Class == errRateLimited || e.Class == errBanned
}

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func wrapEntryErr(entryID string, err error) error {
	return fmt.Errorf("entry %s: %w", entryID, err)
}
