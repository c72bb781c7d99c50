package twitter

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ParseID parses a decimal id exactly. Ids past the uint64 range fail with
// ErrIDOverflow rather than losing precision.
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %q", ErrIDOverflow, s)
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
}

// parseOptionalID returns 0 for an empty id.
func parseOptionalID(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return ParseID(s)
}

// flexID keeps the literal digits of an id that may arrive as a JSON string
// or a JSON number. It never goes through float64.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) >= 2 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	*f = flexID(b)
	return nil
}

func (f flexID) String() string { return string(f) }

// firstID returns the first non-empty candidate.
func firstID(ids ...string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}
