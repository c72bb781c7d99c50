package twitter

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

const scrollMarker = "scroll"

// ExtractCursor reads the pagination cursor out of one entry's content.
// Entries that carry no recognizable cursor report false; that is not an
// error, some cursor-addressed entries are placeholders.
func ExtractCursor(entryID string, content json.RawMessage) (Cursor, bool) {
	var c timelineContent
	if len(content) == 0 || json.Unmarshal(content, &c) != nil {
		return Cursor{}, false
	}
	return cursorFromContent(entryID, &c)
}

func cursorFromContent(entryID string, c *timelineContent) (Cursor, bool) {
	var src *cursorContent
	switch {
	case strings.HasPrefix(entryID, "sq-C"):
		// Legacy search cursors are always wrapped in an operation.
		if c.Operation != nil {
			src = c.Operation.Cursor
		}
	case strings.HasPrefix(entryID, "cursor-"):
		if c.Operation != nil && c.Operation.Cursor != nil {
			src = c.Operation.Cursor
		} else {
			// GraphQL timelines drop the operation wrapper.
			src = &cursorContent{Value: c.Value, CursorType: c.CursorType}
		}
	default:
		src = c.Nested
	}
	if src == nil || src.Value == "" {
		return Cursor{}, false
	}
	return Cursor{
		Direction: Direction(strings.ToLower(src.CursorType)),
		Value:     src.Value,
	}, true
}

// ScanCursor walks the whole document for "value" fields and returns the
// first one holding a scroll token. It is the fallback for legacy search
// pages whose cursor is not in a recognizable entry.
func ScanCursor(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	var found string
	var walk func(r gjson.Result) bool
	walk = func(r gjson.Result) bool {
		if !r.IsObject() && !r.IsArray() {
			return true
		}
		r.ForEach(func(key, value gjson.Result) bool {
			if key.String() == "value" && value.Type == gjson.String && strings.Contains(value.Str, scrollMarker) {
				found = value.Str
				return false
			}
			return walk(value)
		})
		return found == ""
	}
	walk(gjson.ParseBytes(body))
	return found, found != ""
}
