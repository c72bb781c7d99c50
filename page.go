package twitter

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// GlobalObjects is the flat id→record table that accompanies legacy
// timeline pages. GraphQL pages inline their objects instead.
type GlobalObjects struct {
	Tweets map[string]json.RawMessage `json:"tweets"`
	Users  map[string]json.RawMessage `json:"users"`
}

func (g *GlobalObjects) tweet(id string) (*tweetResult, error) {
	if g == nil || id == "" {
		return nil, nil
	}
	raw, ok := g.Tweets[id]
	if !ok {
		return nil, nil
	}
	var r tweetResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode global tweet %s: %w", id, err)
	}
	return &r, nil
}

func (g *GlobalObjects) user(id string) (*userResult, error) {
	if g == nil || id == "" {
		return nil, nil
	}
	raw, ok := g.Users[id]
	if !ok {
		return nil, nil
	}
	var r userResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode global user %s: %w", id, err)
	}
	return &r, nil
}

// Page is one decoded timeline response.
type Page struct {
	Globals *GlobalObjects
	// Cursors collects every cursor entry seen while classifying the page.
	Cursors CursorSet

	timeline timelineObj
	raw      []byte
}

// Raw returns the response body the page was parsed from.
func (p *Page) Raw() []byte { return p.raw }

// timelinePaths lists where each endpoint nests its instruction list.
var timelinePaths = []string{
	"data.user.result.timeline_v2.timeline",
	"data.user.result.timeline.timeline",
	"data.threaded_conversation_with_injections_v2",
	"data.search_by_raw_query.search_timeline.timeline",
	"data.retweeters_timeline.timeline",
	"data.favoriters_timeline.timeline",
	"data.list.tweets_timeline.timeline",
	"timeline",
}

// ParsePage locates the instruction list inside a response body.
// A body without any timeline yields an empty page rather than an error,
// unless the service reported why: API error codes become a *FetchError and
// an unavailable user envelope becomes an *EntityUnavailableError.
func ParsePage(body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPage, truncateBytes(body, 120))
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level is %s", ErrMalformedPage, doc.Type)
	}

	page := &Page{Cursors: CursorSet{}, raw: body}

	var found bool
	for _, path := range timelinePaths {
		tl := doc.Get(path)
		if !tl.Get("instructions").IsArray() {
			continue
		}
		if err := json.Unmarshal([]byte(tl.Raw), &page.timeline); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedPage, path, err)
		}
		found = true
		break
	}

	if !found {
		if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
			return nil, &FetchError{
				Class: classifyError(body),
				Err:   fmt.Errorf("twitter API error: %s", errs.Get("0.message").String()),
			}
		}
		if res := doc.Get("data.user.result"); res.Exists() {
			tn := res.Get("__typename").String()
			if tn != "" && tn != "User" {
				return nil, &EntityUnavailableError{TypeName: tn, Reason: res.Get("reason").String()}
			}
		}
	}

	if g := doc.Get("globalObjects"); g.IsObject() {
		var globals GlobalObjects
		if err := json.Unmarshal([]byte(g.Raw), &globals); err != nil {
			return nil, fmt.Errorf("%w: decode globalObjects: %v", ErrMalformedPage, err)
		}
		page.Globals = &globals
	}
	return page, nil
}

// ContentCount returns how many entries in the page address a post or a
// user, without resolving them.
func (p *Page) ContentCount() int {
	n := 0
	for _, ins := range p.timeline.Instructions {
		for _, e := range contentEntries(&ins) {
			if k := classifyEntryID(e.EntryID); k == EntryPost || k == EntryUser {
				n++
			}
		}
	}
	return n
}

// contentEntries returns the entries of an instruction that may carry
// content. Replace instructions only ever swap cursors.
func contentEntries(ins *timelineInstruction) []timelineEntry {
	switch {
	case ins.AddEntries != nil:
		return ins.AddEntries.Entries
	case ins.PinEntry != nil:
		return []timelineEntry{ins.PinEntry.Entry}
	}
	switch ins.Type {
	case "TimelineAddEntries":
		return ins.Entries
	case "TimelinePinEntry":
		if ins.Entry != nil {
			return []timelineEntry{*ins.Entry}
		}
	}
	return nil
}

// replacedEntries returns the entries of a replace instruction.
func replacedEntries(ins *timelineInstruction) []timelineEntry {
	if ins.ReplaceEntry != nil {
		return []timelineEntry{ins.ReplaceEntry.Entry}
	}
	if ins.Type == "TimelineReplaceEntry" && ins.Entry != nil {
		return []timelineEntry{*ins.Entry}
	}
	return nil
}
