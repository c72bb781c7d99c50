package twitter

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// classifyEntryID maps an entry id prefix to the kind of payload it carries.
func classifyEntryID(entryID string) EntryKind {
	switch {
	case strings.HasPrefix(entryID, "tweet-"), strings.HasPrefix(entryID, "sq-I-t-"):
		return EntryPost
	case strings.HasPrefix(entryID, "user-"):
		return EntryUser
	case strings.HasPrefix(entryID, "cursor"), strings.HasPrefix(entryID, "sq-C"):
		return EntryCursor
	}
	return EntryUnknown
}

// entryIDSuffix returns the id after the last dash: "tweet-123" → "123".
func entryIDSuffix(entryID string) string {
	if i := strings.LastIndexByte(entryID, '-'); i >= 0 {
		return entryID[i+1:]
	}
	return entryID
}

// Classifier walks timeline pages and yields resolved entries in page order.
// One Classifier serves one paginated run: its limit spans every page it sees.
// It is not safe for concurrent use.
type Classifier struct {
	resolver *Resolver
	hooks    Hooks
	limit    int
	yielded  int
}

// NewClassifier returns a classifier that stops after limit content entries.
// A limit <= 0 means no limit.
func NewClassifier(resolver *Resolver, limit int, hooks Hooks) *Classifier {
	if resolver == nil {
		resolver = &Resolver{}
	}
	return &Classifier{resolver: resolver, hooks: hooks, limit: limit}
}

// Done reports whether the limit has been reached.
func (c *Classifier) Done() bool {
	return c.limit > 0 && c.yielded >= c.limit
}

// Yielded returns how many content entries have been produced so far.
func (c *Classifier) Yielded() int { return c.yielded }

// Page returns the entries of p. The sequence is single-pass: ranging over
// it a second time yields nothing. Cursor entries are also recorded into
// p.Cursors. Entities that fail to resolve are reported and skipped.
func (c *Classifier) Page(p *Page) iter.Seq[Entry] {
	used := false
	return func(yield func(Entry) bool) {
		if used {
			return
		}
		used = true

		for i := range p.timeline.Instructions {
			ins := &p.timeline.Instructions[i]
			for _, te := range contentEntries(ins) {
				if c.Done() {
					return
				}
				e, ok := c.entry(p, te)
				if !ok {
					continue
				}
				if e.IsContent() {
					c.yielded++
				}
				if !yield(e) {
					return
				}
			}
			for _, te := range replacedEntries(ins) {
				if classifyEntryID(te.EntryID) != EntryCursor {
					continue
				}
				e, ok := c.entry(p, te)
				if !ok {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}

func (c *Classifier) entry(p *Page, te timelineEntry) (Entry, bool) {
	kind := classifyEntryID(te.EntryID)
	if kind == EntryUnknown {
		return Entry{}, false
	}

	var content timelineContent
	if err := json.Unmarshal(te.Content, &content); err != nil {
		c.report(te.EntryID, fmt.Errorf("decode content: %w", err))
		return Entry{}, false
	}

	switch kind {
	case EntryCursor:
		cur, ok := cursorFromContent(te.EntryID, &content)
		if !ok {
			return Entry{}, false
		}
		if p.Cursors == nil {
			p.Cursors = CursorSet{}
		}
		p.Cursors.Set(cur)
		return Entry{Kind: EntryCursor, EntryID: te.EntryID, Cursor: &cur}, true

	case EntryPost:
		ent, err := c.resolvePostEntry(p, te, &content)
		if err != nil {
			c.report(te.EntryID, err)
			return Entry{}, false
		}
		switch v := ent.(type) {
		case *Post:
			return Entry{Kind: EntryPost, EntryID: te.EntryID, Post: v}, true
		case *Tombstone:
			return Entry{Kind: EntryTombstone, EntryID: te.EntryID, Tombstone: v}, true
		}

	case EntryUser:
		u, err := c.resolveUserEntry(p, &content)
		if err != nil {
			c.report(te.EntryID, err)
			return Entry{}, false
		}
		if u == nil {
			c.resolver.logger().Debug("user pointer target missing", slog.String("entry", te.EntryID))
			return Entry{}, false
		}
		return Entry{Kind: EntryUser, EntryID: te.EntryID, User: u}, true
	}
	return Entry{}, false
}

func (c *Classifier) resolvePostEntry(p *Page, te timelineEntry, content *timelineContent) (Entity, error) {
	hint := entryIDSuffix(te.EntryID)
	switch {
	case content.ItemContent != nil:
		tr := content.ItemContent.TweetResults.result()
		if tr.empty() {
			// Withheld posts come back as an empty result.
			return tombstone(hint)
		}
		return c.resolver.resolvePost(tr, p.Globals, hint, 0, c.nested(te.EntryID))

	case content.Item != nil:
		ptr := content.Item.Content
		if ptr.Tombstone != nil {
			id := hint
			if ptr.Tombstone.Tweet != nil && ptr.Tombstone.Tweet.ID != "" {
				id = ptr.Tombstone.Tweet.ID.String()
			}
			return tombstone(id)
		}
		if ptr.Tweet == nil {
			return nil, ErrMissingData
		}
		id := firstID(ptr.Tweet.ID.String(), hint)
		tr, err := p.Globals.tweet(id)
		if err != nil {
			return nil, err
		}
		if tr == nil {
			return tombstone(id)
		}
		return c.resolver.resolvePost(tr, p.Globals, id, 0, c.nested(te.EntryID))
	}

	// Some conversation payloads inline the post record as the content.
	var tr tweetResult
	if err := json.Unmarshal(te.Content, &tr); err != nil {
		return nil, err
	}
	if strings.HasPrefix(tr.TypeName, "Timeline") || (tr.IDStr == "" && tr.RestID == "" && tr.Legacy == nil) {
		return nil, ErrMissingData
	}
	return c.resolver.resolvePost(&tr, p.Globals, hint, 0, c.nested(te.EntryID))
}

func (c *Classifier) resolveUserEntry(p *Page, content *timelineContent) (*User, error) {
	switch {
	case content.ItemContent != nil:
		ur := content.ItemContent.UserResults.Result
		if ur == nil {
			return nil, ErrMissingData
		}
		return c.resolver.resolveUser(ur)

	case content.Item != nil && content.Item.Content.User != nil:
		ur, err := p.Globals.user(content.Item.Content.User.ID.String())
		if err != nil || ur == nil {
			return nil, err
		}
		return c.resolver.resolveUser(ur)
	}
	return nil, ErrMissingData
}

// nested reports dropped quoted or retweeted posts against the entry that
// referenced them. The entry itself is still yielded.
func (c *Classifier) nested(entryID string) nestedFunc {
	return func(parentID uint64, err error) {
		if c.resolver.OnError != nil {
			c.resolver.OnError(parentID, err)
		}
		if c.hooks.OnEntityError != nil {
			c.hooks.OnEntityError(entryID, wrapEntryErr(entryID, fmt.Errorf("nested in post %d: %w", parentID, err)))
		}
	}
}

func (c *Classifier) report(entryID string, err error) {
	err = wrapEntryErr(entryID, err)
	c.resolver.logger().Debug("skip entry", slog.String("entry", entryID), slog.Any("error", err))
	if c.hooks.OnEntityError != nil {
		c.hooks.OnEntityError(entryID, err)
	}
}

// NormalizePage parses body and returns its content entities in page order.
// Entities that fail to resolve are skipped.
func NormalizePage(body []byte) ([]Entity, error) {
	p, err := ParsePage(body)
	if err != nil {
		return nil, err
	}
	var out []Entity
	for e := range NewClassifier(nil, 0, Hooks{}).Page(p) {
		if ent := e.Entity(); ent != nil {
			out = append(out, ent)
		}
	}
	return out, nil
}
