package twitter

import "time"

// Entity is a normalized timeline object: *Post, *User or *Tombstone.
type Entity interface {
	EntityID() uint64
}

// UserMetrics holds public account counters. A nil field means the
// payload did not carry the counter, which is distinct from zero.
type UserMetrics struct {
	Followers *int64
	Tweets    *int64
	Listed    *int64
	Likes     *int64
	Media     *int64
	Friends   *int64
}

// User represents a Twitter/X account profile.
type User struct {
	ID               uint64
	Username         string
	DisplayName      string
	Description      string
	URL              string
	Location         string
	Metrics          UserMetrics
	Verified         bool
	BlueVerified     *bool
	VerifiedType     string
	ProfileImageURL  string
	ProfileBannerURL string
	CreatedAt        time.Time
	Protected        bool
	CanDM            *bool
}

// EntityID implements Entity.
func (u *User) EntityID() uint64 { return u.ID }

// PostMetrics holds engagement counters, nil when absent from the payload.
type PostMetrics struct {
	Retweets  *int64
	Likes     *int64
	Replies   *int64
	Quotes    *int64
	Bookmarks *int64
	Views     *int64
}

// Post represents a single tweet with its author and nested references.
type Post struct {
	ID             uint64
	Text           string
	Author         User
	Metrics        PostMetrics
	ConversationID uint64
	Language       string
	Source         string
	URLs           []URLEntity
	Media          []Media
	CreatedAt      time.Time

	InReplyToStatusID uint64
	InReplyToUserID   uint64

	// QuotedID and RetweetedID are set whenever the payload references
	// another post, even if that post could not be resolved.
	QuotedID    uint64
	RetweetedID uint64
	Quoted      *Post
	Retweeted   *Post
}

// EntityID implements Entity.
func (p *Post) EntityID() uint64 { return p.ID }

// Tombstone stands in for a post the service marked unavailable.
type Tombstone struct {
	ID uint64
}

// EntityID implements Entity.
func (t *Tombstone) EntityID() uint64 { return t.ID }

// URLEntity pairs a shortened link with its expanded form.
type URLEntity struct {
	URL         string
	ExpandedURL string
	DisplayURL  string
}

// MediaType discriminates attached media.
type MediaType string

const (
	MediaPhoto       MediaType = "photo"
	MediaVideo       MediaType = "video"
	MediaAnimatedGIF MediaType = "animated_gif"
)

// Media is a photo, video or animated GIF attached to a post.
type Media struct {
	ID          uint64
	Type        MediaType
	URL         string // media_url_https
	ShortURL    string // t.co link embedded in the text
	DisplayURL  string
	ExpandedURL string
	PreviewURL  string
	Width       int
	Height      int
	AltText     string
	Video       *VideoInfo // nil for photos
}

// VideoInfo describes playable variants. Animated GIFs use the same shape.
type VideoInfo struct {
	AspectRatio [2]int
	Duration    time.Duration
	Variants    []VideoVariant
}

// VideoVariant is one encoding of a video. Bitrate is -1 when unknown.
type VideoVariant struct {
	Bitrate     int64
	ContentType string
	URL         string
}

// BestVariant returns the highest-bitrate mp4 variant, if any.
func (v *VideoInfo) BestVariant() (VideoVariant, bool) {
	var best VideoVariant
	found := false
	for _, vv := range v.Variants {
		if vv.ContentType != "video/mp4" {
			continue
		}
		if !found || vv.Bitrate > best.Bitrate {
			best = vv
			found = true
		}
	}
	return best, found
}

// Direction is the lower-cased pagination direction of a cursor.
// Values other than top and bottom are kept verbatim.
type Direction string

const (
	DirectionTop    Direction = "top"
	DirectionBottom Direction = "bottom"
)

// Known reports whether d is top or bottom.
func (d Direction) Known() bool {
	return d == DirectionTop || d == DirectionBottom
}

// Cursor is used for paginated requests.
type Cursor struct {
	Direction Direction
	Value     string
}

// CursorSet holds at most one cursor per direction; later cursors win.
type CursorSet map[Direction]Cursor

// Set records c, replacing any earlier cursor with the same direction.
func (s CursorSet) Set(c Cursor) { s[c.Direction] = c }

// Get returns the cursor for d.
func (s CursorSet) Get(d Direction) (Cursor, bool) {
	c, ok := s[d]
	return c, ok
}

// EntryKind tags a classified timeline entry.
type EntryKind int

const (
	EntryUnknown EntryKind = iota
	EntryPost
	EntryTombstone
	EntryUser
	EntryCursor
)

func (k EntryKind) String() string {
	switch k {
	case EntryPost:
		return "post"
	case EntryTombstone:
		return "tombstone"
	case EntryUser:
		return "user"
	case EntryCursor:
		return "cursor"
	}
	return "unknown"
}

// Entry is one classified unit of a timeline page. Exactly one payload
// field is set, matching Kind.
type Entry struct {
	Kind      EntryKind
	EntryID   string
	Post      *Post
	Tombstone *Tombstone
	User      *User
	Cursor    *Cursor
}

// Entity returns the content payload, or nil for cursor entries.
func (e Entry) Entity() Entity {
	switch e.Kind {
	case EntryPost:
		return e.Post
	case EntryTombstone:
		return e.Tombstone
	case EntryUser:
		return e.User
	}
	return nil
}

// IsContent reports whether the entry counts toward result limits.
func (e Entry) IsContent() bool {
	return e.Kind == EntryPost || e.Kind == EntryTombstone || e.Kind == EntryUser
}
