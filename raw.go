package twitter

import "encoding/json"

// --- Timeline types ---

type timelineObj struct {
	Instructions []timelineInstruction `json:"instructions"`
}

// timelineInstruction covers both instruction shapes: the discriminated
// {"type": ...} union and the older bare-key form.
type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
	Entry   *timelineEntry  `json:"entry"`

	AddEntries *struct {
		Entries []timelineEntry `json:"entries"`
	} `json:"addEntries"`
	ReplaceEntry *struct {
		Entry timelineEntry `json:"entry"`
	} `json:"replaceEntry"`
	PinEntry *struct {
		Entry timelineEntry `json:"entry"`
	} `json:"pinEntry"`
}

type timelineEntry struct {
	EntryID   string          `json:"entryId"`
	SortIndex string          `json:"sortIndex"`
	Content   json.RawMessage `json:"content"`
}

type timelineContent struct {
	EntryType   string       `json:"entryType"`
	TypeName    string       `json:"__typename"`
	ItemContent *itemContent `json:"itemContent"`
	Item        *struct {
		Content itemPointer `json:"content"`
	} `json:"item"`
	Operation *struct {
		Cursor *cursorContent `json:"cursor"`
	} `json:"operation"`
	Nested *cursorContent `json:"content"`

	// GraphQL cursors carry these inline.
	Value      string `json:"value"`
	CursorType string `json:"cursorType"`
}

type itemContent struct {
	TypeName     string        `json:"__typename"`
	ItemType     string        `json:"itemType"`
	TweetResults tweetEnvelope `json:"tweet_results"`
	UserResults  userEnvelope  `json:"user_results"`
}

// itemPointer is the legacy entry payload referencing globalObjects by id.
type itemPointer struct {
	Tweet *struct {
		ID flexID `json:"id"`
	} `json:"tweet"`
	User *struct {
		ID flexID `json:"id"`
	} `json:"user"`
	Tombstone *struct {
		Tweet *struct {
			ID flexID `json:"id"`
		} `json:"tweet"`
	} `json:"tombstone"`
}

type cursorContent struct {
	Value      string `json:"value"`
	CursorType string `json:"cursorType"`
}

// --- Entity types ---

type rawURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

type userEnvelope struct {
	Result *userResult `json:"result"`
}

type tweetEnvelope struct {
	Result *tweetResult `json:"result"`
}

func (e *tweetEnvelope) result() *tweetResult {
	if e == nil {
		return nil
	}
	return e.Result
}

// userLegacy is the flat user record: the GraphQL "legacy" sub-object and
// the globalObjects user share it.
type userLegacy struct {
	IDStr            string  `json:"id_str"`
	ID               flexID  `json:"id"`
	Name             string  `json:"name"`
	ScreenName       string  `json:"screen_name"`
	Description      string  `json:"description"`
	Location         string  `json:"location"`
	URL              string  `json:"url"`
	FollowersCount   *int64  `json:"followers_count"`
	FriendsCount     *int64  `json:"friends_count"`
	StatusesCount    *int64  `json:"statuses_count"`
	ListedCount      *int64  `json:"listed_count"`
	FavouritesCount  *int64  `json:"favourites_count"`
	MediaCount       *int64  `json:"media_count"`
	CreatedAt        string  `json:"created_at"`
	Verified         bool    `json:"verified"`
	VerifiedType     string  `json:"verified_type"`
	IsBlueVerified   *bool   `json:"is_blue_verified"`
	Protected        bool    `json:"protected"`
	CanDM            *bool   `json:"can_dm"`
	ProfileImageURL  string  `json:"profile_image_url_https"`
	ProfileBannerURL string  `json:"profile_banner_url"`
	Entities         struct {
		Description struct {
			URLs []rawURL `json:"urls"`
		} `json:"description"`
		URL struct {
			URLs []rawURL `json:"urls"`
		} `json:"url"`
	} `json:"entities"`
}

type userResult struct {
	TypeName string      `json:"__typename"`
	Reason   string      `json:"reason"`
	RestID   string      `json:"rest_id"`
	Legacy   *userLegacy `json:"legacy"`
	userLegacy
}

type rawMedia struct {
	IDStr         string `json:"id_str"`
	Type          string `json:"type"`
	URL           string `json:"url"`
	DisplayURL    string `json:"display_url"`
	ExpandedURL   string `json:"expanded_url"`
	MediaURLHTTPS string `json:"media_url_https"`
	ExtAltText    string `json:"ext_alt_text"`
	OriginalInfo  struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"original_info"`
	VideoInfo *struct {
		AspectRatio    []int `json:"aspect_ratio"`
		DurationMillis int64 `json:"duration_millis"`
		Variants       []struct {
			Bitrate     *int64 `json:"bitrate"`
			ContentType string `json:"content_type"`
			URL         string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

// tweetLegacy is the flat tweet record shared by the GraphQL "legacy"
// sub-object and globalObjects tweets.
type tweetLegacy struct {
	IDStr                string `json:"id_str"`
	ID                   flexID `json:"id"`
	FullText             string `json:"full_text"`
	Text                 string `json:"text"`
	CreatedAt            string `json:"created_at"`
	ConversationIDStr    string `json:"conversation_id_str"`
	UserIDStr            string `json:"user_id_str"`
	UserID               flexID `json:"user_id"`
	Lang                 string `json:"lang"`
	Source               string `json:"source"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string `json:"in_reply_to_user_id_str"`
	QuotedStatusIDStr    string `json:"quoted_status_id_str"`
	QuotedStatusID       flexID `json:"quoted_status_id"`
	RetweetedStatusIDStr string `json:"retweeted_status_id_str"`
	RetweetedStatusID    flexID `json:"retweeted_status_id"`
	ReplyCount           *int64 `json:"reply_count"`
	RetweetCount         *int64 `json:"retweet_count"`
	FavoriteCount        *int64 `json:"favorite_count"`
	QuoteCount           *int64 `json:"quote_count"`
	BookmarkCount        *int64 `json:"bookmark_count"`
	Entities             struct {
		URLs  []rawURL   `json:"urls"`
		Media []rawMedia `json:"media"`
	} `json:"entities"`
	ExtendedEntities struct {
		Media []rawMedia `json:"media"`
	} `json:"extended_entities"`

	QuotedStatusResult    *tweetEnvelope `json:"quoted_status_result"`
	RetweetedStatusResult *tweetEnvelope `json:"retweeted_status_result"`

	// User is the author embedded in v1.1-style records.
	User *userResult `json:"user"`
}

type tweetResult struct {
	TypeName string       `json:"__typename"`
	Reason   string       `json:"reason"`
	RestID   string       `json:"rest_id"`
	Tweet    *tweetResult `json:"tweet"`
	Core     struct {
		UserResults userEnvelope `json:"user_results"`
	} `json:"core"`
	Legacy *tweetLegacy `json:"legacy"`
	Views  struct {
		Count string `json:"count"`
	} `json:"views"`
	QuotedStatusResult    *tweetEnvelope `json:"quoted_status_result"`
	RetweetedStatusResult *tweetEnvelope `json:"retweeted_status_result"`
	tweetLegacy
}

// empty reports whether the result object carried nothing at all, which the
// service uses for withheld posts in GraphQL timelines.
func (r *tweetResult) empty() bool {
	return r == nil || (r.TypeName == "" && r.RestID == "" && r.Legacy == nil && r.IDStr == "" && r.ID == "" && r.Tweet == nil)
}
