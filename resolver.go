package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

const defaultMaxDepth = 8

// schemaVariant is the record layout of one user or post.
type schemaVariant int

const (
	// variantGraphQL nests the flat fields under "legacy" and keys the
	// entity by "rest_id"; referenced posts are inlined.
	variantGraphQL schemaVariant = iota
	// variantLegacy is the flat record from globalObjects; referenced
	// users and posts are looked up by id.
	variantLegacy
)

func (r *tweetResult) variant() schemaVariant {
	if r.Legacy != nil {
		return variantGraphQL
	}
	return variantLegacy
}

func (r *userResult) variant() schemaVariant {
	if r.Legacy != nil {
		return variantGraphQL
	}
	return variantLegacy
}

// Resolver turns raw user and tweet records into normalized entities.
// The zero value is ready to use.
type Resolver struct {
	// MaxDepth bounds quoted/retweeted recursion. Default: 8.
	MaxDepth int
	// Logger receives nested resolution failures. Default: slog.Default().
	Logger *slog.Logger
	// OnError, if set, is called for every nested post that was dropped.
	OnError func(parentID uint64, err error)
}

// nestedFunc receives the failure of a quoted or retweeted post.
type nestedFunc func(parentID uint64, err error)

func (r *Resolver) onError() nestedFunc {
	if r == nil || r.OnError == nil {
		return nil
	}
	return r.OnError
}

func (r *Resolver) maxDepth() int {
	if r == nil || r.MaxDepth <= 0 {
		return defaultMaxDepth
	}
	return r.MaxDepth
}

func (r *Resolver) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// ResolvePost normalizes one raw tweet record into a *Post or *Tombstone.
// globals is only consulted for legacy records and may be nil.
func (r *Resolver) ResolvePost(raw json.RawMessage, globals *GlobalObjects) (Entity, error) {
	var tr tweetResult
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode tweet: %w", err)
	}
	return r.resolvePost(&tr, globals, "", 0, r.onError())
}

// ResolveUser normalizes one raw user record.
func (r *Resolver) ResolveUser(raw json.RawMessage) (*User, error) {
	var ur userResult
	if err := json.Unmarshal(raw, &ur); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return r.resolveUser(&ur)
}

// resolvePost resolves tr at the given nesting depth. hintID is the id the
// referencing entry or parent used, for records that omit their own.
// Dropped nested posts are passed to nested, which may be nil.
func (r *Resolver) resolvePost(tr *tweetResult, globals *GlobalObjects, hintID string, depth int, nested nestedFunc) (Entity, error) {
	if depth > r.maxDepth() {
		return nil, fmt.Errorf("%w (depth %d)", ErrDepthExceeded, depth)
	}
	// TweetWithVisibilityResults wraps the real tweet.
	if tr.Tweet != nil {
		tr = tr.Tweet
	}

	switch tr.TypeName {
	case "", "Tweet":
	case "TweetTombstone":
		return tombstone(firstID(tr.RestID, tr.IDStr, tr.ID.String(), hintID))
	default:
		return nil, &EntityUnavailableError{TypeName: tr.TypeName, Reason: tr.Reason}
	}

	var (
		base        *tweetLegacy
		idStr       string
		author      *userResult
		views       string
		quoted      *tweetResult
		retweeted   *tweetResult
		quotedID    string
		retweetedID string
		err         error
	)
	switch tr.variant() {
	case variantGraphQL:
		base = tr.Legacy
		idStr = firstID(tr.RestID, base.IDStr)
		author = tr.Core.UserResults.Result
		views = tr.Views.Count
		quotedID = firstID(base.QuotedStatusIDStr, base.QuotedStatusID.String())
		retweetedID = firstID(base.RetweetedStatusIDStr, base.RetweetedStatusID.String())
		quoted = firstResult(tr.QuotedStatusResult, base.QuotedStatusResult)
		retweeted = firstResult(tr.RetweetedStatusResult, base.RetweetedStatusResult)
		if quotedID == "" && quoted != nil {
			quotedID = quoted.RestID
		}
		if retweetedID == "" && retweeted != nil {
			retweetedID = retweeted.RestID
		}
	case variantLegacy:
		base = &tr.tweetLegacy
		idStr = firstID(base.IDStr, base.ID.String(), tr.RestID, hintID)
		userID := firstID(base.UserIDStr, base.UserID.String())
		if author, err = globals.user(userID); err != nil {
			return nil, err
		}
		if author == nil {
			author = base.User
		}
		quotedID = firstID(base.QuotedStatusIDStr, base.QuotedStatusID.String())
		retweetedID = firstID(base.RetweetedStatusIDStr, base.RetweetedStatusID.String())
		if quoted, err = globals.tweet(quotedID); err != nil {
			return nil, err
		}
		if retweeted, err = globals.tweet(retweetedID); err != nil {
			return nil, err
		}
	}
	if author == nil {
		return nil, fmt.Errorf("tweet %s: author: %w", idStr, ErrMissingData)
	}

	p := &Post{
		Language: base.Lang,
		Source:   stripHTML(base.Source),
		Metrics: PostMetrics{
			Retweets:  base.RetweetCount,
			Likes:     base.FavoriteCount,
			Replies:   base.ReplyCount,
			Quotes:    base.QuoteCount,
			Bookmarks: base.BookmarkCount,
			Views:     parseCount(views),
		},
	}
	if p.ID, err = ParseID(idStr); err != nil {
		return nil, fmt.Errorf("tweet id: %w", err)
	}

	user, err := r.resolveUser(author)
	if err != nil {
		return nil, fmt.Errorf("tweet %d: author: %w", p.ID, err)
	}
	p.Author = *user

	ids := []struct {
		dst *uint64
		src string
	}{
		{&p.ConversationID, base.ConversationIDStr},
		{&p.InReplyToStatusID, base.InReplyToStatusIDStr},
		{&p.InReplyToUserID, base.InReplyToUserIDStr},
		{&p.QuotedID, quotedID},
		{&p.RetweetedID, retweetedID},
	}
	for _, f := range ids {
		if *f.dst, err = parseOptionalID(f.src); err != nil {
			return nil, fmt.Errorf("tweet %d: %w", p.ID, err)
		}
	}

	if base.CreatedAt != "" {
		if p.CreatedAt, err = parseTimestamp(base.CreatedAt); err != nil {
			return nil, fmt.Errorf("tweet %d: %w", p.ID, err)
		}
	}

	if p.Media, err = consolidateMedia(base); err != nil {
		return nil, fmt.Errorf("tweet %d: %w", p.ID, err)
	}

	text := base.FullText
	if text == "" {
		text = base.Text
	}
	text = expandURLs(text, base.Entities.URLs)
	if len(p.Media) > 0 {
		text = stripMediaLink(text)
	}
	p.Text = text

	for _, u := range base.Entities.URLs {
		p.URLs = append(p.URLs, URLEntity{URL: u.URL, ExpandedURL: u.ExpandedURL, DisplayURL: u.DisplayURL})
	}

	p.Quoted = r.resolveNested(quoted, globals, quotedID, depth, p.ID, "quoted", nested)
	p.Retweeted = r.resolveNested(retweeted, globals, retweetedID, depth, p.ID, "retweeted", nested)
	return p, nil
}

// resolveNested resolves a referenced post. Any failure leaves the
// reference empty; the parent post is still returned.
func (r *Resolver) resolveNested(tr *tweetResult, globals *GlobalObjects, hintID string, depth int, parentID uint64, rel string, nested nestedFunc) *Post {
	if tr.empty() {
		return nil
	}
	ent, err := r.resolvePost(tr, globals, hintID, depth+1, nested)
	if err != nil {
		level := slog.LevelDebug
		if errors.Is(err, ErrDepthExceeded) || errors.Is(err, ErrUnknownMediaType) {
			level = slog.LevelWarn
		}
		r.logger().Log(context.Background(), level, "skip nested post",
			slog.Uint64("parent", parentID),
			slog.String("relation", rel),
			slog.Any("error", err))
		if nested != nil {
			nested(parentID, err)
		}
		return nil
	}
	p, _ := ent.(*Post)
	return p
}

func (r *Resolver) resolveUser(ur *userResult) (*User, error) {
	switch ur.TypeName {
	case "", "User":
	default:
		return nil, &EntityUnavailableError{TypeName: ur.TypeName, Reason: ur.Reason}
	}

	var (
		f     *userLegacy
		idStr string
	)
	switch ur.variant() {
	case variantGraphQL:
		f = ur.Legacy
		idStr = firstID(ur.RestID, f.IDStr)
	case variantLegacy:
		f = &ur.userLegacy
		idStr = firstID(f.IDStr, f.ID.String(), ur.RestID)
	}

	id, err := ParseID(idStr)
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	u := &User{
		ID:          id,
		Username:    f.ScreenName,
		DisplayName: f.Name,
		Description: expandURLs(f.Description, f.Entities.Description.URLs),
		Location:    f.Location,
		Metrics: UserMetrics{
			Followers: f.FollowersCount,
			Tweets:    f.StatusesCount,
			Listed:    f.ListedCount,
			Likes:     f.FavouritesCount,
			Media:     f.MediaCount,
			Friends:   f.FriendsCount,
		},
		Verified:         f.Verified,
		BlueVerified:     f.IsBlueVerified,
		ProfileImageURL:  largeProfileImage(f.ProfileImageURL),
		ProfileBannerURL: f.ProfileBannerURL,
		Protected:        f.Protected,
		CanDM:            f.CanDM,
	}
	// GraphQL keeps is_blue_verified beside the legacy object.
	if u.BlueVerified == nil {
		u.BlueVerified = ur.userLegacy.IsBlueVerified
	}
	if u.Verified {
		u.VerifiedType = f.VerifiedType
		if u.VerifiedType == "" {
			u.VerifiedType = "Legacy"
		}
	}
	if links := f.Entities.URL.URLs; len(links) > 0 {
		u.URL = links[0].ExpandedURL
		if u.URL == "" {
			u.URL = links[0].URL
		}
	}
	if f.CreatedAt != "" {
		if u.CreatedAt, err = parseTimestamp(f.CreatedAt); err != nil {
			return nil, fmt.Errorf("user %d: %w", u.ID, err)
		}
	}
	return u, nil
}

func tombstone(idStr string) (Entity, error) {
	id, err := ParseID(idStr)
	if err != nil {
		return nil, fmt.Errorf("tombstone id: %w", err)
	}
	return &Tombstone{ID: id}, nil
}

func firstResult(envs ...*tweetEnvelope) *tweetResult {
	for _, e := range envs {
		if r := e.result(); !r.empty() {
			return r
		}
	}
	return nil
}

// parseCount parses a decimal counter that may be absent.
func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
