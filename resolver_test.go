package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceFields = `"id_str":"42","screen_name":"alice","name":"Alice",` +
		`"description":"blog https://t.co/d","followers_count":10,"friends_count":3,"statuses_count":99,` +
		`"created_at":"Mon Jan 02 15:04:05 +0000 2006","profile_image_url_https":"https://pbs.twimg.com/p/a_normal.jpg",` +
		`"entities":{"url":{"urls":[{"url":"https://t.co/u","expanded_url":"https://alice.example"}]},` +
		`"description":{"urls":[{"url":"https://t.co/d","expanded_url":"https://blog.example"}]}}`

	helloFields = `"id_str":"1001","full_text":"hello https://t.co/x","created_at":"Wed Oct 05 17:03:59 +0000 2022",` +
		`"conversation_id_str":"1001","user_id_str":"42","lang":"en",` +
		`"source":"<a href=\"https://mobile.twitter.com\" rel=\"nofollow\">Twitter Web App</a>",` +
		`"retweet_count":1,"favorite_count":2,"reply_count":3,"quote_count":4,` +
		`"entities":{"urls":[{"url":"https://t.co/x","expanded_url":"https://long.example/","display_url":"long.example"}]}`
)

func graphQLUserJSON(restID, fields string) string {
	return fmt.Sprintf(`{"__typename":"User","rest_id":%q,"is_blue_verified":true,"legacy":{%s}}`, restID, fields)
}

func graphQLTweetJSON(restID, fields, extra string) string {
	s := fmt.Sprintf(`{"__typename":"Tweet","rest_id":%q,"core":{"user_results":{"result":%s}},"legacy":{%s}`,
		restID, graphQLUserJSON("42", aliceFields), fields)
	if extra != "" {
		s += "," + extra
	}
	return s + "}"
}

func aliceGlobals() *GlobalObjects {
	return &GlobalObjects{
		Tweets: map[string]json.RawMessage{},
		Users: map[string]json.RawMessage{
			"42": json.RawMessage(`{` + aliceFields + `,"is_blue_verified":true}`),
		},
	}
}

func resolvePost(t *testing.T, r *Resolver, raw string, globals *GlobalObjects) *Post {
	t.Helper()
	ent, err := r.ResolvePost(json.RawMessage(raw), globals)
	require.NoError(t, err)
	p, ok := ent.(*Post)
	require.True(t, ok, "got %T", ent)
	return p
}

func TestResolvePostSchemaVariants(t *testing.T) {
	var r Resolver

	fromGraphQL := resolvePost(t, &r, graphQLTweetJSON("1001", helloFields, ""), nil)
	fromLegacy := resolvePost(t, &r, `{`+helloFields+`}`, aliceGlobals())

	assert.Equal(t, fromLegacy, fromGraphQL)

	p := fromGraphQL
	assert.Equal(t, uint64(1001), p.ID)
	assert.Equal(t, "hello https://long.example/", p.Text)
	assert.Equal(t, "Twitter Web App", p.Source)
	assert.Equal(t, "en", p.Language)
	assert.Equal(t, uint64(1001), p.ConversationID)
	assert.Equal(t, time.Date(2022, time.October, 5, 17, 3, 59, 0, time.UTC), p.CreatedAt)
	require.NotNil(t, p.Metrics.Likes)
	assert.Equal(t, int64(2), *p.Metrics.Likes)
	assert.Nil(t, p.Metrics.Bookmarks, "absent counters stay unknown")
	assert.Nil(t, p.Metrics.Views)

	a := p.Author
	assert.Equal(t, uint64(42), a.ID)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "blog https://blog.example", a.Description)
	assert.Equal(t, "https://alice.example", a.URL)
	assert.Equal(t, "https://pbs.twimg.com/p/a_400x400.jpg", a.ProfileImageURL)
	require.NotNil(t, a.BlueVerified)
	assert.True(t, *a.BlueVerified)
	assert.Nil(t, a.Metrics.Media)
}

func TestResolvePostURLExpansion(t *testing.T) {
	p := resolvePost(t, &Resolver{}, graphQLTweetJSON("1001", helloFields, ""), nil)

	require.Len(t, p.URLs, 1)
	u := p.URLs[0]
	assert.Equal(t, URLEntity{URL: "https://t.co/x", ExpandedURL: "https://long.example/", DisplayURL: "long.example"}, u)
	assert.Contains(t, p.Text, u.ExpandedURL)
	assert.NotContains(t, p.Text, u.URL)
}

func TestResolvePostIdempotent(t *testing.T) {
	raw := graphQLTweetJSON("1001", helloFields, `"views":{"count":"1234"}`)
	var r Resolver

	first := resolvePost(t, &r, raw, nil)
	second := resolvePost(t, &r, raw, nil)
	assert.Equal(t, first, second)
	require.NotNil(t, first.Metrics.Views)
	assert.Equal(t, int64(1234), *first.Metrics.Views)
}

func TestResolvePostVisibilityWrapper(t *testing.T) {
	raw := `{"__typename":"TweetWithVisibilityResults","tweet":` + graphQLTweetJSON("1001", helloFields, "") + `}`
	p := resolvePost(t, &Resolver{}, raw, nil)
	assert.Equal(t, uint64(1001), p.ID)
}

func TestResolvePostTombstone(t *testing.T) {
	ent, err := (&Resolver{}).ResolvePost(json.RawMessage(`{"__typename":"TweetTombstone","rest_id":"55"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, &Tombstone{ID: 55}, ent)
}

func TestResolvePostUnavailable(t *testing.T) {
	_, err := (&Resolver{}).ResolvePost(json.RawMessage(`{"__typename":"TweetUnavailable","reason":"Protected"}`), nil)

	var eu *EntityUnavailableError
	require.ErrorAs(t, err, &eu)
	assert.Equal(t, "TweetUnavailable", eu.TypeName)
	assert.Equal(t, "Protected", eu.Reason)
}

func TestResolvePostMissingAuthor(t *testing.T) {
	raw := `{"id_str":"7","full_text":"x","user_id_str":"99"}`
	_, err := (&Resolver{}).ResolvePost(json.RawMessage(raw), aliceGlobals())
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestResolvePostIDOverflow(t *testing.T) {
	raw := graphQLTweetJSON("99999999999999999999", `"full_text":"x"`, "")
	_, err := (&Resolver{}).ResolvePost(json.RawMessage(raw), nil)
	assert.ErrorIs(t, err, ErrIDOverflow)
}

func TestResolvePostMedia(t *testing.T) {
	fields := `"id_str":"3","full_text":"pic https://t.co/m","user_id_str":"42",` +
		`"entities":{"media":[{"id_str":"9","type":"photo","url":"https://t.co/m","media_url_https":"https://pbs.twimg.com/9.jpg"}]},` +
		`"extended_entities":{"media":[` +
		`{"id_str":"9","type":"video","url":"https://t.co/m","media_url_https":"https://pbs.twimg.com/9.jpg",` +
		`"original_info":{"width":1280,"height":720},` +
		`"video_info":{"aspect_ratio":[16,9],"duration_millis":1500,"variants":[` +
		`{"content_type":"application/x-mpegURL","url":"https://video.twimg.com/9.m3u8"},` +
		`{"bitrate":256000,"content_type":"video/mp4","url":"https://video.twimg.com/9-low.mp4"},` +
		`{"bitrate":832000,"content_type":"video/mp4","url":"https://video.twimg.com/9.mp4"}]}},` +
		`{"id_str":"10","type":"animated_gif","media_url_https":"https://pbs.twimg.com/10.jpg",` +
		`"video_info":{"variants":[{"bitrate":0,"content_type":"video/mp4","url":"https://video.twimg.com/10.mp4"}]}}]}`

	p := resolvePost(t, &Resolver{}, `{`+fields+`}`, aliceGlobals())

	assert.Equal(t, "pic", p.Text)
	require.Len(t, p.Media, 2)

	v := p.Media[0]
	assert.Equal(t, uint64(9), v.ID)
	assert.Equal(t, MediaVideo, v.Type)
	assert.Equal(t, 1280, v.Width)
	assert.Equal(t, "https://pbs.twimg.com/9.jpg", v.PreviewURL)
	require.NotNil(t, v.Video)
	assert.Equal(t, [2]int{16, 9}, v.Video.AspectRatio)
	assert.Equal(t, 1500*time.Millisecond, v.Video.Duration)
	assert.Equal(t, int64(-1), v.Video.Variants[0].Bitrate)
	best, ok := v.Video.BestVariant()
	require.True(t, ok)
	assert.Equal(t, "https://video.twimg.com/9.mp4", best.URL)

	gif := p.Media[1]
	assert.Equal(t, MediaAnimatedGIF, gif.Type)
	require.NotNil(t, gif.Video)
	assert.Equal(t, "https://video.twimg.com/10.mp4", gif.ExpandedURL)
}

func TestResolvePostUnknownMedia(t *testing.T) {
	raw := `{"id_str":"3","full_text":"x","user_id_str":"42",` +
		`"extended_entities":{"media":[{"id_str":"9","type":"hologram"}]}}`
	_, err := (&Resolver{}).ResolvePost(json.RawMessage(raw), aliceGlobals())
	assert.ErrorIs(t, err, ErrUnknownMediaType)
}

func TestResolvePostNested(t *testing.T) {
	t.Run("graphql quoted", func(t *testing.T) {
		inner := graphQLTweetJSON("2002", `"id_str":"2002","full_text":"inner"`, "")
		outer := graphQLTweetJSON("1001", helloFields+`,"quoted_status_id_str":"2002"`,
			`"quoted_status_result":{"result":`+inner+`}`)

		p := resolvePost(t, &Resolver{}, outer, nil)
		assert.Equal(t, uint64(2002), p.QuotedID)
		require.NotNil(t, p.Quoted)
		assert.Equal(t, "inner", p.Quoted.Text)
		assert.Nil(t, p.Retweeted)
	})

	t.Run("legacy retweet from globals", func(t *testing.T) {
		g := aliceGlobals()
		g.Tweets["2002"] = json.RawMessage(`{"id_str":"2002","full_text":"original","user_id_str":"42"}`)

		p := resolvePost(t, &Resolver{}, `{`+helloFields+`,"retweeted_status_id_str":"2002"}`, g)
		assert.Equal(t, uint64(2002), p.RetweetedID)
		require.NotNil(t, p.Retweeted)
		assert.Equal(t, "original", p.Retweeted.Text)
	})

	t.Run("unresolvable reference keeps parent", func(t *testing.T) {
		g := aliceGlobals()
		g.Tweets["2002"] = json.RawMessage(`{"id_str":"2002","full_text":"orphan","user_id_str":"404"}`)

		var dropped []uint64
		r := &Resolver{OnError: func(parentID uint64, err error) {
			assert.ErrorIs(t, err, ErrMissingData)
			dropped = append(dropped, parentID)
		}}
		p := resolvePost(t, r, `{`+helloFields+`,"quoted_status_id_str":"2002"}`, g)
		assert.Equal(t, uint64(2002), p.QuotedID)
		assert.Nil(t, p.Quoted)
		assert.Equal(t, []uint64{1001}, dropped)
	})
}

func TestResolvePostDepthLimit(t *testing.T) {
	c := graphQLTweetJSON("3", `"id_str":"3","full_text":"c"`, "")
	b := graphQLTweetJSON("2", `"id_str":"2","full_text":"b","quoted_status_id_str":"3"`, `"quoted_status_result":{"result":`+c+`}`)
	a := graphQLTweetJSON("1", `"id_str":"1","full_text":"a","quoted_status_id_str":"2"`, `"quoted_status_result":{"result":`+b+`}`)

	var errs []error
	r := &Resolver{MaxDepth: 1, OnError: func(_ uint64, err error) { errs = append(errs, err) }}
	p := resolvePost(t, r, a, nil)

	require.NotNil(t, p.Quoted)
	assert.Equal(t, uint64(2), p.Quoted.ID)
	assert.Equal(t, uint64(3), p.Quoted.QuotedID)
	assert.Nil(t, p.Quoted.Quoted)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrDepthExceeded))
}

func TestResolveUser(t *testing.T) {
	t.Run("graphql", func(t *testing.T) {
		u, err := (&Resolver{}).ResolveUser(json.RawMessage(graphQLUserJSON("42", aliceFields)))
		require.NoError(t, err)
		assert.Equal(t, uint64(42), u.ID)
		assert.Equal(t, "Alice", u.DisplayName)
		require.NotNil(t, u.Metrics.Followers)
		assert.Equal(t, int64(10), *u.Metrics.Followers)
		assert.Equal(t, time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC), u.CreatedAt)
		assert.Empty(t, u.VerifiedType)
	})

	t.Run("legacy verified", func(t *testing.T) {
		u, err := (&Resolver{}).ResolveUser(json.RawMessage(`{"id":12,"screen_name":"jack","verified":true}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(12), u.ID)
		assert.True(t, u.Verified)
		assert.Equal(t, "Legacy", u.VerifiedType)
		assert.Nil(t, u.BlueVerified)
	})

	t.Run("suspended", func(t *testing.T) {
		_, err := (&Resolver{}).ResolveUser(json.RawMessage(`{"__typename":"UserUnavailable","reason":"Suspended"}`))
		require.Error(t, err)
		assert.True(t, IsEntityUnavailable(err))
		assert.Equal(t, "UserUnavailable Suspended", err.Error())
	})

	t.Run("bad timestamp", func(t *testing.T) {
		_, err := (&Resolver{}).ResolveUser(json.RawMessage(`{"id_str":"1","created_at":"yesterday"}`))
		assert.ErrorIs(t, err, ErrTimestampFormat)
	})
}

func TestParseCount(t *testing.T) {
	assert.Nil(t, parseCount(""))
	assert.Nil(t, parseCount("lots"))
	n := parseCount("17")
	require.NotNil(t, n)
	assert.Equal(t, int64(17), *n)
}
