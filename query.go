package twitter

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strconv"
)

// Query is one paginated walk over a timeline endpoint.
type Query struct {
	// Name identifies the query in results and sinks. It must be unique
	// within one orchestrator run.
	Name     string
	Endpoint string
	// Variables are the GraphQL variables, or plain parameters for REST
	// endpoints. The cursor is merged in after the first page.
	Variables    map[string]any
	FieldToggles map[string]any
	// Limit caps the number of distinct content entities; <= 0 is unlimited.
	Limit int
}

// Params builds the request parameters for one page. An empty cursor
// requests the first page.
func (q Query) Params(cursor string) (url.Values, error) {
	ep, err := LookupEndpoint(q.Endpoint)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]any, len(q.Variables)+1)
	maps.Copy(vars, q.Variables)
	if cursor != "" {
		vars["cursor"] = cursor
	}

	params := url.Values{}
	if !ep.GraphQL() {
		for k, v := range vars {
			params.Set(k, fmt.Sprint(v))
		}
		return params, nil
	}

	v, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("%s variables: %w", q.Name, err)
	}
	params.Set("variables", string(v))
	if ep.Features != nil {
		f, err := json.Marshal(ep.Features)
		if err != nil {
			return nil, fmt.Errorf("%s features: %w", q.Name, err)
		}
		params.Set("features", string(f))
	}
	if q.FieldToggles != nil {
		ft, err := json.Marshal(q.FieldToggles)
		if err != nil {
			return nil, fmt.Errorf("%s fieldToggles: %w", q.Name, err)
		}
		params.Set("fieldToggles", string(ft))
	}
	return params, nil
}

// SearchProduct selects the search tab.
type SearchProduct string

const (
	SearchLatest SearchProduct = "Latest"
	SearchTop    SearchProduct = "Top"
	SearchPeople SearchProduct = "People"
	SearchPhotos SearchProduct = "Photos"
	SearchVideos SearchProduct = "Videos"
)

// SearchQuery searches for tweets (or users, for SearchPeople) matching raw.
func SearchQuery(name, raw string, product SearchProduct, limit int) Query {
	if product == "" {
		product = SearchLatest
	}
	return Query{
		Name:     name,
		Endpoint: "SearchTimeline",
		Variables: map[string]any{
			"rawQuery":    raw,
			"count":       20,
			"querySource": "typed_query",
			"product":     string(product),
		},
		FieldToggles: map[string]any{
			"withArticleRichContentState": false,
		},
		Limit: limit,
	}
}

// UserTweetsQuery walks a user's profile timeline.
func UserTweetsQuery(name string, userID uint64, limit int) Query {
	return Query{
		Name:     name,
		Endpoint: "UserTweets",
		Variables: map[string]any{
			"userId":                                 strconv.FormatUint(userID, 10),
			"count":                                  20,
			"includePromotedContent":                 false,
			"withQuickPromoteEligibilityTweetFields": true,
			"withVoice":                              true,
			"withV2Timeline":                         true,
		},
		Limit: limit,
	}
}

// TweetDetailQuery walks the conversation around a tweet.
func TweetDetailQuery(name string, tweetID uint64, limit int) Query {
	return Query{
		Name:     name,
		Endpoint: "TweetDetail",
		Variables: map[string]any{
			"focalTweetId":                           strconv.FormatUint(tweetID, 10),
			"with_rux_injections":                    false,
			"includePromotedContent":                 false,
			"withCommunity":                          true,
			"withQuickPromoteEligibilityTweetFields": true,
			"withBirdwatchNotes":                     true,
			"withVoice":                              true,
			"withV2Timeline":                         true,
		},
		Limit: limit,
	}
}

// FollowersQuery lists the followers of a user.
func FollowersQuery(name string, userID uint64, limit int) Query {
	return userListQuery(name, "Followers", userID, limit)
}

// FollowingQuery lists the accounts a user follows.
func FollowingQuery(name string, userID uint64, limit int) Query {
	return userListQuery(name, "Following", userID, limit)
}

func userListQuery(name, endpoint string, userID uint64, limit int) Query {
	return Query{
		Name:     name,
		Endpoint: endpoint,
		Variables: map[string]any{
			"userId":                 strconv.FormatUint(userID, 10),
			"count":                  100,
			"includePromotedContent": false,
		},
		Limit: limit,
	}
}

// RetweetersQuery lists users who retweeted a tweet.
func RetweetersQuery(name string, tweetID uint64, limit int) Query {
	return Query{
		Name:     name,
		Endpoint: "Retweeters",
		Variables: map[string]any{
			"tweetId":                strconv.FormatUint(tweetID, 10),
			"count":                  20,
			"includePromotedContent": true,
		},
		Limit: limit,
	}
}

// AdaptiveSearchQuery searches through the legacy REST endpoint, whose pages
// reference a globalObjects table.
func AdaptiveSearchQuery(name, raw string, limit int) Query {
	return Query{
		Name:     name,
		Endpoint: "AdaptiveSearch",
		Variables: map[string]any{
			"q":                              raw,
			"count":                          20,
			"query_source":                   "typed_query",
			"tweet_search_mode":              "live",
			"tweet_mode":                     "extended",
			"include_quote_count":            true,
			"include_reply_count":            1,
			"include_ext_alt_text":           true,
			"include_entities":               true,
			"include_user_entities":          true,
			"simple_quoted_tweet":            true,
			"spelling_corrections":           1,
			"ext":                            "mediaStats,highlightedLabel",
			"include_ext_media_availability": true,
		},
		Limit: limit,
	}
}
