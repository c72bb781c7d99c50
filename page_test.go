package twitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageLocatesTimeline(t *testing.T) {
	bodies := map[string]string{
		"user timeline_v2": `{"data":{"user":{"result":{"__typename":"User","timeline_v2":{"timeline":{"instructions":[{"type":"TimelineClearCache"}]}}}}}}`,
		"user timeline":    `{"data":{"user":{"result":{"__typename":"User","timeline":{"timeline":{"instructions":[]}}}}}}`,
		"conversation":     `{"data":{"threaded_conversation_with_injections_v2":{"instructions":[]}}}`,
		"search":           `{"data":{"search_by_raw_query":{"search_timeline":{"timeline":{"instructions":[]}}}}}`,
		"retweeters":       `{"data":{"retweeters_timeline":{"timeline":{"instructions":[]}}}}`,
		"legacy":           `{"globalObjects":{"tweets":{},"users":{}},"timeline":{"id":"search","instructions":[]}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePage([]byte(body))
			require.NoError(t, err)
			assert.NotNil(t, p.Cursors)
			assert.Equal(t, body, string(p.Raw()))
			assert.Zero(t, p.ContentCount())
		})
	}
}

func TestParsePageGlobals(t *testing.T) {
	p, err := ParsePage([]byte(`{"globalObjects":{"tweets":{"1":{"id_str":"1"}},"users":{"2":{"id_str":"2"}}},"timeline":{"instructions":[]}}`))
	require.NoError(t, err)
	require.NotNil(t, p.Globals)
	assert.Contains(t, p.Globals.Tweets, "1")
	assert.Contains(t, p.Globals.Users, "2")

	tr, err := p.Globals.tweet("1")
	require.NoError(t, err)
	assert.Equal(t, "1", tr.IDStr)

	tr, err = p.Globals.tweet("404")
	require.NoError(t, err)
	assert.Nil(t, tr)

	var none *GlobalObjects
	ur, err := none.user("2")
	require.NoError(t, err)
	assert.Nil(t, ur)
}

func TestParsePageWithoutTimeline(t *testing.T) {
	p, err := ParsePage([]byte(`{"data":{}}`))
	require.NoError(t, err)
	assert.Zero(t, p.ContentCount())
}

func TestParsePageMalformed(t *testing.T) {
	for _, body := range []string{`{"data":`, `[1,2]`, `"text"`, ``} {
		_, err := ParsePage([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPage, "body %q", body)
	}
}

func TestParsePageAPIErrors(t *testing.T) {
	_, err := ParsePage([]byte(`{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`))

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, errBanned, fe.Class)
	assert.True(t, fe.RateLimited())
	assert.Contains(t, fe.Error(), "Rate limit exceeded")
}

func TestParsePageUnavailableUser(t *testing.T) {
	_, err := ParsePage([]byte(`{"data":{"user":{"result":{"__typename":"UserUnavailable","reason":"Suspended"}}}}`))

	var eu *EntityUnavailableError
	require.ErrorAs(t, err, &eu)
	assert.Equal(t, "UserUnavailable Suspended", eu.Error())
}
