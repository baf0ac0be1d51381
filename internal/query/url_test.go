package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURLHTTPTruncation(t *testing.T) {
	value := "/go.php?url=https://cdn.example.com/a.m3u8"
	for _, base := range []string{"http://h/", "https://other.example/path/", "not a url"} {
		assert.Equal(t, "https://cdn.example.com/a.m3u8", ResolveURL("href", value, base), base)
	}
}

func TestResolveURLRelative(t *testing.T) {
	tests := []struct {
		attr, value, base, want string
	}{
		{"href", "/x", "http://h/", "http://h/x"},
		{"href", "x/y.html", "http://h/a/b.html", "http://h/a/x/y.html"},
		{"src", "../img.png", "https://h.example/a/b/", "https://h.example/a/img.png"},
		{"data-src", "//cdn.example/p.jpg", "https://h.example/", "https://cdn.example/p.jpg"},
		{"data-play", "?id=3", "http://h/play", "http://h/play?id=3"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := ResolveURL(tt.attr, tt.value, tt.base)
			assert.Equal(t, tt.want, got)

			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.True(t, u.IsAbs())
		})
	}
}

func TestResolveURLPassThrough(t *testing.T) {
	assert.Equal(t, "/x", ResolveURL("title", "/x", "http://h/"))
	assert.Equal(t, "thunder://abc", ResolveURL("href", "thunder://abc", "http://h/"))
	assert.Equal(t, "ws://h/sock", ResolveURL("src", "ws://h/sock", "http://h/"))
	assert.Equal(t, "", ResolveURL("href", "", "http://h/"))
}

func TestLinkableAttrPattern(t *testing.T) {
	tests := []struct {
		attr string
		want bool
	}{
		{"href", true},
		{"src", true},
		{"data-original", true},
		{"data-anything", true},
		{"url-x", true},
		{"src-set", true},
		{"lazy-play", true},
		{"style", true},
		{"title", false},
		{"alt", false},
		{"class", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LinkableAttrPattern.MatchString(tt.attr), tt.attr)
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://h/a/", "b", "http://h/a/b"},
		{"http://h/a/", "https://x/y", "https://x/y"},
		{"http://h/a", "", "http://h/a"},
		{"site/", "/p", "site/p"},
		{"site", "p", "site/p"},
		{"site/", "p", "site/p"},
		{"site", "/p", "site/p"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.ref), tt.base+" + "+tt.ref)
	}
}

func TestUnwrapCSSURL(t *testing.T) {
	assert.Equal(t, "/a.jpg", unwrapCSSURL(`background:url("/a.jpg") no-repeat`))
	assert.Equal(t, "/a.jpg", unwrapCSSURL(`background:url('/a.jpg')`))
	assert.Equal(t, "/a.jpg", unwrapCSSURL(`background:url(/a.jpg)`))
	assert.Equal(t, "color:red", unwrapCSSURL("color:red"))
}

func TestJSONGet(t *testing.T) {
	doc := `{"page":2,"list":[{"vod_id":11,"vod_name":"A"},{"vod_id":12,"vod_name":"B"}]}`

	assert.Equal(t, "2", JSONGet(doc, "page"))
	assert.Equal(t, "2", JSONGet(doc, "$.page"))
	assert.Equal(t, "A", JSONGet(doc, "list.0.vod_name"))
	assert.Equal(t, `{"vod_id":12,"vod_name":"B"}`, JSONGet(doc, "list.1"))
	assert.Equal(t, "", JSONGet(doc, "missing"))
	assert.Equal(t, "", JSONGet("{broken", "page"))

	assert.Equal(t, []string{"A", "B"}, JSONGetAll(doc, "list.#.vod_name"))
	assert.Equal(t, []string{"2"}, JSONGetAll(doc, "page"))
	assert.Empty(t, JSONGetAll(doc, "nope"))
}
