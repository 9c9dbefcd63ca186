package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"relative_sorted", "/posts?b=2&a=1", "/posts?a=1&b=2"},
		{"relative_no_query", "/posts", "/posts"},
		{"absolute_sorted", "http://host/posts?userId=1&_limit=5", "http://host/posts?_limit=5&userId=1"},
		{"absolute_empty_path", "http://host", "http://host/"},
		{"scheme_lowercased", "HTTPS://api.example.com/v1", "https://api.example.com/v1"},
		{"fragment_dropped", "http://host/a?x=1#frag", "http://host/a?x=1"},
		{"duplicate_keys_stable", "/s?tag=b&a=0&tag=a", "/s?a=0&tag=b&tag=a"},
		{"encoded_values", "/s?q=hello+world&a=%2F", "/s?a=%2F&q=hello+world"},
		{"empty_pairs_skipped", "/s?&b=1&&a=2", "/s?a=2&b=1"},
		{"not_a_url", "not a url", "not a url"},
		{"bare_word", "posts", "posts"},
		{"bad_escape_kept_raw", "/s?b=%zz&a=100%", "/s?a=100%25&b=%25zz"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"/posts?b=2&a=1",
		"http://host/posts?userId=1",
		"https://h.example:8443/a%2Fb/c?z=%20&y=+",
		"/unicode/caf%C3%A9?name=%C3%A9",
		"http://host",
		"not a url",
		"/s?q=100%&token=x",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeQueryOrderInvariance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Normalize("/posts?b=2&a=1"), Normalize("/posts?a=1&b=2"))
	assert.Equal(t,
		Normalize("http://host/search?q=go&page=2&sort=asc"),
		Normalize("http://host/search?sort=asc&q=go&page=2"))
}

func TestExtractPathname(t *testing.T) {
	t.Parallel()

	t.Run("absolute", func(t *testing.T) {
		assert.Equal(t, "/posts/1", ExtractPathname("http://host/posts/1?x=1"))
	})

	t.Run("relative", func(t *testing.T) {
		assert.Equal(t, "/posts", ExtractPathname("/posts?userId=1"))
	})

	t.Run("root", func(t *testing.T) {
		assert.Equal(t, "/", ExtractPathname("http://host"))
	})

	t.Run("fail_open", func(t *testing.T) {
		assert.Equal(t, "not a url", ExtractPathname("not a url?x=1"))
	})
}

func TestExtractQueryParams(t *testing.T) {
	t.Parallel()

	t.Run("decoded", func(t *testing.T) {
		params := ExtractQueryParams("http://host/s?q=hello+world&a=%2F")
		assert.Equal(t, map[string]string{"q": "hello world", "a": "/"}, params)
	})

	t.Run("last_value_wins", func(t *testing.T) {
		params := ExtractQueryParams("/s?tag=a&tag=b")
		assert.Equal(t, map[string]string{"tag": "b"}, params)
	})

	t.Run("bad_escape_kept_raw", func(t *testing.T) {
		params := ExtractQueryParams("http://host/search?token=secret123&q=100%&k%zz=v")
		assert.Equal(t, map[string]string{"token": "secret123", "q": "100%", "k%zz": "v"}, params)
		assert.Equal(t, "/search", ExtractPathname("http://host/search?token=secret123&q=100%"))
	})

	t.Run("fail_open_empty", func(t *testing.T) {
		params := ExtractQueryParams("not a url?x=1")
		require.NotNil(t, params)
		assert.Empty(t, params)
	})
}

func TestBuildSignature(t *testing.T) {
	t.Parallel()

	sig := BuildSignature("get", "http://host/posts?userId=1")

	assert.Equal(t, "GET", sig.Method)
	assert.Equal(t, "http://host/posts?userId=1", sig.URL)
	assert.Equal(t, "http://host/posts?userId=1", sig.NormalizedURL)
	assert.Equal(t, "/posts", sig.Pathname)
	assert.Equal(t, map[string]string{"userId": "1"}, sig.QueryParams)
	assert.Equal(t, "GET:http://host/posts?userId=1", sig.CacheKey())
}
