package imagesearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowed = []string{"zerochan.net", "pinimg.com"}

func newTestSearcher(t *testing.T, handler http.HandlerFunc) *Searcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSearcher([]string{"key-a", "key-b"}, "engine-1", allowed, 5).WithBaseURL(srv.URL)
}

func TestSearchFiltersDomainsAndExtensions(t *testing.T) {
	searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image", r.URL.Query().Get("searchType"))
		assert.Equal(t, "engine-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "active", r.URL.Query().Get("safe"))
		_, _ = w.Write([]byte(`{"items":[
			{"link":"https://static.zerochan.net/full.1.jpg"},
			{"link":"https://evil.example.com/full.2.jpg"},
			{"link":"https://i.pinimg.com/originals/page.html"},
			{"link":"https://i.pinimg.com/originals/ok.png"}
		]}`))
	})

	urls, err := searcher.Search(context.Background(), "paysage")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://static.zerochan.net/full.1.jpg",
		"https://i.pinimg.com/originals/ok.png",
	}, urls)
}

func TestSearchRotatesKeys(t *testing.T) {
	var keys []string
	searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	for i := 0; i < 3; i++ {
		_, err := searcher.Search(context.Background(), "q")
		require.NoError(t, err)
	}

	require.Len(t, keys, 3)
	assert.Equal(t, []string{"key-a", "key-b", "key-a"}, keys)
}

func TestSearchAPIError(t *testing.T) {
	searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	})

	_, err := searcher.Search(context.Background(), "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSearchWithoutCredentials(t *testing.T) {
	searcher := NewSearcher(nil, "", allowed, 5)
	_, err := searcher.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestIsValidImageURL(t *testing.T) {
	searcher := NewSearcher([]string{"k"}, "e", allowed, 5)

	assert.True(t, searcher.isValidImageURL("https://www.zerochan.net/a.webp"))
	assert.False(t, searcher.isValidImageURL("https://www.zerochan.net/a"))
	assert.False(t, searcher.isValidImageURL("https://other.example.org/a.jpg"))
	assert.False(t, searcher.isValidImageURL("::not a url"))

	// 허용 목록이 비어 있으면 도메인 제한 없이 확장자만 본다
	open := NewSearcher([]string{"k"}, "e", nil, 5)
	assert.True(t, open.isValidImageURL("https://anywhere.example.org/a.gif"))
}
