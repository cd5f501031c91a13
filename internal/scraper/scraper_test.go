package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/playproxy/internal/domain"
	"github.com/John-Robertt/playproxy/internal/infra/cache"
)

type pageServer struct {
	*httptest.Server

	mu      sync.Mutex
	body    string
	status  int
	lastURI string
}

func newPageServer(t *testing.T, body string) *pageServer {
	t.Helper()
	s := &pageServer{body: body, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastURI = r.URL.RequestURI()
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *pageServer) LastURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastURI
}

func newTestBackend(t *testing.T, s *pageServer) *Backend {
	t.Helper()
	// TTL=0：每次都走网络，便于断言请求地址。
	store := cache.New(t.TempDir(), 0)
	return New(NewFetcher(s.URL, s.Client(), store))
}

func TestBackend_SearchFiltersByPrefixInOrder(t *testing.T) {
	srv := newPageServer(t, searchPage)
	b := newTestBackend(t, srv)

	items, err := b.Search(context.Background(), "mock.package")
	require.NoError(t, err)
	assert.Equal(t, "/store/search?q=mock.package&c=apps", srv.LastURI())

	require.Len(t, items, 2)
	for i, item := range items {
		n := i + 1
		assert.Equal(t, "mock.package.app"+itoa(n), item.PackageName)
		assert.Equal(t, "http://share.url/app"+itoa(n), item.ShareURL)
		assert.Equal(t, "App"+itoa(n), item.Title)
		assert.Equal(t, "Developer"+itoa(n), item.Creator)
		require.NotNil(t, item.CoverImage)
		assert.Equal(t, "image"+itoa(n)+"-main", item.CoverImage.Main)
		assert.Equal(t, "image"+itoa(n)+"-small", item.CoverImage.Small)
		assert.Equal(t, "image"+itoa(n)+"-large", item.CoverImage.Large)
		require.NotNil(t, item.DescriptionHTML)
		assert.Equal(t, "Description for<br/><br/><br/><br/> application"+itoa(n), *item.DescriptionHTML)

		// listing 模式没有评分、多图与数值字段
		assert.Nil(t, item.Ratings)
		assert.Empty(t, item.Images)
		assert.Nil(t, item.NumDownloads)
		assert.Nil(t, item.VersionCode)
	}
}

func TestBackend_SearchNoMatchesIsEmpty(t *testing.T) {
	srv := newPageServer(t, searchPage)
	b := newTestBackend(t, srv)

	items, err := b.Search(context.Background(), "nothing.matches")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestBackend_SearchRejectsEmptyPrefix(t *testing.T) {
	srv := newPageServer(t, searchPage)
	b := newTestBackend(t, srv)

	_, err := b.Search(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	assert.Equal(t, "", srv.LastURI())
}

func TestBackend_Developer(t *testing.T) {
	srv := newPageServer(t, developerPage)
	b := newTestBackend(t, srv)

	items, err := b.Developer(context.Background(), "Test Dev")
	require.NoError(t, err)
	assert.Equal(t, "/store/apps/developer?id=Test+Dev", srv.LastURI())

	require.Len(t, items, 2)
	for i, item := range items {
		n := itoa(i + 1)
		assert.Equal(t, "Test Dev", item.Creator)
		assert.Equal(t, srv.URL+"/store/apps/details?id=mock.package.app"+n, item.ShareURL)
		require.NotNil(t, item.CoverImage)
		assert.Equal(t, "https://img.test/image"+n+"-main", item.CoverImage.Main)
		assert.Equal(t, "https://img.test/image"+n+"-small", item.CoverImage.Small)
		assert.Equal(t, "https://img.test/image"+n+"-large", item.CoverImage.Large)
	}
}

func TestBackend_Details(t *testing.T) {
	srv := newPageServer(t, detailsPage)
	b := newTestBackend(t, srv)

	item, ok, err := b.Details(context.Background(), "mock.package.app")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/store/apps/details?id=mock.package.app", srv.LastURI())

	assert.Equal(t, "mock.package.app", item.PackageName)
	require.NotNil(t, item.Ratings)
	assert.Equal(t, 3.2, item.Ratings.Stars)
	assert.Equal(t, int64(42), item.Ratings.Total)
	assert.Equal(t, [5]int64{10, 20, 30, 40, 50}, [5]int64(item.Ratings.Count))
	assert.Equal(t, "PublishDate", item.UploadDate)
	assert.Equal(t, "DownloadCount", item.DownloadCount)
}

func TestBackend_DetailsNonexistentIsAbsent(t *testing.T) {
	srv := newPageServer(t, detailsOtherApp)
	b := newTestBackend(t, srv)

	_, ok, err := b.Details(context.Background(), "mock.package.app")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackend_NotFoundIsAbsentAndNotCached(t *testing.T) {
	srv := newPageServer(t, "<html>not found</html>")
	srv.status = http.StatusNotFound
	store := cache.New(t.TempDir(), time.Hour)
	b := New(NewFetcher(srv.URL, srv.Client(), store))

	item, ok, err := b.Details(context.Background(), "no.such.app")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.Item{}, item)
	assert.Equal(t, "/store/apps/details?id=no.such.app", srv.LastURI())

	items, err := b.Developer(context.Background(), "Nobody Here")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, entries, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, entries, "404 页面不应写入缓存")
}

func TestBackend_NameAndNetworkError(t *testing.T) {
	srv := newPageServer(t, "")
	srv.status = http.StatusInternalServerError
	b := newTestBackend(t, srv)

	assert.Equal(t, "scraper", b.Name())
	_, _, err := b.Details(context.Background(), "a.b")
	assert.Error(t, err)
}

func itoa(n int) string { return string(rune('0' + n)) }
