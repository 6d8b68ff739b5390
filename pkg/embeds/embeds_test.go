package embeds

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
)

func newTestCrawler(t *testing.T) *Crawler {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return NewCrawler(c)
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestExtractURLs(t *testing.T) {
	t.Run("FindsAndDeduplicates", func(t *testing.T) {
		urls := ExtractURLs("see https://a.example and http://b.example, also https://a.example again")
		assert.Equal(t, []string{"https://a.example", "http://b.example"}, urls)
	})

	t.Run("StripsTrailingPunctuation", func(t *testing.T) {
		urls := ExtractURLs("look at https://a.example/page!")
		assert.Equal(t, []string{"https://a.example/page"}, urls)
	})

	t.Run("NoURLs", func(t *testing.T) {
		assert.Empty(t, ExtractURLs("just words"))
	})
}

func TestCrawlerWebsiteEmbed(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<!DOCTYPE html><html><head>
				<title>Fallback title</title>
				<meta property="og:title" content="Example page">
				<meta property="og:description" content="A page about examples">
				<meta property="og:site_name" content="Example">
				<meta property="og:image" content="/preview.png">
				<meta name="theme-color" content="#ff7f00">
			</head><body>hi</body></html>`))
		case "/preview.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes(t, 64, 48))
		case "/plain":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head></head><body>nothing to see</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCrawler(t)

	t.Run("OpenGraphMetadata", func(t *testing.T) {
		embed, err := c.Resolve(ctx, srv.URL+"/page")
		require.NoError(t, err)
		require.NotNil(t, embed)

		assert.Equal(t, models.EmbedTypeWebsite, embed.Type)
		assert.Equal(t, "Example page", *embed.Title)
		assert.Equal(t, "A page about examples", *embed.Description)
		assert.Equal(t, "Example", *embed.SiteName)
		assert.Equal(t, 0xff7f00, *embed.Color)

		require.NotNil(t, embed.Image)
		assert.Equal(t, srv.URL+"/preview.png", embed.Image.URL)
		assert.Equal(t, 64, *embed.Image.Width)
		assert.Equal(t, 48, *embed.Image.Height)
	})

	t.Run("MetalessPageYieldsNothing", func(t *testing.T) {
		embed, err := c.Resolve(ctx, srv.URL+"/plain")
		require.NoError(t, err)
		assert.Nil(t, embed)
	})

	t.Run("ErrorStatusFails", func(t *testing.T) {
		_, err := c.Resolve(ctx, srv.URL+"/missing")
		assert.Error(t, err)
	})
}

func TestCrawlerImageEmbed(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes(t, 100, 50))
	}))
	defer srv.Close()

	c := newTestCrawler(t)
	embed, err := c.Resolve(ctx, srv.URL+"/pic.png")
	require.NoError(t, err)
	require.NotNil(t, embed)

	assert.Equal(t, models.EmbedTypeImage, embed.Type)
	assert.Equal(t, 100, *embed.Width)
	assert.Equal(t, 50, *embed.Height)
}

func TestCrawlerVideoEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
	}))
	defer srv.Close()

	c := newTestCrawler(t)
	embed, err := c.Resolve(context.Background(), srv.URL+"/clip.mp4")
	require.NoError(t, err)
	require.NotNil(t, embed)
	assert.Equal(t, models.EmbedTypeVideo, embed.Type)
}

func TestCrawlerMemoizesResults(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Cached"></head></html>`))
	}))
	defer srv.Close()

	ctx := context.Background()
	c := newTestCrawler(t)

	first, err := c.Resolve(ctx, srv.URL)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.Resolve(ctx, srv.URL)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, "Cached", *second.Title)
	assert.Equal(t, int64(1), hits.Load())
}

func TestCrawlerPopulate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="T"></head></html>`))
	}))
	defer srv.Close()

	c := newTestCrawler(t)
	content := "a " + srv.URL + "/1 b " + srv.URL + "/2 c " + srv.URL + "/3"

	embeds := c.Populate(context.Background(), content, 2)
	assert.Len(t, embeds, 2)
}

func TestParseColor(t *testing.T) {
	require.NotNil(t, parseColor("#00ff00"))
	assert.Equal(t, 0x00ff00, *parseColor("#00ff00"))
	assert.Nil(t, parseColor("green"))
	assert.Nil(t, parseColor("#fff"))
}
