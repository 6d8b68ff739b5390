// Package embeds builds link-preview embeds for URLs found in message
// content. Crawls run detached from the originating request and memoize
// their results in the shared cache.
package embeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/net/html"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
)

const (
	cacheTTL      = 2 * time.Hour
	fetchTimeout  = 10 * time.Second
	maxRedirects  = 5
	maxBodyBytes  = 8 << 20
	userAgent     = "Mozilla/5.0 (compatible; Eludris/0.4; +https://eludris.com)"
	maxDescLength = 4093
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Crawler turns URLs into embeds.
type Crawler struct {
	cache  *cache.Cache
	client *http.Client
}

// NewCrawler builds a crawler backed by the shared cache.
func NewCrawler(c *cache.Cache) *Crawler {
	return &Crawler{
		cache: c,
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

// ExtractURLs scans content for URLs, deduplicated in first-seen order.
func ExtractURLs(content string) []string {
	seen := map[string]bool{}
	urls := []string{}
	for _, u := range urlPattern.FindAllString(content, -1) {
		u = strings.TrimRight(u, ".,;:!?)")
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Populate builds embeds for every URL in content, bounded by limit. Failed
// URLs are skipped.
func (c *Crawler) Populate(ctx context.Context, content string, limit int) []models.Embed {
	embeds := []models.Embed{}
	for _, u := range ExtractURLs(content) {
		if len(embeds) >= limit {
			break
		}
		embed, err := c.Resolve(ctx, u)
		if err != nil {
			logger.Debug("failed to build embed", "url", u, "error", err)
			continue
		}
		if embed != nil {
			embeds = append(embeds, *embed)
		}
	}
	return embeds
}

// Resolve produces an embed for one URL, consulting the cache first. A nil
// embed with nil error means the URL yielded nothing embeddable.
func (c *Crawler) Resolve(ctx context.Context, rawURL string) (*models.Embed, error) {
	key := "embed:" + rawURL
	if cached, ok, err := c.cache.GetString(ctx, key); err == nil && ok {
		var embed models.Embed
		if err := json.Unmarshal([]byte(cached), &embed); err == nil {
			return &embed, nil
		}
	}

	embed, err := c.crawl(ctx, rawURL)
	if err != nil || embed == nil {
		return nil, err
	}

	if data, err := json.Marshal(embed); err == nil {
		if err := c.cache.SetString(ctx, key, string(data), cacheTTL); err != nil {
			logger.Warn("failed to cache embed", "url", rawURL, "error", err)
		}
	}
	return embed, nil
}

func (c *Crawler) crawl(ctx context.Context, rawURL string) (*models.Embed, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if embed := c.specialCase(ctx, parsed); embed != nil {
		return embed, nil
	}

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	contentType = strings.TrimSpace(contentType)
	switch {
	case contentType == "text/html":
		return c.websiteEmbed(ctx, rawURL, resp.Body)
	case strings.HasPrefix(contentType, "image/"):
		return c.imageEmbed(rawURL, resp.Body)
	case strings.HasPrefix(contentType, "video/"):
		return &models.Embed{Type: models.EmbedTypeVideo, URL: &rawURL}, nil
	}
	return nil, nil
}

func (c *Crawler) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// specialCase handles domains whose oEmbed endpoints beat scraping.
func (c *Crawler) specialCase(ctx context.Context, u *url.URL) *models.Embed {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtu.be":
		return c.youtubeEmbed(ctx, u)
	case "open.spotify.com":
		return c.spotifyEmbed(ctx, u)
	}
	return nil
}

type oEmbed struct {
	Title           string `json:"title"`
	AuthorName      string `json:"author_name"`
	ProviderName    string `json:"provider_name"`
	ThumbnailURL    string `json:"thumbnail_url"`
	ThumbnailWidth  int    `json:"thumbnail_width"`
	ThumbnailHeight int    `json:"thumbnail_height"`
	HTML            string `json:"html"`
}

func (c *Crawler) fetchOEmbed(ctx context.Context, endpoint string) (*oEmbed, error) {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data oEmbed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Crawler) youtubeEmbed(ctx context.Context, u *url.URL) *models.Embed {
	videoID := u.Query().Get("v")
	if videoID == "" && strings.HasSuffix(u.Hostname(), "youtu.be") {
		videoID = strings.Trim(u.Path, "/")
	}
	if videoID == "" {
		return nil
	}

	pageURL := u.String()
	data, err := c.fetchOEmbed(ctx,
		"https://www.youtube.com/oembed?format=json&url="+url.QueryEscape(pageURL))
	if err != nil {
		logger.Debug("youtube oembed fetch failed", "url", pageURL, "error", err)
		return nil
	}

	embed := models.Embed{
		Type:    models.EmbedTypeYouTubeVideo,
		URL:     &pageURL,
		VideoID: &videoID,
	}
	if data.Title != "" {
		embed.Title = &data.Title
	}
	if data.AuthorName != "" {
		embed.Author = &data.AuthorName
	}
	if data.ThumbnailURL != "" {
		embed.Thumbnail = &data.ThumbnailURL
	}
	return &embed
}

func (c *Crawler) spotifyEmbed(ctx context.Context, u *url.URL) *models.Embed {
	pageURL := u.String()
	data, err := c.fetchOEmbed(ctx,
		"https://open.spotify.com/oembed?url="+url.QueryEscape(pageURL))
	if err != nil {
		logger.Debug("spotify oembed fetch failed", "url", pageURL, "error", err)
		return nil
	}

	embed := models.Embed{Type: models.EmbedTypeSpotify, URL: &pageURL}
	if data.Title != "" {
		embed.Title = &data.Title
	}
	if data.AuthorName != "" {
		embed.Author = &data.AuthorName
	}
	if data.ThumbnailURL != "" {
		embed.Image = &models.EmbedImage{URL: data.ThumbnailURL}
		if data.ThumbnailWidth > 0 {
			w, h := data.ThumbnailWidth, data.ThumbnailHeight
			embed.Image.Width, embed.Image.Height = &w, &h
		}
	}
	return &embed
}

func (c *Crawler) imageEmbed(rawURL string, body io.Reader) (*models.Embed, error) {
	cfg, _, err := image.DecodeConfig(io.LimitReader(body, maxBodyBytes))
	embed := models.Embed{Type: models.EmbedTypeImage, URL: &rawURL}
	if err == nil {
		embed.Width, embed.Height = &cfg.Width, &cfg.Height
	}
	return &embed, nil
}

// pageMeta is the interesting subset of an HTML document's head.
type pageMeta struct {
	title       string
	metaTitle   string
	description string
	siteName    string
	imageURL    string
	color       string
}

func (c *Crawler) websiteEmbed(ctx context.Context, rawURL string, body io.Reader) (*models.Embed, error) {
	meta, err := parseMeta(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	embed := models.Embed{Type: models.EmbedTypeWebsite, URL: &rawURL}
	title := meta.metaTitle
	if title == "" {
		title = meta.title
	}
	if title != "" {
		embed.Title = &title
	}
	if meta.description != "" {
		desc := meta.description
		if len(desc) > maxDescLength {
			desc = desc[:maxDescLength] + "..."
		}
		embed.Description = &desc
	}
	if meta.siteName != "" {
		embed.SiteName = &meta.siteName
	}
	if meta.color != "" {
		if color := parseColor(meta.color); color != nil {
			embed.Color = color
		}
	}
	if meta.imageURL != "" {
		img := models.EmbedImage{URL: resolveRef(rawURL, meta.imageURL)}
		// Pre-fetch the preview image for its dimensions.
		if resp, err := c.get(ctx, img.URL); err == nil {
			if cfg, _, err := image.DecodeConfig(io.LimitReader(resp.Body, maxBodyBytes)); err == nil {
				img.Width, img.Height = &cfg.Width, &cfg.Height
			}
			resp.Body.Close()
		}
		embed.Image = &img
	}

	if embed.Title == nil && embed.Description == nil && embed.Image == nil {
		return nil, nil
	}
	return &embed, nil
}

// parseMeta walks the document collecting OpenGraph, Twitter and standard
// meta tags plus the title element.
func parseMeta(r io.Reader) (pageMeta, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return pageMeta{}, err
	}

	var meta pageMeta
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					meta.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var name, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "name", "property":
						name = a.Val
					case "content":
						content = a.Val
					}
				}
				if content == "" {
					break
				}
				switch name {
				case "og:title", "twitter:title":
					if meta.metaTitle == "" {
						meta.metaTitle = content
					}
				case "og:description", "twitter:description", "description":
					if meta.description == "" {
						meta.description = content
					}
				case "og:site_name":
					meta.siteName = content
				case "og:image", "twitter:image":
					if meta.imageURL == "" {
						meta.imageURL = content
					}
				case "theme-color":
					meta.color = content
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return meta, nil
}

func parseColor(s string) *int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return nil
	}
	var color int
	if _, err := fmt.Sscanf(s, "%06x", &color); err != nil {
		return nil
	}
	return &color
}

// resolveRef makes a possibly relative reference absolute against base.
func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
