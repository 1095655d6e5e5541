// Package collect builds the article collection from RSS/Atom feeds.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/TobiSchelling/newsdesk/internal/news"
)

const (
	maxPerFeed = 20
	maxSummary = 240
	// Bodies shorter than this get the linked page fetched when content
	// fetching is enabled.
	minContentLen = 280
)

// FeedConfig is a single feed and the category its items are filed under.
type FeedConfig struct {
	URL      string
	Name     string
	Category string
}

// FeedSource reads articles from a fixed list of feeds. It implements
// news.Source; every call re-reads the feeds.
type FeedSource struct {
	feeds   []FeedConfig
	parser  *gofeed.Parser
	fetcher *ContentFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a FeedSource.
type Option func(*FeedSource)

// WithContentFetcher enables full-page extraction for items with a short body.
func WithContentFetcher(f *ContentFetcher) Option {
	return func(s *FeedSource) { s.fetcher = f }
}

// WithHTTPClient sets the client used to download feeds.
func WithHTTPClient(c *http.Client) Option {
	return func(s *FeedSource) { s.parser.Client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *FeedSource) { s.logger = l }
}

// WithClock sets the reference time for the relative publish text.
func WithClock(now func() time.Time) Option {
	return func(s *FeedSource) { s.now = now }
}

// NewFeedSource creates a source over feeds.
func NewFeedSource(feeds []FeedConfig, opts ...Option) *FeedSource {
	s := &FeedSource{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		logger: slog.Default(),
		now:    time.Now,
	}
	s.parser.UserAgent = "newsdesk/1.0 (news reader)"
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Articles parses every feed in order. A feed that fails is logged and
// skipped; items whose link was already seen are dropped. It fails only when
// no feed could be read.
func (s *FeedSource) Articles(ctx context.Context) ([]news.Article, error) {
	var all []news.Article
	var errs []error
	for _, fc := range s.feeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		articles, err := s.parseFeed(ctx, fc, name)
		if err != nil {
			s.logger.Warn("failed to parse feed", "url", fc.URL, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", fc.URL, err))
			continue
		}
		s.logger.Debug("parsed feed", "name", name, "articles", len(articles))
		all = append(all, articles...)
	}
	if len(s.feeds) > 0 && len(errs) == len(s.feeds) {
		return nil, fmt.Errorf("reading feeds: %w", errors.Join(errs...))
	}
	return lo.UniqBy(all, func(a news.Article) string { return a.ID }), nil
}

func (s *FeedSource) parseFeed(ctx context.Context, fc FeedConfig, sourceName string) ([]news.Article, error) {
	feed, err := s.parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var articles []news.Article
	for _, item := range feed.Items {
		if len(articles) >= maxPerFeed {
			break
		}
		a, ok := parseItem(item, fc.Category, sourceName, now)
		if !ok {
			continue
		}
		if s.fetcher != nil && len(a.Content) < minContentLen {
			if body := s.fetcher.Fetch(ctx, a.URL); body != "" {
				a.Content = body
			}
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func parseItem(item *gofeed.Item, category, sourceName string, now time.Time) (news.Article, bool) {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return news.Article{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return news.Article{}, false
	}

	var published string
	if item.PublishedParsed != nil {
		published = humanize.RelTime(*item.PublishedParsed, now, "ago", "from now")
	} else if item.UpdatedParsed != nil {
		published = humanize.RelTime(*item.UpdatedParsed, now, "ago", "from now")
	}

	description := stripHTML(item.Description)
	content := stripHTML(item.Content)
	if content == "" {
		content = description
	}
	summary := description
	if summary == "" {
		summary = content
	}

	return news.Article{
		ID:          news.IDFor(itemURL),
		Title:       title,
		Content:     content,
		Summary:     truncate(summary, maxSummary),
		Category:    categoryLabel(category),
		Author:      itemAuthor(item, sourceName),
		PublishedAt: published,
		ImageURL:    itemImage(item),
		URL:         itemURL,
	}, true
}

// categoryLabel title-cases a category id so the label matches the id
// case-insensitively, as the sample data does ("world" -> "World").
func categoryLabel(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

func itemAuthor(item *gofeed.Item, fallback string) string {
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			return strings.TrimSpace(p.Name)
		}
	}
	return fallback
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}

// stripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Block boundaries become spaces.
func stripHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, td").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

var _ news.Source = (*FeedSource)(nil)
