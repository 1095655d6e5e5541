// Package catalog serves the sample article collection embedded in the binary.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/newsdesk/internal/news"
)

//go:embed articles.yaml
var articlesYAML []byte

type entry struct {
	Title       string `yaml:"title"`
	Content     string `yaml:"content"`
	Summary     string `yaml:"summary"`
	Category    string `yaml:"category"`
	Author      string `yaml:"author"`
	PublishedAt string `yaml:"published_at"`
	ImageURL    string `yaml:"image_url"`
	URL         string `yaml:"url"`
}

type document struct {
	Articles []entry `yaml:"articles"`
}

// Catalog is a fixed article collection. It implements news.Source.
type Catalog struct {
	articles []news.Article
}

var _ news.Source = (*Catalog)(nil)

// New loads the embedded sample collection.
func New() (*Catalog, error) {
	return Parse(articlesYAML)
}

// Parse builds a Catalog from YAML. Article IDs are derived from each URL.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Articles))
	articles := make([]news.Article, 0, len(doc.Articles))
	for i, e := range doc.Articles {
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("catalog article %d: title is required", i)
		}
		if e.URL == "" {
			return nil, fmt.Errorf("catalog article %q: url is required", e.Title)
		}
		if seen[e.URL] {
			return nil, fmt.Errorf("catalog article %q: duplicate url %s", e.Title, e.URL)
		}
		seen[e.URL] = true

		articles = append(articles, news.Article{
			ID:          news.IDFor(e.URL),
			Title:       e.Title,
			Content:     e.Content,
			Summary:     e.Summary,
			Category:    e.Category,
			Author:      e.Author,
			PublishedAt: e.PublishedAt,
			ImageURL:    e.ImageURL,
			URL:         e.URL,
		})
	}
	return &Catalog{articles: articles}, nil
}

// Articles returns a copy of the collection in catalog order.
func (c *Catalog) Articles(ctx context.Context) ([]news.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(c.articles), nil
}

// Len returns the number of articles in the catalog.
func (c *Catalog) Len() int {
	return len(c.articles)
}
