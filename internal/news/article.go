// Package news holds the article store: the loaded collection, the active
// category filter and its derived view, search results, and bookmarks.
package news

import (
	"strings"

	"github.com/google/uuid"
)

// Article is a single news item. Articles are never mutated once loaded;
// the store only changes which derived collections hold them.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Summary     string `json:"summary"`
	Category    string `json:"category"`
	Author      string `json:"author"`
	PublishedAt string `json:"publishedAt"` // display text, e.g. "2 hours ago"
	ImageURL    string `json:"imageUrl"`
	URL         string `json:"url"`
}

// InCategory reports whether the article's category label matches id, ignoring case.
func (a Article) InCategory(id string) bool {
	return strings.EqualFold(a.Category, id)
}

func (a Article) searchText() string {
	return strings.ToLower(strings.Join([]string{a.Title, a.Content, a.Summary, a.Category, a.Author}, " "))
}

// IDFor derives the opaque article identifier from its source URL.
func IDFor(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Category is a selectable news category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var categories = []Category{
	{ID: "technology", Name: "Technology"},
	{ID: "business", Name: "Business"},
	{ID: "politics", Name: "Politics"},
	{ID: "health", Name: "Health"},
	{ID: "science", Name: "Science"},
	{ID: "sports", Name: "Sports"},
	{ID: "entertainment", Name: "Entertainment"},
	{ID: "world", Name: "World News"},
	{ID: "food", Name: "Food"},
	{ID: "travel", Name: "Travel"},
}

// Categories returns the fixed category list.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsCategory reports whether id names a known category.
func IsCategory(id string) bool {
	for _, c := range categories {
		if strings.EqualFold(c.ID, id) {
			return true
		}
	}
	return false
}

// CategoryName returns the display name for id, or id itself when unknown.
func CategoryName(id string) string {
	for _, c := range categories {
		if strings.EqualFold(c.ID, id) {
			return c.Name
		}
	}
	return id
}
