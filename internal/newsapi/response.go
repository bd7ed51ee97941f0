package newsapi

import (
	"fmt"
	"time"

	"github.com/matheuskafuri/lingonews/internal/news"
)

type apiResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
	Code         string       `json:"code,omitempty"`
	Message      string       `json:"message,omitempty"`
}

type apiArticle struct {
	Source struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
	Content     *string `json:"content"`
}

// publishedLayouts are tried in order; upstream sources occasionally drop
// the zone or the seconds.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parsePublished(s string) (time.Time, error) {
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized publishedAt %q", s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (a apiArticle) toArticle(position int, language string, category news.Category) (news.Article, error) {
	published, err := parsePublished(a.PublishedAt)
	if err != nil {
		return news.Article{}, err
	}
	desc := deref(a.Description)
	content := deref(a.Content)
	if content == "" {
		content = desc
	}
	return news.Article{
		ID:          news.ArticleID(a.URL, a.Title, position),
		Title:       a.Title,
		Description: desc,
		Content:     content,
		URL:         a.URL,
		ImageURL:    deref(a.URLToImage),
		Source:      a.Source.Name,
		Author:      deref(a.Author),
		PublishedAt: published,
		Language:    language,
		Category:    category,
	}, nil
}
