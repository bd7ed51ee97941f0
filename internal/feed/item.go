package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
)

// imageURL picks media:content, then an image enclosure, then any enclosure,
// then the item image.
func imageURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, c := range media["content"] {
			if u := c.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	var fallback string
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
		if fallback == "" {
			fallback = enc.URL
		}
	}
	if fallback != "" {
		return fallback
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func author(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if dc := item.DublinCoreExt; dc != nil && len(dc.Creator) > 0 {
		return dc.Creator[0]
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
