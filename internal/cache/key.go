package cache

import (
	"strconv"
	"strings"

	"github.com/matheuskafuri/lingonews/internal/news"
)

// Key builds the memory-tier key for a fetch signature:
// provider:language[:cat:category][:q:query]:page:N
func Key(providerID, language string, category news.Category, query string, page int) string {
	parts := []string{providerID, language}
	if category != "" {
		parts = append(parts, "cat:"+string(category))
	}
	if query != "" {
		parts = append(parts, "q:"+query)
	}
	parts = append(parts, "page:"+strconv.Itoa(page))
	return strings.Join(parts, ":")
}
