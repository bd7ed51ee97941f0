package news

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"
)

// ArticleID derives a list/cache identity from an article's URL, title and
// position within the page or feed it was read from.
func ArticleID(url, title string, position int) string {
	return ArticleIDAt(url, title, position, time.Now())
}

// ArticleIDAt is ArticleID with an explicit clock. The suffix changes once
// per UTC day, so repeated fetches of an unchanged feed keep their ids.
func ArticleIDAt(url, title string, position int, now time.Time) string {
	s := url + "-" + title + "-" + strconv.Itoa(position)

	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}

	day := now.UTC().Unix() / 86400
	bucket := strconv.FormatInt(day, 36)
	if len(bucket) > 4 {
		bucket = bucket[len(bucket)-4:]
	}
	return strconv.FormatInt(abs, 36) + "_" + bucket
}

// ExternalID is the persistence upsert key for an article URL.
func ExternalID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", sum[:16])
}
