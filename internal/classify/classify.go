// Package classify assigns a topical category to articles whose source did
// not tag one, using weighted keyword matches.
package classify

import (
	"strings"
	"unicode"

	"github.com/matheuskafuri/lingonews/internal/news"
)

var categoryKeywords = map[news.Category][]string{
	news.Business: {
		"market", "stock", "shares", "economy", "economic", "inflation", "bank",
		"trade", "tariff", "profit", "revenue", "investor", "earnings", "ceo",
		"company", "merger", "startup", "interest rate", "central bank", "gdp",
	},
	news.Technology: {
		"technology", "tech", "software", "ai", "artificial intelligence", "chip",
		"semiconductor", "smartphone", "iphone", "android", "app", "internet",
		"cyber", "hacker", "robot", "computer", "google", "apple", "microsoft",
	},
	news.Science: {
		"science", "scientist", "research", "study", "space", "nasa", "planet",
		"climate", "fossil", "species", "physics", "astronomer", "telescope",
		"discovery", "experiment", "rocket", "moon", "mars",
	},
	news.Health: {
		"health", "hospital", "doctor", "patient", "disease", "virus", "vaccine",
		"cancer", "medical", "medicine", "drug", "nhs", "covid", "outbreak",
		"mental health", "obesity", "diet",
	},
	news.Sports: {
		"football", "soccer", "tennis", "cricket", "rugby", "olympic", "olympics",
		"championship", "league", "match", "tournament", "goal", "coach",
		"world cup", "premier league", "nba", "f1", "grand prix", "athlete",
	},
	news.Entertainment: {
		"film", "movie", "music", "album", "singer", "actor", "actress",
		"festival", "celebrity", "oscar", "grammy", "netflix", "concert",
		"box office", "television", "tv series", "theatre",
	},
}

// Classify picks the category whose keywords best match title and
// description. Title matches count double; ties go to the earlier category
// in news.Categories order. No match yields news.General.
func Classify(title, description string) news.Category {
	titleTokens := tokenize(title)
	descTokens := tokenize(description)
	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)

	best := news.General
	bestScore := 0
	for _, cat := range news.Categories() {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(kw, " ") {
				// Multi-word keyword: check in pre-lowered text
				if strings.Contains(titleLower, kw) {
					score += 2
				}
				if strings.Contains(descLower, kw) {
					score++
				}
				continue
			}
			score += 2 * countMatches(titleTokens, kw)
			score += countMatches(descTokens, kw)
		}
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}
	return best
}

// Fill sets the category of every untagged article.
func Fill(articles []news.Article) {
	for i := range articles {
		if articles[i].Category == "" {
			articles[i].Category = Classify(articles[i].Title, articles[i].Description)
		}
	}
}

// countMatches counts tokens equal to kw or extending it with a plural or
// inflection suffix ("markets", "vaccines").
func countMatches(tokens []string, kw string) int {
	n := 0
	for _, t := range tokens {
		if t == kw || (strings.HasPrefix(t, kw) && len(t)-len(kw) <= 3 && len(kw) > 3) {
			n++
		}
	}
	return n
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
