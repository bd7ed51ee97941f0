package feed

import (
	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/news"
)

func BBCNewsConfig() Config {
	return Config{
		ID:          "bbc",
		Name:        "BBC News",
		Description: "BBC world news",
		Feeds: []Source{
			{URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Language: "en", Category: news.General},
			{URL: "https://feeds.bbci.co.uk/news/business/rss.xml", Language: "en", Category: news.Business},
			{URL: "https://feeds.bbci.co.uk/news/technology/rss.xml", Language: "en", Category: news.Technology},
			{URL: "https://feeds.bbci.co.uk/news/science_and_environment/rss.xml", Language: "en", Category: news.Science},
			{URL: "https://feeds.bbci.co.uk/news/health/rss.xml", Language: "en", Category: news.Health},
			{URL: "https://feeds.bbci.co.uk/sport/rss.xml", Language: "en", Category: news.Sports},
			{URL: "https://feeds.bbci.co.uk/news/entertainment_and_arts/rss.xml", Language: "en", Category: news.Entertainment},
		},
	}
}

// BBCLearningConfig covers the BBC Learning English programmes, tagged with
// the CEFR level each one targets.
func BBCLearningConfig() Config {
	return Config{
		ID:          "bbc-learning",
		Name:        "BBC Learning English",
		Description: "Learning content for English students",
		Feeds: []Source{
			{URL: "https://www.bbc.co.uk/learningenglish/english/features/6-minute-english/rss", Language: "en", Category: news.General, Difficulty: "B1"},
			{URL: "https://www.bbc.co.uk/learningenglish/english/features/news-review/rss", Language: "en", Category: news.General, Difficulty: "B2"},
			{URL: "https://www.bbc.co.uk/learningenglish/english/features/the-english-we-speak/rss", Language: "en", Category: news.General, Difficulty: "A2"},
			{URL: "https://www.bbc.co.uk/learningenglish/english/features/lingohack/rss", Language: "en", Category: news.General, Difficulty: "B2"},
		},
	}
}

func CNNConfig() Config {
	return Config{
		ID:          "cnn",
		Name:        "CNN",
		Description: "CNN International News",
		Feeds: []Source{
			{URL: "http://rss.cnn.com/rss/edition_world.rss", Language: "en", Category: news.General},
			{URL: "http://rss.cnn.com/rss/money_news_international.rss", Language: "en", Category: news.Business},
			{URL: "http://rss.cnn.com/rss/edition_technology.rss", Language: "en", Category: news.Technology},
			{URL: "http://rss.cnn.com/rss/edition_space.rss", Language: "en", Category: news.Science},
			{URL: "http://rss.cnn.com/rss/edition_sport.rss", Language: "en", Category: news.Sports},
			{URL: "http://rss.cnn.com/rss/edition_entertainment.rss", Language: "en", Category: news.Entertainment},
		},
	}
}

func NHKWorldConfig() Config {
	return Config{
		ID:          "nhk-world",
		Name:        "NHK World",
		Description: "NHK World Japan news",
		Feeds: []Source{
			{URL: "https://www3.nhk.or.jp/rss/news/cat0.xml", Language: "ja", Category: news.General},
		},
	}
}

// Presets returns the built-in feed configurations keyed by provider ID.
func Presets() map[string]Config {
	return map[string]Config{
		"bbc":          BBCNewsConfig(),
		"bbc-learning": BBCLearningConfig(),
		"cnn":          CNNConfig(),
		"nhk-world":    NHKWorldConfig(),
	}
}

func NewBBCNews(log logger.Logger, opts ...Option) *Provider {
	return New(BBCNewsConfig(), log, opts...)
}

func NewBBCLearning(log logger.Logger, opts ...Option) *Provider {
	return New(BBCLearningConfig(), log, opts...)
}

func NewCNN(log logger.Logger, opts ...Option) *Provider {
	return New(CNNConfig(), log, opts...)
}
