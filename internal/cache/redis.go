package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/news"
)

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	redisConnectTimeout = 5 * time.Second
	defaultRedisPrefix  = "lingonews"
	maxWatchRetries     = 3
)

// RedisStore keeps one hash per article plus sorted-set indexes scored by
// publish time (for reads) and cache time (for pruning).
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	log    logger.Logger
	now    func() time.Time
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(cfg RedisConfig, log logger.Logger) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStore(client, cfg.Prefix, log), nil
}

func NewRedisStore(client redis.UniversalClient, prefix string, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, log: log, now: time.Now}
}

func (s *RedisStore) articleKey(externalID string) string {
	return s.prefix + ":article:" + externalID
}

func (s *RedisStore) indexKey(language string, category news.Category) string {
	k := s.prefix + ":lang:" + language
	if category != "" {
		k += ":cat:" + string(category)
	}
	return k
}

func (s *RedisStore) cachedKey() string {
	return s.prefix + ":cached"
}

func (s *RedisStore) Upsert(ctx context.Context, articles []news.Article) (int, error) {
	now := s.now().UnixMilli()
	saved := 0
	for _, a := range articles {
		if err := s.upsertOne(ctx, a, now); err != nil {
			s.log.Warn("persisting article failed",
				logger.String("title", a.Title),
				logger.String("url", a.URL),
				logger.Error(err),
			)
			continue
		}
		saved++
	}
	return saved, nil
}

// upsertOne writes a under WATCH so the indexes always follow the language
// and category first recorded in the hash.
func (s *RedisStore) upsertOne(ctx context.Context, a news.Article, now int64) error {
	extID := news.ExternalID(a.URL)
	key := s.articleKey(extID)

	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			return s.writeArticle(ctx, tx, key, extID, a, now)
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("upserting %s: %w", extID, err)
	}
	return nil
}

func (s *RedisStore) writeArticle(ctx context.Context, tx *redis.Tx, key, extID string, a news.Article, now int64) error {
	stored, err := tx.HMGet(ctx, key, "language", "category").Result()
	if err != nil {
		return err
	}
	lang, cat := a.Language, a.Category
	if l, ok := stored[0].(string); ok {
		lang = l
		c, _ := stored[1].(string)
		cat = news.Category(c)
	}
	published := float64(a.PublishedAt.UnixMilli())

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created := map[string]string{
			"id":           a.ID,
			"url":          a.URL,
			"source":       a.Source,
			"author":       a.Author,
			"language":     a.Language,
			"category":     string(a.Category),
			"difficulty":   a.Difficulty,
			"published_at": strconv.FormatInt(a.PublishedAt.UnixMilli(), 10),
			"created_at":   strconv.FormatInt(now, 10),
		}
		for field, v := range created {
			pipe.HSetNX(ctx, key, field, v)
		}
		pipe.HSet(ctx, key,
			"title", a.Title,
			"description", a.Description,
			"content", a.Content,
			"image_url", a.ImageURL,
			"cached_at", strconv.FormatInt(now, 10),
		)
		pipe.ZAddNX(ctx, s.indexKey(lang, ""), redis.Z{Score: published, Member: extID})
		if cat != "" {
			pipe.ZAddNX(ctx, s.indexKey(lang, cat), redis.Z{Score: published, Member: extID})
		}
		pipe.ZAdd(ctx, s.cachedKey(), redis.Z{Score: float64(now), Member: extID})
		return nil
	})
	return err
}

func (s *RedisStore) ReadByLanguageAndCategory(ctx context.Context, language string, category news.Category, limit, offset int) ([]news.Article, error) {
	if limit <= 0 {
		limit = news.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(language, category), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.articleKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading articles: %w", err)
	}

	articles := make([]news.Article, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			// index entry outlived its hash
			continue
		}
		articles = append(articles, articleFromHash(h))
	}
	return articles, nil
}

func articleFromHash(h map[string]string) news.Article {
	published, _ := strconv.ParseInt(h["published_at"], 10, 64)
	return news.Article{
		ID:          h["id"],
		Title:       h["title"],
		Description: h["description"],
		Content:     h["content"],
		URL:         h["url"],
		ImageURL:    h["image_url"],
		Source:      h["source"],
		Author:      h["author"],
		PublishedAt: time.UnixMilli(published),
		Language:    h["language"],
		Category:    news.Category(h["category"]),
		Difficulty:  h["difficulty"],
	}
}

func (s *RedisStore) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age).UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, s.cachedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("finding stale articles: %w", err)
	}

	removed := 0
	for _, id := range ids {
		key := s.articleKey(id)
		fields, err := s.client.HMGet(ctx, key, "language", "category").Result()
		if err != nil {
			return removed, fmt.Errorf("reading %s: %w", id, err)
		}
		lang, _ := fields[0].(string)
		cat, _ := fields[1].(string)

		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.cachedKey(), id)
			if lang != "" {
				pipe.ZRem(ctx, s.indexKey(lang, ""), id)
				if cat != "" {
					pipe.ZRem(ctx, s.indexKey(lang, news.Category(cat)), id)
				}
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("pruning %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.cachedKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
