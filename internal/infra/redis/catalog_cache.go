package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
)

// CatalogCache caches themes and question pools in Redis and falls back to a loader on miss.
// Themes are stored as: SET  quiz:theme:{code} {json}
// Pools are stored as:  HSET quiz:theme:{themeID}:questions {questionID} {json}
// Only playable records are cached; draws are taken from the cached pool so every
// instance shares one copy.
type CatalogCache struct {
	client  *redis.Client
	loader  app.CatalogLoader
	log     *zap.Logger
	ttl     time.Duration
	sf      singleflight.Group
	sampler *app.Sampler
}

func NewCatalogCache(client *redis.Client, loader app.CatalogLoader, ttl time.Duration, sampler *app.Sampler) *CatalogCache {
	if sampler == nil {
		sampler = app.NewSampler()
	}
	return &CatalogCache{
		client:  client,
		loader:  loader,
		log:     zap.NewNop(),
		ttl:     ttl,
		sampler: sampler,
	}
}

// WithLogger reports rejected question records to log.
func (c *CatalogCache) WithLogger(log *zap.Logger) *CatalogCache {
	if log != nil {
		c.log = log
	}
	return c
}

func (c *CatalogCache) LoadTheme(ctx context.Context, code string) (domain.Theme, error) {
	key := themeKey(code)
	if theme, ok := c.cachedTheme(ctx, key); ok {
		return theme, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if theme, ok := c.cachedTheme(ctx, key); ok {
			return theme, nil
		}
		theme, err := c.loader.LoadTheme(ctx, code)
		if err != nil {
			return domain.Theme{}, err
		}
		if raw, err := json.Marshal(theme); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return theme, nil
	})
	if err != nil {
		return domain.Theme{}, err
	}
	return result.(domain.Theme), nil
}

func (c *CatalogCache) LoadRandomQuestions(ctx context.Context, themeID int64, count int) ([]domain.QuestionRecord, error) {
	pool, err := c.pool(ctx, themeID)
	if err != nil {
		return nil, err
	}
	return c.sampler.Draw(pool, count), nil
}

// ListThemes is not cached; question counts change as content is edited.
func (c *CatalogCache) ListThemes(ctx context.Context) ([]domain.ThemeSummary, error) {
	return c.loader.ListThemes(ctx)
}

// Invalidate drops the cached theme and its pool.
func (c *CatalogCache) Invalidate(ctx context.Context, theme domain.Theme) error {
	return c.client.Del(ctx, themeKey(theme.Code), questionsKey(theme.ID)).Err()
}

func (c *CatalogCache) pool(ctx context.Context, themeID int64) ([]domain.QuestionRecord, error) {
	key := questionsKey(themeID)
	if records, ok := c.cachedPool(ctx, key); ok {
		return records, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if records, ok := c.cachedPool(ctx, key); ok {
			return records, nil
		}
		records, err := c.loader.LoadQuestions(ctx, themeID)
		if err != nil {
			return nil, err
		}
		records = app.PlayablePool(records, themeID, c.log)
		if len(records) == 0 {
			return records, nil
		}

		pipe := c.client.Pipeline()
		for _, rec := range records {
			raw, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, strconv.FormatInt(rec.ID, 10), raw)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRecord), nil
}

func (c *CatalogCache) cachedTheme(ctx context.Context, key string) (domain.Theme, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Theme{}, false
	}
	var theme domain.Theme
	if err := json.Unmarshal(raw, &theme); err != nil {
		return domain.Theme{}, false
	}
	return theme, true
}

func (c *CatalogCache) cachedPool(ctx context.Context, key string) ([]domain.QuestionRecord, bool) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	records := make([]domain.QuestionRecord, 0, len(fields))
	for _, raw := range fields {
		var rec domain.QuestionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, false
		}
		records = append(records, rec)
	}
	// hash order is unspecified
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + c.sampler.Jitter(c.ttl/10)
}

func themeKey(code string) string {
	return "quiz:theme:" + code
}

func questionsKey(themeID int64) string {
	return "quiz:theme:" + strconv.FormatInt(themeID, 10) + ":questions"
}

// isMiss reports a plain cache miss as opposed to a connection failure.
func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
