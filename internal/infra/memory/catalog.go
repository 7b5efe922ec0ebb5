package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
)

// Catalog caches themes and question pools with TTL to avoid repeated DB hits.
// Only playable records enter the pool; random draws are taken from it.
type Catalog struct {
	loader  app.CatalogLoader
	log     *zap.Logger
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	sampler *app.Sampler

	mu        sync.RWMutex
	themes    map[string]cached[domain.Theme]
	questions map[int64]cached[[]domain.QuestionRecord]
}

type cached[T any] struct {
	value     T
	expiresAt time.Time
}

func NewCatalog(loader app.CatalogLoader, ttl time.Duration, sampler *app.Sampler) *Catalog {
	if sampler == nil {
		sampler = app.NewSampler()
	}
	return &Catalog{
		loader:    loader,
		log:       zap.NewNop(),
		ttl:       ttl,
		clock:     time.Now,
		sampler:   sampler,
		themes:    make(map[string]cached[domain.Theme]),
		questions: make(map[int64]cached[[]domain.QuestionRecord]),
	}
}

// WithLogger reports rejected question records to log.
func (c *Catalog) WithLogger(log *zap.Logger) *Catalog {
	if log != nil {
		c.log = log
	}
	return c
}

func (c *Catalog) LoadTheme(ctx context.Context, code string) (domain.Theme, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.themes[code]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.value, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("theme:"+code, func() (interface{}, error) {
		theme, err := c.loader.LoadTheme(ctx, code)
		if err != nil {
			return domain.Theme{}, err
		}
		c.mu.Lock()
		c.themes[code] = cached[domain.Theme]{value: theme, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return theme, nil
	})
	if err != nil {
		return domain.Theme{}, err
	}
	return result.(domain.Theme), nil
}

func (c *Catalog) LoadRandomQuestions(ctx context.Context, themeID int64, count int) ([]domain.QuestionRecord, error) {
	pool, err := c.pool(ctx, themeID)
	if err != nil {
		return nil, err
	}
	return c.sampler.Draw(pool, count), nil
}

func (c *Catalog) ListThemes(ctx context.Context) ([]domain.ThemeSummary, error) {
	return c.loader.ListThemes(ctx)
}

func (c *Catalog) pool(ctx context.Context, themeID int64) ([]domain.QuestionRecord, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.questions[themeID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.value, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("questions:"+strconv.FormatInt(themeID, 10), func() (interface{}, error) {
		records, err := c.loader.LoadQuestions(ctx, themeID)
		if err != nil {
			return nil, err
		}
		records = app.PlayablePool(records, themeID, c.log)
		c.mu.Lock()
		c.questions[themeID] = cached[[]domain.QuestionRecord]{value: records, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRecord), nil
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	return c.ttl + c.sampler.Jitter(c.ttl/10)
}
