package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
	"quizmusic-service/internal/infra/memory"
)

func TestCatalogCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{CatalogLoader: sampleCatalog(8)}
	cache := NewCatalogCache(newClient(mr), loader, time.Minute, app.NewSamplerWithSeed(3))
	ctx := context.Background()

	theme, err := cache.LoadTheme(ctx, "rock")
	if err != nil {
		t.Fatalf("load theme: %v", err)
	}
	records, err := cache.LoadRandomQuestions(ctx, theme.ID, 5)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if loader.themeCalls != 1 || loader.questionCalls != 1 {
		t.Fatalf("expected loader called once each, got %d/%d", loader.themeCalls, loader.questionCalls)
	}
	if !mr.Exists("quiz:theme:rock") || !mr.Exists("quiz:theme:1:questions") {
		t.Fatalf("expected cache keys, got %v", mr.Keys())
	}

	// Second call should hit cache, loader not incremented.
	_, _ = cache.LoadTheme(ctx, "rock")
	again, _ := cache.LoadRandomQuestions(ctx, theme.ID, 5)
	if loader.themeCalls != 1 || loader.questionCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d/%d", loader.themeCalls, loader.questionCalls)
	}
	if len(again) != 5 || again[0].AnswerChoices[1] != "B" {
		t.Fatalf("cached records lost fields: %+v", again)
	}

	// A second instance shares the same cache.
	other := NewCatalogCache(newClient(mr), loader, time.Minute, nil)
	if _, err := other.LoadTheme(ctx, "rock"); err != nil {
		t.Fatalf("load theme on other instance: %v", err)
	}
	if loader.themeCalls != 1 {
		t.Fatalf("expected shared cache, loader calls=%d", loader.themeCalls)
	}
}

func TestCatalogCacheTTLWithJitter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewCatalogCache(newClient(mr), sampleCatalog(5), time.Minute, nil)
	if _, err := cache.LoadTheme(context.Background(), "rock"); err != nil {
		t.Fatalf("load theme: %v", err)
	}
	ttl := mr.TTL("quiz:theme:rock")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within jitter, got %s", ttl)
	}
}

func TestCatalogCacheDoesNotCacheMissingTheme(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewCatalogCache(newClient(mr), sampleCatalog(5), time.Minute, nil)
	for _, code := range []string{"missing", "jazz"} {
		if _, err := cache.LoadTheme(context.Background(), code); !errors.Is(err, domain.ErrThemeNotFound) {
			t.Fatalf("%s: expected theme not found, got %v", code, err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected nothing cached, got %v", mr.Keys())
	}
}

func TestCatalogCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{CatalogLoader: sampleCatalog(5)}
	cache := NewCatalogCache(newClient(mr), loader, time.Minute, nil)
	ctx := context.Background()
	theme, _ := cache.LoadTheme(ctx, "rock")
	_, _ = cache.LoadRandomQuestions(ctx, theme.ID, 5)

	if err := cache.Invalidate(ctx, theme); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.LoadTheme(ctx, "rock")
	if loader.themeCalls != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.themeCalls)
	}
}

func TestCatalogCacheKeepsOnlyPlayableQuestions(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	records := sampleRecords(5)
	records = append(records,
		domain.QuestionRecord{ID: 6, ThemeID: 1, PromptText: "Cover?", AnswerChoices: []string{"a", "b", "c", "d"}, Variant: "audio"},
		domain.QuestionRecord{ID: 7, ThemeID: 1, PromptText: "Riff?", AnswerChoices: []string{"a", "b", "c", "d"}, CorrectIndex: 4},
	)
	cache := NewCatalogCache(newClient(mr), memory.NewStaticCatalog(sampleThemes(), records), time.Minute, app.NewSamplerWithSeed(1))

	for round := 0; round < 100; round++ {
		drawn, err := cache.LoadRandomQuestions(context.Background(), 1, 5)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if len(drawn) != 5 {
			t.Fatalf("round %d: expected 5 playable records, got %d", round, len(drawn))
		}
	}
	if fields, _ := mr.HKeys("quiz:theme:1:questions"); len(fields) != 5 {
		t.Fatalf("expected only playable records cached, got %v", fields)
	}
}

type countingLoader struct {
	app.CatalogLoader
	themeCalls    int
	questionCalls int
}

func (l *countingLoader) LoadTheme(ctx context.Context, code string) (domain.Theme, error) {
	l.themeCalls++
	return l.CatalogLoader.LoadTheme(ctx, code)
}

func (l *countingLoader) LoadQuestions(ctx context.Context, themeID int64) ([]domain.QuestionRecord, error) {
	l.questionCalls++
	return l.CatalogLoader.LoadQuestions(ctx, themeID)
}

func sampleCatalog(n int) *memory.StaticCatalog {
	return memory.NewStaticCatalog(sampleThemes(), sampleRecords(n))
}

func sampleThemes() []domain.Theme {
	return []domain.Theme{
		{ID: 1, Code: "rock", Title: "Classic Rock", Difficulty: 3, Active: true},
		{ID: 2, Code: "jazz", Title: "Jazz", Difficulty: 5, Active: false},
	}
}

func sampleRecords(n int) []domain.QuestionRecord {
	records := make([]domain.QuestionRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, domain.QuestionRecord{
			ID:            int64(i + 1),
			ThemeID:       1,
			PromptText:    "Which band?",
			AnswerChoices: []string{"A", "B", "C", "D"},
			CorrectIndex:  i % 4,
			Variant:       "text",
		})
	}
	return records
}

func sampleQuestions(t *testing.T, correct ...int) []domain.Question {
	t.Helper()
	out := make([]domain.Question, 0, len(correct))
	for i, c := range correct {
		q, err := domain.NewQuestion(domain.QuestionRecord{
			ID:            int64(i + 1),
			PromptText:    "q",
			AnswerChoices: []string{"a", "b", "c", "d"},
			CorrectIndex:  c,
		})
		if err != nil {
			t.Fatalf("question: %v", err)
		}
		out = append(out, q)
	}
	return out
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
