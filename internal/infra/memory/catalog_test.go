package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
)

func TestCatalogCaches(t *testing.T) {
	loader := &countingLoader{CatalogLoader: sampleCatalog(8)}
	catalog := NewCatalog(loader, time.Minute, app.NewSamplerWithSeed(1))

	for i := 0; i < 3; i++ {
		theme, err := catalog.LoadTheme(context.Background(), "rock")
		if err != nil {
			t.Fatalf("load theme: %v", err)
		}
		if _, err := catalog.LoadRandomQuestions(context.Background(), theme.ID, 5); err != nil {
			t.Fatalf("load questions: %v", err)
		}
	}
	if loader.themeCalls != 1 || loader.questionCalls != 1 {
		t.Fatalf("expected one load each, got theme=%d questions=%d", loader.themeCalls, loader.questionCalls)
	}
}

func TestCatalogExpires(t *testing.T) {
	loader := &countingLoader{CatalogLoader: sampleCatalog(5)}
	catalog := NewCatalog(loader, time.Minute, app.NewSamplerWithSeed(1))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	catalog.clock = func() time.Time { return now }

	if _, err := catalog.LoadTheme(context.Background(), "rock"); err != nil {
		t.Fatalf("load theme: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := catalog.LoadTheme(context.Background(), "rock"); err != nil {
		t.Fatalf("load theme: %v", err)
	}
	if loader.themeCalls != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.themeCalls)
	}
}

func TestCatalogDrawsDistinctQuestions(t *testing.T) {
	catalog := NewCatalog(sampleCatalog(12), time.Minute, nil)

	for round := 0; round < 50; round++ {
		records, err := catalog.LoadRandomQuestions(context.Background(), 1, 5)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("expected 5 records, got %d", len(records))
		}
		seen := map[int64]bool{}
		for _, r := range records {
			if seen[r.ID] {
				t.Fatalf("duplicate question %d in draw", r.ID)
			}
			seen[r.ID] = true
		}
	}
}

func TestCatalogReturnsWholePoolWhenSmall(t *testing.T) {
	catalog := NewCatalog(sampleCatalog(3), time.Minute, nil)
	records, err := catalog.LoadRandomQuestions(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected all 3 records, got %d", len(records))
	}
}

func TestStaticCatalogHidesInactiveThemes(t *testing.T) {
	catalog := sampleCatalog(5)
	if _, err := catalog.LoadTheme(context.Background(), "jazz"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for inactive theme, got %v", err)
	}
	if _, err := catalog.LoadTheme(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	themes, err := catalog.ListThemes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(themes) != 1 || themes[0].Code != "rock" || themes[0].QuestionCount != 5 {
		t.Fatalf("unexpected listing %+v", themes)
	}
}

func TestCatalogDrawsOnlyPlayableQuestions(t *testing.T) {
	static := withMalformed(sampleCatalog(5))
	catalog := NewCatalog(static, time.Minute, app.NewSamplerWithSeed(1))

	for round := 0; round < 200; round++ {
		records, err := catalog.LoadRandomQuestions(context.Background(), 1, 5)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("round %d: expected 5 playable records, got %d", round, len(records))
		}
		for _, r := range records {
			if r.ID > 5 {
				t.Fatalf("malformed record %d drawn", r.ID)
			}
		}
	}

	themes, _ := static.ListThemes(context.Background())
	if themes[0].QuestionCount != 5 {
		t.Fatalf("expected only playable questions counted, got %d", themes[0].QuestionCount)
	}
}

// withMalformed adds an image question without media and a two-choice question to rock.
func withMalformed(c *StaticCatalog) *StaticCatalog {
	c.questions[1] = append(c.questions[1],
		domain.QuestionRecord{ID: 6, ThemeID: 1, PromptText: "Cover?", AnswerChoices: []string{"a", "b", "c", "d"}, Variant: "image"},
		domain.QuestionRecord{ID: 7, ThemeID: 1, PromptText: "Riff?", AnswerChoices: []string{"a", "b"}, Variant: "text"},
	)
	return c
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

func sampleCatalog(n int) *StaticCatalog {
	themes := []domain.Theme{
		{ID: 1, Code: "rock", Title: "Classic Rock", Emoji: "🎸", Difficulty: 3, Active: true},
		{ID: 2, Code: "jazz", Title: "Jazz", Emoji: "🎷", Difficulty: 5, Active: false},
	}
	questions := make([]domain.QuestionRecord, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.QuestionRecord{
			ID:            int64(i + 1),
			ThemeID:       1,
			PromptText:    "Question",
			AnswerChoices: []string{"a", "b", "c", "d"},
			CorrectIndex:  i % 4,
			Variant:       "text",
		})
	}
	return NewStaticCatalog(themes, questions)
}
