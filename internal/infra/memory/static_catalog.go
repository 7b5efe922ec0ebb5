package memory

import (
	"context"
	"sort"

	"quizmusic-service/internal/domain"
	"quizmusic-service/internal/fixtures"
)

// StaticCatalog is a loader backed by in-memory maps (useful for tests/demos).
type StaticCatalog struct {
	themes    map[string]domain.Theme
	byID      map[int64]domain.Theme
	questions map[int64][]domain.QuestionRecord
}

func NewStaticCatalog(themes []domain.Theme, questions []domain.QuestionRecord) *StaticCatalog {
	c := &StaticCatalog{
		themes:    make(map[string]domain.Theme, len(themes)),
		byID:      make(map[int64]domain.Theme, len(themes)),
		questions: make(map[int64][]domain.QuestionRecord),
	}
	for _, t := range themes {
		c.themes[t.Code] = t
		c.byID[t.ID] = t
	}
	for _, q := range questions {
		c.questions[q.ThemeID] = append(c.questions[q.ThemeID], q)
	}
	return c
}

// NewStaticCatalogFromFixtures assigns sequential ids to a fixture catalog.
func NewStaticCatalogFromFixtures(fc fixtures.Catalog) *StaticCatalog {
	var (
		themes    []domain.Theme
		questions []domain.QuestionRecord
		nextQID   int64 = 1
	)
	for i, ft := range fc.Themes {
		themeID := int64(i + 1)
		themes = append(themes, ft.DomainTheme(themeID))
		for _, fq := range ft.Questions {
			questions = append(questions, fq.Record(nextQID, themeID))
			nextQID++
		}
	}
	return NewStaticCatalog(themes, questions)
}

func (c *StaticCatalog) LoadTheme(_ context.Context, code string) (domain.Theme, error) {
	if t, ok := c.themes[code]; ok && t.Active {
		return t, nil
	}
	return domain.Theme{}, domain.ErrThemeNotFound
}

func (c *StaticCatalog) LoadQuestions(_ context.Context, themeID int64) ([]domain.QuestionRecord, error) {
	return append([]domain.QuestionRecord(nil), c.questions[themeID]...), nil
}

func (c *StaticCatalog) ListThemes(_ context.Context) ([]domain.ThemeSummary, error) {
	out := make([]domain.ThemeSummary, 0, len(c.themes))
	for _, t := range c.themes {
		if !t.Active {
			continue
		}
		playable, _ := domain.Playable(c.questions[t.ID])
		out = append(out, domain.ThemeSummary{Theme: t, QuestionCount: len(playable)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// themeByID resolves themes for history joins, including inactive ones.
func (c *StaticCatalog) themeByID(id int64) (domain.Theme, bool) {
	t, ok := c.byID[id]
	return t, ok
}
