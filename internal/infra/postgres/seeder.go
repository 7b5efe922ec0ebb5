package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"quizmusic-service/internal/domain"
	"quizmusic-service/internal/fixtures"
)

type themeRow struct {
	bun.BaseModel `bun:"table:themes"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Code        string `bun:"code,unique"`
	Title       string `bun:"title"`
	Description string `bun:"description"`
	Emoji       string `bun:"emoji"`
	Difficulty  int    `bun:"difficulty"`
	ColorTheme  string `bun:"color_theme"`
	Active      bool   `bun:"active"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID           int64   `bun:"id,pk,autoincrement"`
	ThemeID      int64   `bun:"theme_id"`
	Prompt       string  `bun:"prompt"`
	ChoiceA      string  `bun:"choice_a"`
	ChoiceB      string  `bun:"choice_b"`
	ChoiceC      string  `bun:"choice_c"`
	ChoiceD      string  `bun:"choice_d"`
	CorrectIndex int     `bun:"correct_index"`
	Explanation  *string `bun:"explanation"`
	Variant      string  `bun:"variant"`
	MediaURL     string  `bun:"media_url"`
}

// Seeder loads a fixture catalog into the database.
type Seeder struct {
	db *bun.DB
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db}
}

// Seed upserts every theme by code and replaces its questions. It runs in one
// transaction so a bad fixture leaves the catalog untouched.
func (s *Seeder) Seed(ctx context.Context, catalog fixtures.Catalog) (int, error) {
	questions := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, ft := range catalog.Themes {
			row := themeRow{
				Code:        ft.Code,
				Title:       ft.Title,
				Description: ft.Description,
				Emoji:       ft.Emoji,
				Difficulty:  ft.Difficulty,
				ColorTheme:  ft.ColorTheme,
				Active:      ft.Active,
			}
			_, err := tx.NewInsert().
				Model(&row).
				On("CONFLICT (code) DO UPDATE").
				Set("title = EXCLUDED.title").
				Set("description = EXCLUDED.description").
				Set("emoji = EXCLUDED.emoji").
				Set("difficulty = EXCLUDED.difficulty").
				Set("color_theme = EXCLUDED.color_theme").
				Set("active = EXCLUDED.active").
				Returning("id").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("upsert theme %s: %w", ft.Code, err)
			}

			if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("theme_id = ?", row.ID).Exec(ctx); err != nil {
				return fmt.Errorf("clear questions of %s: %w", ft.Code, err)
			}
			if len(ft.Questions) == 0 {
				continue
			}

			rows := make([]questionRow, 0, len(ft.Questions))
			for i, fq := range ft.Questions {
				rec := fq.Record(0, row.ID)
				if _, err := domain.NewQuestion(rec); err != nil {
					return fmt.Errorf("theme %s question %d: %w", ft.Code, i, err)
				}
				rows = append(rows, questionRow{
					ThemeID:      row.ID,
					Prompt:       rec.PromptText,
					ChoiceA:      rec.AnswerChoices[0],
					ChoiceB:      rec.AnswerChoices[1],
					ChoiceC:      rec.AnswerChoices[2],
					ChoiceD:      rec.AnswerChoices[3],
					CorrectIndex: rec.CorrectIndex,
					Explanation:  rec.Explanation,
					Variant:      rec.Variant,
					MediaURL:     rec.MediaURL,
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert questions of %s: %w", ft.Code, err)
			}
			questions += len(rows)
		}
		return nil
	})
	return questions, err
}
