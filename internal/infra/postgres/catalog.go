package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmusic-service/internal/domain"
)

// Catalog loads themes and questions from Postgres.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// LoadTheme returns an active theme. Inactive and unknown codes are both ErrThemeNotFound.
func (c *Catalog) LoadTheme(ctx context.Context, code string) (domain.Theme, error) {
	var t domain.Theme
	err := c.pool.QueryRow(ctx, `
		SELECT id, code, title, description, emoji, difficulty, color_theme, active
		FROM themes
		WHERE code = $1 AND active`, code).
		Scan(&t.ID, &t.Code, &t.Title, &t.Description, &t.Emoji, &t.Difficulty, &t.ColorTheme, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Theme{}, fmt.Errorf("theme %q: %w", code, domain.ErrThemeNotFound)
	}
	if err != nil {
		return domain.Theme{}, fmt.Errorf("load theme: %w", err)
	}
	return t, nil
}

// LoadQuestions returns every question of a theme; sampling happens in the cache layer.
func (c *Catalog) LoadQuestions(ctx context.Context, themeID int64) ([]domain.QuestionRecord, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, theme_id, prompt, choice_a, choice_b, choice_c, choice_d,
		       correct_index, explanation, variant, media_url
		FROM questions
		WHERE theme_id = $1
		ORDER BY id`, themeID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.QuestionRecord
	for rows.Next() {
		var (
			rec        domain.QuestionRecord
			a, b, c, d string
		)
		if err := rows.Scan(&rec.ID, &rec.ThemeID, &rec.PromptText, &a, &b, &c, &d,
			&rec.CorrectIndex, &rec.Explanation, &rec.Variant, &rec.MediaURL); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		rec.AnswerChoices = []string{a, b, c, d}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}

// ListThemes counts playable questions only. Choice count and index range are
// enforced by the schema; media presence is checked here.
func (c *Catalog) ListThemes(ctx context.Context) ([]domain.ThemeSummary, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT t.id, t.code, t.title, t.description, t.emoji, t.difficulty, t.color_theme, t.active,
		       COUNT(q.id) FILTER (WHERE q.variant NOT IN ('image', 'audio') OR q.media_url <> '')
		FROM themes t
		LEFT JOIN questions q ON q.theme_id = t.id
		WHERE t.active
		GROUP BY t.id
		ORDER BY t.code`)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	var out []domain.ThemeSummary
	for rows.Next() {
		var s domain.ThemeSummary
		if err := rows.Scan(&s.ID, &s.Code, &s.Title, &s.Description, &s.Emoji, &s.Difficulty,
			&s.ColorTheme, &s.Active, &s.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
