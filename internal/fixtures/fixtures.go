// Package fixtures holds the bundled theme catalog used for demos and seeding.
package fixtures

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quizmusic-service/internal/domain"
)

//go:embed themes.yaml
var bundled []byte

// Catalog is a set of themes with their questions.
type Catalog struct {
	Themes []Theme `yaml:"themes"`
}

type Theme struct {
	Code        string     `yaml:"code"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Emoji       string     `yaml:"emoji"`
	Difficulty  int        `yaml:"difficulty"`
	ColorTheme  string     `yaml:"color_theme"`
	Active      bool       `yaml:"active"`
	Questions   []Question `yaml:"questions"`
}

type Question struct {
	Prompt      string   `yaml:"prompt"`
	Choices     []string `yaml:"choices"`
	Correct     int      `yaml:"correct"`
	Explanation string   `yaml:"explanation"`
	Variant     string   `yaml:"variant"`
	MediaURL    string   `yaml:"media_url"`
}

// Bundled returns the catalog shipped with the binary.
func Bundled() (Catalog, error) {
	return Parse(bundled)
}

// Load reads a catalog from a YAML file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse fixture: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Themes))
	for _, t := range c.Themes {
		if t.Code == "" {
			return Catalog{}, fmt.Errorf("parse fixture: %w: theme without code", domain.ErrValidation)
		}
		if _, dup := seen[t.Code]; dup {
			return Catalog{}, fmt.Errorf("parse fixture: %w: duplicate theme %q", domain.ErrValidation, t.Code)
		}
		seen[t.Code] = struct{}{}
		if t.Difficulty < 1 || t.Difficulty > 5 {
			return Catalog{}, fmt.Errorf("parse fixture: %w: theme %q difficulty %d outside 1..5", domain.ErrValidation, t.Code, t.Difficulty)
		}
	}
	return c, nil
}

// Record converts a fixture question into a stored record shape.
func (q Question) Record(id, themeID int64) domain.QuestionRecord {
	rec := domain.QuestionRecord{
		ID:            id,
		ThemeID:       themeID,
		PromptText:    q.Prompt,
		AnswerChoices: append([]string(nil), q.Choices...),
		CorrectIndex:  q.Correct,
		Variant:       q.Variant,
		MediaURL:      q.MediaURL,
	}
	if rec.Variant == "" {
		rec.Variant = string(domain.VariantText)
	}
	if q.Explanation != "" {
		e := q.Explanation
		rec.Explanation = &e
	}
	return rec
}

// DomainTheme converts a fixture theme with the given id.
func (t Theme) DomainTheme(id int64) domain.Theme {
	return domain.Theme{
		ID:          id,
		Code:        t.Code,
		Title:       t.Title,
		Description: t.Description,
		Emoji:       t.Emoji,
		Difficulty:  t.Difficulty,
		ColorTheme:  t.ColorTheme,
		Active:      t.Active,
	}
}
