// Package leveling turns a raw quiz score into a percentage and a level.
//
// Bands are configured as percentage thresholds so that one table serves every
// quiz length. For a concrete total the thresholds are converted into inclusive
// score ranges; a score belongs to the band with the highest threshold it reaches.
package leveling

import (
	"fmt"

	"quizmusic-service/internal/domain"
)

// Band is one configured level threshold.
type Band struct {
	MinPercent int    `yaml:"min_percent" json:"minPercent"`
	Title      string `yaml:"title" json:"title"`
	Badge      string `yaml:"badge" json:"badge"`
	Message    string `yaml:"message" json:"message"`
}

// Table is a validated, ascending list of bands.
type Table struct {
	bands []Band
}

// DefaultBands is the table used when configuration does not provide one.
func DefaultBands() []Band {
	return []Band{
		{MinPercent: 0, Title: "🔇 Beginner", Badge: "Budding music lover", Message: "It's a start! Music still keeps a few secrets from you, so now is the time to open your ears."},
		{MinPercent: 30, Title: "🎵 Amateur", Badge: "Curious listener", Message: "Not bad! You are starting to recognize a few classics. Keep exploring."},
		{MinPercent: 50, Title: "🎶 Confirmed", Badge: "Seasoned music lover", Message: "Well done! You have solid musical foundations and your culture keeps growing."},
		{MinPercent: 70, Title: "🎸 Expert", Badge: "Connoisseur", Message: "Impressive! You really know your subject. Very little gets past you."},
		{MinPercent: 90, Title: "🏆 Master", Badge: "Musical virtuoso", Message: "Outstanding! You are a true expert. Congratulations on a brilliant performance."},
	}
}

// NewTable validates bands. The first threshold must be 0, thresholds must be
// strictly increasing and at most 100, and every band needs a title.
func NewTable(bands []Band) (*Table, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no level bands", domain.ErrConfiguration)
	}
	if bands[0].MinPercent != 0 {
		return nil, fmt.Errorf("%w: first band must start at 0%%, got %d%%", domain.ErrConfiguration, bands[0].MinPercent)
	}
	for i, b := range bands {
		if b.Title == "" {
			return nil, fmt.Errorf("%w: band %d has no title", domain.ErrConfiguration, i)
		}
		if b.MinPercent < 0 || b.MinPercent > 100 {
			return nil, fmt.Errorf("%w: band %q threshold %d%% outside [0,100]", domain.ErrConfiguration, b.Title, b.MinPercent)
		}
		if i > 0 && b.MinPercent <= bands[i-1].MinPercent {
			return nil, fmt.Errorf("%w: band %q overlaps %q", domain.ErrConfiguration, b.Title, bands[i-1].Title)
		}
	}
	return &Table{bands: append([]Band(nil), bands...)}, nil
}

// MustDefault returns the default table.
func MustDefault() *Table {
	t, err := NewTable(DefaultBands())
	if err != nil {
		panic(err)
	}
	return t
}

// Bands derives the inclusive score ranges for a quiz of the given total.
// Bands that no score can reach for this total are omitted.
func (t *Table) Bands(total int) ([]domain.LevelBand, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive, got %d", domain.ErrValidation, total)
	}

	out := make([]domain.LevelBand, 0, len(t.bands))
	for i, b := range t.bands {
		lo := minScore(b.MinPercent, total)
		hi := total
		if i+1 < len(t.bands) {
			hi = minScore(t.bands[i+1].MinPercent, total) - 1
		}
		if lo > hi {
			continue
		}
		out = append(out, domain.LevelBand{
			MinScore: lo,
			MaxScore: hi,
			Title:    b.Title,
			Badge:    b.Badge,
			Message:  b.Message,
		})
	}
	return out, nil
}

// Classify maps a raw score to its percentage and level.
func (t *Table) Classify(rawScore, total int) (domain.Classification, error) {
	if err := t.check(); err != nil {
		return domain.Classification{}, err
	}
	if total <= 0 {
		return domain.Classification{}, fmt.Errorf("%w: total must be positive, got %d", domain.ErrValidation, total)
	}
	if rawScore < 0 || rawScore > total {
		return domain.Classification{}, fmt.Errorf("%w: score %d outside [0,%d]", domain.ErrValidation, rawScore, total)
	}

	band := t.bands[0]
	for _, b := range t.bands[1:] {
		if rawScore*100 >= b.MinPercent*total {
			band = b
		}
	}
	return domain.Classification{
		Percentage: Percentage(rawScore, total),
		Level:      band.Title,
		Badge:      band.Badge,
		Message:    band.Message,
	}, nil
}

// Percentage is rawScore/total*100 rounded half up.
func Percentage(rawScore, total int) int {
	if total <= 0 {
		return 0
	}
	return (rawScore*200 + total) / (2 * total)
}

func (t *Table) check() error {
	if t == nil || len(t.bands) == 0 {
		return fmt.Errorf("%w: level table not initialized", domain.ErrConfiguration)
	}
	return nil
}

// minScore is the smallest score whose share of total reaches percent.
func minScore(percent, total int) int {
	return (percent*total + 99) / 100
}
