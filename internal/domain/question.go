package domain

import "fmt"

// Variant is the presentation kind of a question.
type Variant string

const (
	VariantText  Variant = "text"
	VariantImage Variant = "image"
	VariantAudio Variant = "audio"
)

// ChoiceCount is the fixed number of answer choices per question.
const ChoiceCount = 4

// Unanswered is the submitted index used for positions without an answer.
const Unanswered = -1

// Question is a validated, playable question. Image and audio questions carry a
// media URL; text questions never do.
type Question struct {
	ID            int64    `json:"id"`
	Variant       Variant  `json:"variant"`
	PromptText    string   `json:"promptText"`
	AnswerChoices []string `json:"answerChoices"`
	CorrectIndex  int      `json:"correctIndex"`
	Explanation   *string  `json:"explanation,omitempty"`
	MediaURL      string   `json:"mediaUrl,omitempty"`
}

// Prompt is the structured data a presentation layer renders for one position.
type Prompt struct {
	Position   int      `json:"position"`
	PromptText string   `json:"promptText"`
	VariantTag Variant  `json:"variant"`
	MediaURL   string   `json:"mediaUrl,omitempty"`
	Choices    []string `json:"choices"`
}

// variantFor maps a stored discriminator to a variant. Unknown values fall back to text
// so forward-incompatible rows stay playable.
var variantFor = map[string]Variant{
	"image": VariantImage,
	"audio": VariantAudio,
	"text":  VariantText,
	"texte": VariantText,
}

// ParseVariant returns the variant for a stored discriminator.
func ParseVariant(raw string) Variant {
	if v, ok := variantFor[raw]; ok {
		return v
	}
	return VariantText
}

// NewQuestion validates a record and builds the matching variant.
func NewQuestion(rec QuestionRecord) (Question, error) {
	if len(rec.AnswerChoices) != ChoiceCount {
		return Question{}, fmt.Errorf("question %d: %w: expected %d choices, got %d",
			rec.ID, ErrValidation, ChoiceCount, len(rec.AnswerChoices))
	}
	if rec.CorrectIndex < 0 || rec.CorrectIndex >= len(rec.AnswerChoices) {
		return Question{}, fmt.Errorf("question %d: %w: correct index %d out of range",
			rec.ID, ErrValidation, rec.CorrectIndex)
	}

	q := Question{
		ID:            rec.ID,
		Variant:       ParseVariant(rec.Variant),
		PromptText:    rec.PromptText,
		AnswerChoices: append([]string(nil), rec.AnswerChoices...),
		CorrectIndex:  rec.CorrectIndex,
		Explanation:   rec.Explanation,
	}

	switch q.Variant {
	case VariantImage, VariantAudio:
		if rec.MediaURL == "" {
			return Question{}, fmt.Errorf("question %d: %w: %s question requires a media url",
				rec.ID, ErrValidation, q.Variant)
		}
		q.MediaURL = rec.MediaURL
	case VariantText:
	}
	return q, nil
}

// VariantTag reports the variant for introspection and serialization.
func (q Question) VariantTag() Variant {
	return q.Variant
}

// IsCorrect reports whether the submitted index matches. Out-of-range submissions,
// including Unanswered, are never correct.
func (q Question) IsCorrect(submitted int) bool {
	return submitted == q.CorrectIndex
}

// RenderPrompt builds the prompt data for the question at a zero-based position.
func (q Question) RenderPrompt(position int) Prompt {
	p := Prompt{
		Position:   position,
		PromptText: q.PromptText,
		VariantTag: q.Variant,
		Choices:    append([]string(nil), q.AnswerChoices...),
	}
	switch q.Variant {
	case VariantImage, VariantAudio:
		p.MediaURL = q.MediaURL
	case VariantText:
	}
	return p
}

// Playable keeps the records that build a valid Question, in order. Each rejected
// record is reported with its validation error.
func Playable(records []QuestionRecord) ([]QuestionRecord, []error) {
	kept := make([]QuestionRecord, 0, len(records))
	var rejected []error
	for _, rec := range records {
		if _, err := NewQuestion(rec); err != nil {
			rejected = append(rejected, err)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, rejected
}
