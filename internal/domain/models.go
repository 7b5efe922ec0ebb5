package domain

import "time"

// DefaultQuestionCount is the number of questions drawn per session.
const DefaultQuestionCount = 5

// Theme is a named, playable question pool.
type Theme struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Emoji       string `json:"emoji"`
	Difficulty  int    `json:"difficulty"`
	ColorTheme  string `json:"colorTheme"`
	Active      bool   `json:"active"`
}

// ThemeSummary is a theme as listed on the selection screen.
type ThemeSummary struct {
	Theme
	QuestionCount int `json:"questionCount"`
}

// QuestionRecord is a raw question row as stored.
type QuestionRecord struct {
	ID            int64    `json:"id"`
	ThemeID       int64    `json:"themeId"`
	PromptText    string   `json:"promptText"`
	AnswerChoices []string `json:"answerChoices"`
	CorrectIndex  int      `json:"correctIndex"`
	Explanation   *string  `json:"explanation,omitempty"`
	Variant       string   `json:"variant"`
	MediaURL      string   `json:"mediaUrl,omitempty"`
}

// ScoreRecord is an append-only result of one graded session.
type ScoreRecord struct {
	UserID         string    `json:"userId"`
	ThemeID        int64     `json:"themeId"`
	RawScore       int       `json:"rawScore"`
	TotalQuestions int       `json:"totalQuestions"`
	ElapsedSeconds *int      `json:"elapsedSeconds,omitempty"`
	PlayedAt       time.Time `json:"playedAt"`
}

// Classification is the qualitative feedback for a score.
type Classification struct {
	Percentage int    `json:"percentage"`
	Level      string `json:"level"`
	Badge      string `json:"badge"`
	Message    string `json:"message"`
}

// LevelBand maps an inclusive score range to feedback for a given total.
type LevelBand struct {
	MinScore int    `json:"minScore"`
	MaxScore int    `json:"maxScore"`
	Title    string `json:"title"`
	Badge    string `json:"badge"`
	Message  string `json:"message"`
}

// ReviewEntry reveals the grading of one position after submission.
type ReviewEntry struct {
	Position     int     `json:"position"`
	Submitted    int     `json:"submitted"`
	CorrectIndex int     `json:"correctIndex"`
	Correct      bool    `json:"correct"`
	Explanation  *string `json:"explanation,omitempty"`
}

// HistoryEntry is a stored score joined with its theme.
type HistoryEntry struct {
	ScoreRecord
	ThemeTitle string `json:"themeTitle"`
	ThemeEmoji string `json:"themeEmoji"`
}

// HistoryReport summarizes a player's latest games.
type HistoryReport struct {
	UserID         string          `json:"userId"`
	Entries        []HistoryResult `json:"entries"`
	GamesPlayed    int             `json:"gamesPlayed"`
	TotalPoints    int             `json:"totalPoints"`
	BestPercentage int             `json:"bestPercentage"`
}

// HistoryResult is a history entry with its computed feedback.
type HistoryResult struct {
	HistoryEntry
	Classification Classification `json:"classification"`
}
