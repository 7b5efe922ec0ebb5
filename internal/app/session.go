package app

import (
	"fmt"
	"sync"
	"time"

	"quizmusic-service/internal/domain"
)

// SessionState is a step of a quiz attempt.
type SessionState string

const (
	StateReady  SessionState = "ready"
	StateGraded SessionState = "graded"
)

// Session is one player's single attempt at a theme. Question order is the draw
// order and never changes; answers are matched by position. A graded session
// carries its score record until the record is persisted.
type Session struct {
	mu        sync.Mutex
	id        string
	theme     domain.Theme
	questions []domain.Question
	createdAt time.Time
	now       func() time.Time

	state    SessionState
	answers  []int
	rawScore int
	gradedAt time.Time
	score    *domain.ScoreRecord
	recorded bool
}

// SessionSnapshot is the serializable form of a Session, used by shared stores.
type SessionSnapshot struct {
	ID        string              `json:"id"`
	Theme     domain.Theme        `json:"theme"`
	Questions []domain.Question   `json:"questions"`
	CreatedAt time.Time           `json:"createdAt"`
	State     SessionState        `json:"state"`
	Answers   []int               `json:"answers,omitempty"`
	RawScore  int                 `json:"rawScore"`
	GradedAt  time.Time           `json:"gradedAt,omitempty"`
	Score     *domain.ScoreRecord `json:"score,omitempty"`
	Recorded  bool                `json:"recorded,omitempty"`
}

// NewSession builds a ready session from validated questions.
func NewSession(id string, theme domain.Theme, questions []domain.Question) *Session {
	return NewSessionWithClock(id, theme, questions, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, theme domain.Theme, questions []domain.Question, now func() time.Time) *Session {
	return &Session{
		id:        id,
		theme:     theme,
		questions: append([]domain.Question(nil), questions...),
		createdAt: now(),
		now:       now,
		state:     StateReady,
	}
}

// RestoreSession rebuilds a session from a snapshot.
func RestoreSession(snap SessionSnapshot) (*Session, error) {
	switch snap.State {
	case StateReady, StateGraded:
	default:
		return nil, fmt.Errorf("restore session %s: %w: state %q", snap.ID, domain.ErrInvalidState, snap.State)
	}
	if snap.State == StateGraded && len(snap.Answers) != len(snap.Questions) {
		return nil, fmt.Errorf("restore session %s: %w: graded without answers", snap.ID, domain.ErrInvalidState)
	}
	if snap.Recorded && snap.Score == nil {
		return nil, fmt.Errorf("restore session %s: %w: recorded without a score", snap.ID, domain.ErrInvalidState)
	}
	return &Session{
		id:        snap.ID,
		theme:     snap.Theme,
		questions: snap.Questions,
		createdAt: snap.CreatedAt,
		now:       time.Now,
		state:     snap.State,
		answers:   snap.Answers,
		rawScore:  snap.RawScore,
		gradedAt:  snap.GradedAt,
		score:     snap.Score,
		recorded:  snap.Recorded,
	}, nil
}

// Snapshot captures the session for storage.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var score *domain.ScoreRecord
	if s.score != nil {
		rec := *s.score
		score = &rec
	}
	return SessionSnapshot{
		ID:        s.id,
		Theme:     s.theme,
		Questions: append([]domain.Question(nil), s.questions...),
		CreatedAt: s.createdAt,
		State:     s.state,
		Answers:   append([]int(nil), s.answers...),
		RawScore:  s.rawScore,
		GradedAt:  s.gradedAt,
		Score:     score,
		Recorded:  s.recorded,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Theme() domain.Theme { return s.theme }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Total is the number of drawn questions.
func (s *Session) Total() int { return len(s.questions) }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Questions returns the drawn questions in draw order.
func (s *Session) Questions() []domain.Question {
	return append([]domain.Question(nil), s.questions...)
}

// Prompts renders every question in draw order.
func (s *Session) Prompts() []domain.Prompt {
	prompts := make([]domain.Prompt, 0, len(s.questions))
	for i, q := range s.questions {
		prompts = append(prompts, q.RenderPrompt(i))
	}
	return prompts
}

// Submit grades the attempt. Missing positions count as unanswered. A session
// accepts exactly one submission.
func (s *Session) Submit(answers map[int]int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return 0, fmt.Errorf("submit session %s: %w: already %s", s.id, domain.ErrInvalidState, s.state)
	}
	for pos := range answers {
		if pos < 0 || pos >= len(s.questions) {
			return 0, fmt.Errorf("submit session %s: %w: position %d outside [0,%d)", s.id, domain.ErrValidation, pos, len(s.questions))
		}
	}

	submitted := make([]int, len(s.questions))
	score := 0
	for i, q := range s.questions {
		choice, ok := answers[i]
		if !ok {
			choice = domain.Unanswered
		}
		submitted[i] = choice
		if q.IsCorrect(choice) {
			score++
		}
	}

	s.answers = submitted
	s.rawScore = score
	s.gradedAt = s.now()
	s.state = StateGraded
	return score, nil
}

// RawScore returns the graded score.
func (s *Session) RawScore() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateGraded {
		return 0, fmt.Errorf("score of session %s: %w: not graded", s.id, domain.ErrInvalidState)
	}
	return s.rawScore, nil
}

// BuildScoreRecord produces the record to persist for a graded session and keeps
// it as the pending score. A session has one record: later calls return it unchanged.
func (s *Session) BuildScoreRecord(userID string, elapsedSeconds *int) (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateGraded {
		return domain.ScoreRecord{}, fmt.Errorf("score record of session %s: %w: not graded", s.id, domain.ErrInvalidState)
	}
	if s.score != nil {
		return *s.score, nil
	}
	s.score = &domain.ScoreRecord{
		UserID:         userID,
		ThemeID:        s.theme.ID,
		RawScore:       s.rawScore,
		TotalQuestions: len(s.questions),
		ElapsedSeconds: elapsedSeconds,
		PlayedAt:       s.gradedAt,
	}
	return *s.score, nil
}

// PendingScore returns the score record that still has to be persisted.
func (s *Session) PendingScore() (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state != StateGraded || s.score == nil:
		return domain.ScoreRecord{}, fmt.Errorf("pending score of session %s: %w: not graded", s.id, domain.ErrInvalidState)
	case s.recorded:
		return domain.ScoreRecord{}, fmt.Errorf("pending score of session %s: %w: already recorded", s.id, domain.ErrInvalidState)
	}
	return *s.score, nil
}

// MarkRecorded notes that the pending score was persisted.
func (s *Session) MarkRecorded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.score != nil {
		s.recorded = true
	}
}

func (s *Session) Recorded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}

// Review reveals the correct answers and explanations after grading.
func (s *Session) Review() ([]domain.ReviewEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateGraded {
		return nil, fmt.Errorf("review session %s: %w: not graded", s.id, domain.ErrInvalidState)
	}
	out := make([]domain.ReviewEntry, 0, len(s.questions))
	for i, q := range s.questions {
		out = append(out, domain.ReviewEntry{
			Position:     i,
			Submitted:    s.answers[i],
			CorrectIndex: q.CorrectIndex,
			Correct:      q.IsCorrect(s.answers[i]),
			Explanation:  q.Explanation,
		})
	}
	return out, nil
}
