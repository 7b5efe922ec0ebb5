package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizmusic-service/internal/domain"
	"quizmusic-service/internal/leveling"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// SessionRepository abstracts where in-flight quiz sessions live (in-memory, Redis, etc).
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// ThemeCatalog loads themes and draws their questions.
type ThemeCatalog interface {
	LoadTheme(ctx context.Context, code string) (domain.Theme, error)
	LoadRandomQuestions(ctx context.Context, themeID int64, count int) ([]domain.QuestionRecord, error)
	ListThemes(ctx context.Context) ([]domain.ThemeSummary, error)
}

// CatalogLoader reads theme content from a backing store; caches sit in front of it.
type CatalogLoader interface {
	LoadTheme(ctx context.Context, code string) (domain.Theme, error)
	LoadQuestions(ctx context.Context, themeID int64) ([]domain.QuestionRecord, error)
	ListThemes(ctx context.Context) ([]domain.ThemeSummary, error)
}

// ScoreRepository persists graded attempts and reads them back.
type ScoreRepository interface {
	InsertScore(ctx context.Context, record domain.ScoreRecord) error
	History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
}

// Submission is one player's answers for a session, keyed by zero-based position.
type Submission struct {
	UserID         string
	Answers        map[int]int
	ElapsedSeconds *int
}

// Result is what a graded session hands to the presentation layer.
type Result struct {
	SessionID      string                `json:"sessionId"`
	Theme          domain.Theme          `json:"theme"`
	Score          domain.ScoreRecord    `json:"score"`
	Classification domain.Classification `json:"classification"`
	Review         []domain.ReviewEntry  `json:"review"`
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions      SessionRepository
	catalog       ThemeCatalog
	scores        ScoreRepository
	levels        *leveling.Table
	log           *zap.Logger
	questionCount int
	newID         func() string
}

func NewQuizService(
	sessions SessionRepository,
	catalog ThemeCatalog,
	scores ScoreRepository,
	levels *leveling.Table,
	log *zap.Logger,
	questionCount int,
) *QuizService {
	if questionCount <= 0 {
		questionCount = domain.DefaultQuestionCount
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{
		sessions:      sessions,
		catalog:       catalog,
		scores:        scores,
		levels:        levels,
		log:           log,
		questionCount: questionCount,
		newID:         uuid.NewString,
	}
}

// StartQuiz loads a theme, draws its questions and stores a ready session.
func (s *QuizService) StartQuiz(ctx context.Context, themeCode string) (*Session, error) {
	theme, err := s.catalog.LoadTheme(ctx, themeCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, storeErr("load theme", err)
	}

	records, err := s.catalog.LoadRandomQuestions(ctx, theme.ID, s.questionCount)
	if err != nil {
		return nil, storeErr("load questions", err)
	}

	questions := make([]domain.Question, 0, len(records))
	for _, rec := range records {
		q, err := domain.NewQuestion(rec)
		if err != nil {
			s.log.Warn("skipping malformed question",
				zap.String("theme", theme.Code),
				zap.Int64("question_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("theme %q has no playable questions: %w", theme.Code, domain.ErrNotFound)
	}

	session := NewSession(s.newID(), theme, questions)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, storeErr("save session", err)
	}

	s.log.Info("quiz session started",
		zap.String("session_id", session.ID()),
		zap.String("theme", theme.Code),
		zap.Int("questions", len(questions)),
	)
	return session, nil
}

// Session returns an in-flight session, e.g. to render it again.
func (s *QuizService) Session(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, storeErr("get session", err)
	}
	return session, nil
}

// Submit grades a session, persists the score record and returns the result.
// When persisting fails the session stays graded with a pending score; RecordScore
// retries it.
func (s *QuizService) Submit(ctx context.Context, sessionID string, sub Submission) (Result, error) {
	if sub.UserID == "" {
		return Result{}, fmt.Errorf("%w: missing user id", domain.ErrValidation)
	}
	if sub.ElapsedSeconds != nil && *sub.ElapsedSeconds < 0 {
		return Result{}, fmt.Errorf("%w: negative elapsed time", domain.ErrValidation)
	}

	session, err := s.Session(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	if _, err := session.Submit(sub.Answers); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			s.log.Warn("repeated submission rejected", zap.String("session_id", sessionID), zap.Error(err))
		}
		return Result{}, err
	}
	if _, err := session.BuildScoreRecord(sub.UserID, sub.ElapsedSeconds); err != nil {
		return Result{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrSessionNotFound) {
			return Result{}, err
		}
		return Result{}, storeErr("save graded session", err)
	}

	return s.recordScore(ctx, session)
}

// RecordScore persists the pending score of a graded session whose earlier
// attempt to store it failed. A recorded session returns ErrInvalidState.
func (s *QuizService) RecordScore(ctx context.Context, sessionID string) (Result, error) {
	session, err := s.Session(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.recordScore(ctx, session)
}

func (s *QuizService) recordScore(ctx context.Context, session *Session) (Result, error) {
	record, err := session.PendingScore()
	if err != nil {
		return Result{}, err
	}
	if err := s.scores.InsertScore(ctx, record); err != nil {
		s.log.Warn("score not recorded, session kept for retry",
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
		return Result{}, storeErr("insert score", err)
	}
	session.MarkRecorded()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.log.Error("score recorded but session not updated",
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
	}

	classification, err := s.levels.Classify(record.RawScore, record.TotalQuestions)
	if err != nil {
		return Result{}, err
	}
	review, err := session.Review()
	if err != nil {
		return Result{}, err
	}

	s.log.Info("score recorded",
		zap.String("session_id", session.ID()),
		zap.String("user_id", record.UserID),
		zap.String("theme", session.Theme().Code),
		zap.Int("score", record.RawScore),
		zap.Int("total", record.TotalQuestions),
	)

	return Result{
		SessionID:      session.ID(),
		Theme:          session.Theme(),
		Score:          record,
		Classification: classification,
		Review:         review,
	}, nil
}

// Abandon drops a session that will never be submitted.
func (s *QuizService) Abandon(ctx context.Context, sessionID string) {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.log.Debug("abandon session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// ListThemes returns the selectable themes.
func (s *QuizService) ListThemes(ctx context.Context) ([]domain.ThemeSummary, error) {
	themes, err := s.catalog.ListThemes(ctx)
	if err != nil {
		return nil, storeErr("list themes", err)
	}
	return themes, nil
}

// History returns the latest games of a player with aggregate stats.
func (s *QuizService) History(ctx context.Context, userID string, limit int) (domain.HistoryReport, error) {
	if userID == "" {
		return domain.HistoryReport{}, fmt.Errorf("%w: missing user id", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.scores.History(ctx, userID, limit)
	if err != nil {
		return domain.HistoryReport{}, storeErr("load history", err)
	}

	report := domain.HistoryReport{
		UserID:  userID,
		Entries: make([]domain.HistoryResult, 0, len(entries)),
	}
	for _, e := range entries {
		c, err := s.levels.Classify(e.RawScore, e.TotalQuestions)
		if err != nil {
			s.log.Warn("skipping unclassifiable score", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		report.Entries = append(report.Entries, domain.HistoryResult{HistoryEntry: e, Classification: c})
		report.GamesPlayed++
		report.TotalPoints += e.RawScore
		if c.Percentage > report.BestPercentage {
			report.BestPercentage = c.Percentage
		}
	}
	return report, nil
}

// Levels exposes the band table for a quiz length.
func (s *QuizService) Levels(total int) ([]domain.LevelBand, error) {
	return s.levels.Bands(total)
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStore) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}
