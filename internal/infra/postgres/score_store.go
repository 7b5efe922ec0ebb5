package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizmusic-service/internal/domain"
)

// ScoreStore appends graded attempts and reads a player's history.
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

func (s *ScoreStore) InsertScore(ctx context.Context, rec domain.ScoreRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scores (user_id, theme_id, raw_score, total_questions, elapsed_seconds, played_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.UserID, rec.ThemeID, rec.RawScore, rec.TotalQuestions, rec.ElapsedSeconds, rec.PlayedAt)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// History returns the newest records first, joined with their theme.
func (s *ScoreStore) History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.user_id, s.theme_id, s.raw_score, s.total_questions, s.elapsed_seconds, s.played_at,
		       t.title, t.emoji
		FROM scores s
		JOIN themes t ON t.id = s.theme_id
		WHERE s.user_id = $1
		ORDER BY s.played_at DESC, s.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.UserID, &e.ThemeID, &e.RawScore, &e.TotalQuestions, &e.ElapsedSeconds,
			&e.PlayedAt, &e.ThemeTitle, &e.ThemeEmoji); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
