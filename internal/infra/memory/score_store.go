package memory

import (
	"context"
	"sort"
	"sync"

	"quizmusic-service/internal/domain"
)

// ScoreStore keeps score records in memory. Theme titles for history come from the
// static catalog when one is attached.
type ScoreStore struct {
	catalog *StaticCatalog

	mu      sync.RWMutex
	records []domain.ScoreRecord
}

func NewScoreStore(catalog *StaticCatalog) *ScoreStore {
	return &ScoreStore{catalog: catalog}
}

func (s *ScoreStore) InsertScore(_ context.Context, record domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *ScoreStore) History(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	var out []domain.HistoryEntry
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		entry := domain.HistoryEntry{ScoreRecord: r}
		if s.catalog != nil {
			if t, ok := s.catalog.themeByID(r.ThemeID); ok {
				entry.ThemeTitle = t.Title
				entry.ThemeEmoji = t.Emoji
			}
		}
		out = append(out, entry)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayedAt.After(out[j].PlayedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns every stored record in insertion order.
func (s *ScoreStore) Records() []domain.ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ScoreRecord(nil), s.records...)
}
