package app

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizmusic-service/internal/domain"
)

// Sampler draws questions uniformly at random without replacement.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSampler() *Sampler {
	return NewSamplerWithSeed(time.Now().UnixNano())
}

// NewSamplerWithSeed gives reproducible draws in tests.
func NewSamplerWithSeed(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Draw returns up to count records from pool. The pool is not modified.
func (s *Sampler) Draw(pool []domain.QuestionRecord, count int) []domain.QuestionRecord {
	if count <= 0 || len(pool) == 0 {
		return nil
	}
	if count > len(pool) {
		count = len(pool)
	}

	s.mu.Lock()
	perm := s.rnd.Perm(len(pool))
	s.mu.Unlock()

	out := make([]domain.QuestionRecord, 0, count)
	for _, idx := range perm[:count] {
		out = append(out, pool[idx])
	}
	return out
}

// Jitter returns a random duration in [0, max].
func (s *Sampler) Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rnd.Int63n(int64(max) + 1))
}

// PlayablePool drops records that cannot become a Question so that a draw of K
// from a theme with at least K playable questions always yields K.
func PlayablePool(records []domain.QuestionRecord, themeID int64, log *zap.Logger) []domain.QuestionRecord {
	kept, rejected := domain.Playable(records)
	for _, err := range rejected {
		log.Warn("skipping malformed question", zap.Int64("theme_id", themeID), zap.Error(err))
	}
	return kept
}
