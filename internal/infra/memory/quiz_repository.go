package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tequest-attempts/internal/domain"
)

// QuizLoader fetches quiz content, answer keys included, from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListPublished(ctx context.Context) ([]domain.Quiz, error)
}

// QuizRepository caches full quizzes with a jittered TTL so that scoring a
// submission does not hit the catalog database.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: r.clock().Add(r.ttlWithJitterLocked())}
			r.mu.Unlock()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ListPublished is not cached; listing is rare compared to scoring lookups.
func (r *QuizRepository) ListPublished(ctx context.Context) ([]domain.Quiz, error) {
	return r.loader.ListPublished(ctx)
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

// ttlWithJitterLocked adds up to 10% jitter to spread expirations. r.mu must be held.
func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map (tests, demos, no database).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) ListPublished(_ context.Context) ([]domain.Quiz, error) {
	quizzes := make([]domain.Quiz, 0, len(l.quizzes))
	for _, quiz := range l.quizzes {
		if quiz.Published {
			quizzes = append(quizzes, quiz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return quizzes, nil
}
