package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"tequest-attempts/internal/domain"
	"tequest-attempts/internal/infra/memory"
)

// QuizRepository caches full quizzes, answer keys included, in Redis and falls
// back to a loader on cache miss.
// Quizzes are stored as JSON: SET quiz:{quizID} {json} EX ttl
// A non-positive ttl disables caching.
type QuizRepository struct {
	client *redis.Client
	loader memory.QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader memory.QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if r.ttl <= 0 {
			return quiz, nil
		}
		payload, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := r.client.Set(ctx, r.key(quizID), payload, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("redis: cache quiz %s: %v", quizID, err)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ListPublished reads through to the loader; only single quizzes are cached.
func (r *QuizRepository) ListPublished(ctx context.Context) ([]domain.Quiz, error) {
	return r.loader.ListPublished(ctx)
}

// Invalidate removes a cached quiz so the next lookup reloads it.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.key(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	payload, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis: read cached quiz %s: %v", quizID, err)
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(payload, &quiz); err != nil {
		log.Printf("redis: decode cached quiz %s: %v", quizID, err)
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:" + quizID
}

// ttlWithJitter adds up to 10% jitter to a positive ttl.
func (r *QuizRepository) ttlWithJitter() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
