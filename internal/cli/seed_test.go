package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tequest-attempts/internal/domain"
	infraredis "tequest-attempts/internal/infra/redis"
)

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	data := []byte(`
quizzes:
  - id: capitals
    title: Capitals
    type: mcq
    published: true
    max_attempts: 0
    questions:
      - id: cap-1
        text: Capital of France?
        a: Paris
        b: Rome
        correct: A
        points: 2
      - id: cap-2
        text: Capital of Italy?
        a: Paris
        b: Rome
        correct: B
  - id: fruit
    title: Fruit
    type: crossword
    crossword:
      rows: 5
      cols: 5
      clues:
        - id: fruit-1a
          number: 1
          direction: across
          answer: APPLE
          clue: Keeps the doctor away
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	quizzes, err := loadSeedFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(quizzes) != 2 {
		t.Fatalf("expected 2 quizzes, got %d", len(quizzes))
	}

	capitals := quizzes[0]
	if capitals.MaxAttempts != 0 || capitals.TotalPoints != 3 || len(capitals.Questions) != 2 {
		t.Fatalf("unexpected mcq quiz %+v", capitals)
	}
	if capitals.Questions[1].Correct != domain.OptionB || capitals.Questions[1].Points != 1 || capitals.Questions[1].Order != 2 {
		t.Fatalf("unexpected defaults on question %+v", capitals.Questions[1])
	}

	fruit := quizzes[1]
	if fruit.MaxAttempts != 1 || fruit.Published || fruit.Crossword == nil || fruit.Crossword.Clues[0].Direction != domain.DirectionAcross {
		t.Fatalf("unexpected crossword quiz %+v", fruit)
	}
}

func TestSeedQuizValidation(t *testing.T) {
	bad := seedQuiz{ID: "q", Title: "Q", Type: "mcq", Questions: []seedQuestion{{ID: "q1", A: "x", B: "y", Correct: "a"}}}
	if _, err := bad.toDomain(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid option, got %v", err)
	}
	if _, err := (seedQuiz{ID: "q", Title: "Q", Type: "essay"}).toDomain(); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
	if _, err := (seedQuiz{ID: "q", Title: "Q", Type: "crossword"}).toDomain(); err == nil {
		t.Fatalf("expected missing crossword to fail")
	}
}

func TestSampleQuizzesAreConsistent(t *testing.T) {
	for id, quiz := range sampleQuizzes() {
		if quiz.ID != id {
			t.Fatalf("sample %s has id %s", id, quiz.ID)
		}
		total := 0
		for _, q := range quiz.Questions {
			total += q.Points
		}
		if quiz.Crossword != nil {
			for _, c := range quiz.Crossword.Clues {
				total += c.Points
			}
		}
		if total != quiz.TotalPoints {
			t.Fatalf("sample %s: total points %d, items sum to %d", id, quiz.TotalPoints, total)
		}
	}
}

func TestSaveQuizzesDropsStaleCacheEntries(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	catalog := newMapCatalog()
	old := sampleQuizzes()["arithmetic"]
	if err := catalog.SaveQuiz(ctx, old); err != nil {
		t.Fatalf("save: %v", err)
	}
	cache := infraredis.NewQuizRepository(client, catalog, time.Hour)
	if _, err := cache.GetQuiz(ctx, old.ID); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	updated := old
	updated.MaxAttempts = old.MaxAttempts + 2
	if err := saveQuizzes(ctx, catalog, cache, []domain.Quiz{updated}); err != nil {
		t.Fatalf("save quizzes: %v", err)
	}
	if mr.Exists("quiz:" + old.ID) {
		t.Fatalf("expected cached quiz to be dropped after seeding")
	}
	got, err := cache.GetQuiz(ctx, old.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.MaxAttempts != updated.MaxAttempts {
		t.Fatalf("expected max attempts %d after reseed, got %d", updated.MaxAttempts, got.MaxAttempts)
	}
}

func TestSaveQuizzesWithoutCache(t *testing.T) {
	catalog := newMapCatalog()
	if err := saveQuizzes(context.Background(), catalog, nil, sortedQuizzes(sampleQuizzes())); err != nil {
		t.Fatalf("save quizzes: %v", err)
	}
	if len(catalog.quizzes) != len(sampleQuizzes()) {
		t.Fatalf("expected every sample saved, got %d", len(catalog.quizzes))
	}
}

func TestSaveQuizzesStopsOnCatalogError(t *testing.T) {
	inv := &countingInvalidator{}
	boom := errors.New("boom")
	err := saveQuizzes(context.Background(), failingCatalog{err: boom}, inv, sortedQuizzes(sampleQuizzes()))
	if !errors.Is(err, boom) {
		t.Fatalf("expected catalog error, got %v", err)
	}
	if inv.calls != 0 {
		t.Fatalf("expected no invalidation for unsaved quizzes, got %d", inv.calls)
	}
}

type mapCatalog struct {
	mu      sync.Mutex
	quizzes map[string]domain.Quiz
}

func newMapCatalog() *mapCatalog {
	return &mapCatalog{quizzes: make(map[string]domain.Quiz)}
}

func (c *mapCatalog) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quizzes[quiz.ID] = quiz
	return nil
}

func (c *mapCatalog) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (c *mapCatalog) ListPublished(context.Context) ([]domain.Quiz, error) {
	return nil, nil
}

type failingCatalog struct{ err error }

func (c failingCatalog) SaveQuiz(context.Context, domain.Quiz) error { return c.err }

type countingInvalidator struct{ calls int }

func (i *countingInvalidator) Invalidate(context.Context, string) error {
	i.calls++
	return nil
}
