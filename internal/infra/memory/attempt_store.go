package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tequest-attempts/internal/app"
	"tequest-attempts/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
//
// A unit started with RunInTx stages its writes and applies them in one step on
// commit, so other readers never see a partial finalize. Row locks are per key;
// unrelated attempts and leaderboard rows never contend.
type AttemptStore struct {
	mu          sync.RWMutex
	attempts    map[string]domain.Attempt
	submissions map[submissionKey]domain.Submission
	entries     map[entryKey]domain.LeaderboardEntry

	locks *keyLocks
}

type submissionKey struct {
	attemptID string
	kind      domain.ItemKind
	itemID    string
}

type entryKey struct {
	quizID string
	userID string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts:    make(map[string]domain.Attempt),
		submissions: make(map[submissionKey]domain.Submission),
		entries:     make(map[entryKey]domain.LeaderboardEntry),
		locks:       newKeyLocks(),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; ok {
		return fmt.Errorf("attempt %s already exists", attempt.ID)
	}
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) CountSubmitted(_ context.Context, userID, quizID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, attempt := range s.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID && attempt.IsSubmitted() {
			count++
		}
	}
	return count, nil
}

func (s *AttemptStore) Leaderboard(_ context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0)
	for key, entry := range s.entries {
		if key.quizID == quizID {
			entries = append(entries, entry)
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestScore != entries[j].BestScore {
			return entries[i].BestScore > entries[j].BestScore
		}
		if !entries[i].LastAttemptAt.Equal(entries[j].LastAttemptAt) {
			return entries[i].LastAttemptAt.Before(entries[j].LastAttemptAt)
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *AttemptStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	tx := &memoryTx{
		store:       s,
		held:        make(map[string]func()),
		attempts:    make(map[string]domain.Attempt),
		submissions: make(map[submissionKey]domain.Submission),
		entries:     make(map[entryKey]domain.LeaderboardEntry),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx stages writes on top of the committed maps.
type memoryTx struct {
	store *AttemptStore
	held  map[string]func()
	order []string

	attempts    map[string]domain.Attempt
	submissions map[submissionKey]domain.Submission
	entries     map[entryKey]domain.LeaderboardEntry
}

func (t *memoryTx) lock(key string, shared bool) {
	if _, ok := t.held[key]; ok {
		return
	}
	t.held[key] = t.store.locks.acquire(key, shared)
	t.order = append(t.order, key)
}

func (t *memoryTx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.held[t.order[i]]()
	}
	t.held = nil
	t.order = nil
}

func (t *memoryTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, attempt := range t.attempts {
		t.store.attempts[id] = attempt
	}
	for key, submission := range t.submissions {
		t.store.submissions[key] = submission
	}
	for key, entry := range t.entries {
		t.store.entries[key] = entry
	}
}

func (t *memoryTx) attempt(attemptID string) (domain.Attempt, bool) {
	if attempt, ok := t.attempts[attemptID]; ok {
		return attempt, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	attempt, ok := t.store.attempts[attemptID]
	return attempt, ok
}

func (t *memoryTx) ownedInProgress(attemptID, userID string) (domain.Attempt, error) {
	attempt, ok := t.attempt(attemptID)
	if !ok || attempt.UserID != userID || attempt.State != domain.AttemptInProgress {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (t *memoryTx) LockAttempt(_ context.Context, attemptID, userID string) (domain.Attempt, error) {
	t.lock("attempt:"+attemptID, false)
	return t.ownedInProgress(attemptID, userID)
}

func (t *memoryTx) ShareAttempt(_ context.Context, attemptID, userID string) (domain.Attempt, error) {
	t.lock("attempt:"+attemptID, true)
	return t.ownedInProgress(attemptID, userID)
}

func (t *memoryTx) LockSlot(_ context.Context, quizID, userID string) error {
	t.lock("slot:"+quizID+":"+userID, false)
	return nil
}

func (t *memoryTx) UpsertSubmission(_ context.Context, submission domain.Submission) error {
	key := submissionKey{attemptID: submission.AttemptID, kind: submission.Kind, itemID: submission.ItemID}
	t.submissions[key] = submission
	return nil
}

func (t *memoryTx) SumAwardedPoints(_ context.Context, attemptID string) (int, error) {
	points := make(map[submissionKey]int)
	t.store.mu.RLock()
	for key, submission := range t.store.submissions {
		if key.attemptID == attemptID {
			points[key] = submission.PointsAwarded
		}
	}
	t.store.mu.RUnlock()
	for key, submission := range t.submissions {
		if key.attemptID == attemptID {
			points[key] = submission.PointsAwarded
		}
	}

	total := 0
	for _, p := range points {
		total += p
	}
	return total, nil
}

func (t *memoryTx) MarkSubmitted(_ context.Context, attemptID string, endedAt time.Time, score int) error {
	attempt, ok := t.attempt(attemptID)
	if !ok || attempt.State != domain.AttemptInProgress {
		return domain.ErrAttemptNotFound
	}
	attempt.State = domain.AttemptSubmitted
	attempt.EndedAt = &endedAt
	attempt.Score = score
	t.attempts[attemptID] = attempt
	return nil
}

func (t *memoryTx) CountSubmitted(_ context.Context, userID, quizID string) (int, error) {
	matches := func(a domain.Attempt) bool {
		return a.UserID == userID && a.QuizID == quizID && a.IsSubmitted()
	}

	count := 0
	t.store.mu.RLock()
	for id, attempt := range t.store.attempts {
		if staged, ok := t.attempts[id]; ok {
			attempt = staged
		}
		if matches(attempt) {
			count++
		}
	}
	for id, attempt := range t.attempts {
		if _, ok := t.store.attempts[id]; !ok && matches(attempt) {
			count++
		}
	}
	t.store.mu.RUnlock()
	return count, nil
}

func (t *memoryTx) LeaderboardEntryForUpdate(_ context.Context, quizID, userID string) (domain.LeaderboardEntry, error) {
	t.lock("leaderboard:"+quizID+":"+userID, false)
	key := entryKey{quizID: quizID, userID: userID}
	if entry, ok := t.entries[key]; ok {
		return entry, nil
	}
	t.store.mu.RLock()
	entry, ok := t.store.entries[key]
	t.store.mu.RUnlock()
	if !ok {
		entry = domain.LeaderboardEntry{QuizID: quizID, UserID: userID}
	}
	return entry, nil
}

func (t *memoryTx) SaveLeaderboardEntry(_ context.Context, entry domain.LeaderboardEntry) error {
	key := entryKey{quizID: entry.QuizID, userID: entry.UserID}
	if _, ok := t.held["leaderboard:"+entry.QuizID+":"+entry.UserID]; !ok {
		return fmt.Errorf("leaderboard entry %s/%s saved without lock", entry.QuizID, entry.UserID)
	}
	t.entries[key] = entry
	return nil
}
