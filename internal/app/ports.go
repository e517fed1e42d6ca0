package app

import (
	"context"
	"time"

	"tequest-attempts/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListPublished(ctx context.Context) ([]domain.Quiz, error)
}

// AttemptStore persists attempts, submissions and leaderboard rows.
// Reads outside RunInTx only ever observe committed state.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	CountSubmitted(ctx context.Context, userID, quizID string) (int, error)
	Leaderboard(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error)

	// RunInTx runs fn as one atomic unit. Locks taken through the AttemptTx are
	// held until the unit commits or rolls back; an error from fn discards every write.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx AttemptTx) error) error
}

// AttemptTx is the view of the store inside an atomic unit. Locks are acquired
// in the order attempt, slot, leaderboard entry.
type AttemptTx interface {
	// LockAttempt returns the in-progress attempt owned by userID under an
	// exclusive lock, or domain.ErrAttemptNotFound.
	LockAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error)
	// ShareAttempt is LockAttempt with a shared lock: it excludes finalize but
	// not other submissions.
	ShareAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error)
	// LockSlot serializes finalizes of the same user on the same quiz.
	LockSlot(ctx context.Context, quizID, userID string) error

	UpsertSubmission(ctx context.Context, submission domain.Submission) error
	SumAwardedPoints(ctx context.Context, attemptID string) (int, error)
	// MarkSubmitted moves an attempt from in progress to submitted. It fails with
	// domain.ErrAttemptNotFound when the attempt is not in progress.
	MarkSubmitted(ctx context.Context, attemptID string, endedAt time.Time, score int) error
	CountSubmitted(ctx context.Context, userID, quizID string) (int, error)

	// LeaderboardEntryForUpdate returns the (quiz, user) row under an exclusive
	// lock, creating an empty one if absent.
	LeaderboardEntryForUpdate(ctx context.Context, quizID, userID string) (domain.LeaderboardEntry, error)
	SaveLeaderboardEntry(ctx context.Context, entry domain.LeaderboardEntry) error
}

// EventPublisher receives lifecycle events after commit. Publish must not block.
type EventPublisher interface {
	Publish(event domain.Event)
}

type discardPublisher struct{}

func (discardPublisher) Publish(domain.Event) {}
