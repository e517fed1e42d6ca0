package app

import (
	"context"
	"time"

	"tequest-attempts/internal/domain"
)

// DefaultLeaderboardPageSize caps leaderboard queries.
const DefaultLeaderboardPageSize = 100

// LeaderboardAggregator is the only writer of leaderboard entries.
type LeaderboardAggregator struct {
	store    AttemptStore
	pageSize int
	now      func() time.Time
}

func NewLeaderboardAggregator(store AttemptStore, pageSize int) *LeaderboardAggregator {
	if pageSize <= 0 {
		pageSize = DefaultLeaderboardPageSize
	}
	return &LeaderboardAggregator{store: store, pageSize: pageSize, now: time.Now}
}

// RecordResult folds a finalized score into the (quiz, user) entry. It must run
// inside the finalize unit, after the attempt was marked submitted, so that the
// recount includes it.
func (l *LeaderboardAggregator) RecordResult(ctx context.Context, tx AttemptTx, quizID, userID string, score int, at time.Time) (domain.LeaderboardEntry, error) {
	entry, err := tx.LeaderboardEntryForUpdate(ctx, quizID, userID)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	submitted, err := tx.CountSubmitted(ctx, userID, quizID)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}

	if score > entry.BestScore {
		entry.BestScore = score
	}
	entry.AttemptsCount = submitted
	entry.LastAttemptAt = at

	if err := tx.SaveLeaderboardEntry(ctx, entry); err != nil {
		return domain.LeaderboardEntry{}, err
	}
	return entry, nil
}

// Leaderboard returns the top entries of a quiz. limit <= 0 or above the page
// size is clamped to the page size.
func (l *LeaderboardAggregator) Leaderboard(ctx context.Context, quizID string, limit int) (domain.Leaderboard, error) {
	if limit <= 0 || limit > l.pageSize {
		limit = l.pageSize
	}
	// Taken before the read so a later timestamp never carries older rows.
	readAt := l.now()
	entries, err := l.store.Leaderboard(ctx, quizID, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{
		QuizID:    quizID,
		Entries:   entries,
		UpdatedAt: readAt,
	}, nil
}
