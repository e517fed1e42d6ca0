package app

import (
	"context"
	"sync"
	"time"

	"tequest-attempts/internal/domain"
)

// LeaderboardSource produces the current leaderboard of a quiz.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, quizID string, limit int) (domain.Leaderboard, error)
}

// LeaderboardFeed fans leaderboard snapshots out to live subscribers.
// Per quiz, a snapshot older than the last one delivered is discarded, so
// concurrent refreshes never move subscribers back in time.
type LeaderboardFeed struct {
	source LeaderboardSource
	limit  int

	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
	sent        map[string]time.Time
}

func NewLeaderboardFeed(source LeaderboardSource, limit int) *LeaderboardFeed {
	return &LeaderboardFeed{
		source:      source,
		limit:       limit,
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
		sent:        make(map[string]time.Time),
	}
}

// Subscribe returns a channel that receives leaderboard updates for a quiz,
// starting with the current snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *LeaderboardFeed) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := f.source.Leaderboard(ctx, quizID, f.limit)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	subs, ok := f.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	if initial.UpdatedAt.After(f.sent[quizID]) {
		f.sent[quizID] = initial.UpdatedAt
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[quizID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, quizID)
			delete(f.sent, quizID)
		}
	}
	return ch, cancel, nil
}

// Refresh reloads the leaderboard of quizID and pushes it to its subscribers.
// Quizzes without subscribers are skipped.
func (f *LeaderboardFeed) Refresh(ctx context.Context, quizID string) error {
	if f.subscriberCount(quizID) == 0 {
		return nil
	}
	lb, err := f.source.Leaderboard(ctx, quizID, f.limit)
	if err != nil {
		return err
	}
	f.broadcast(lb)
	return nil
}

func (f *LeaderboardFeed) subscriberCount(quizID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[quizID])
}

func (f *LeaderboardFeed) broadcast(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lb.UpdatedAt.Before(f.sent[lb.QuizID]) {
		return
	}
	f.sent[lb.QuizID] = lb.UpdatedAt
	for ch := range f.subscribers[lb.QuizID] {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: replace the oldest queued snapshot with the newest.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
