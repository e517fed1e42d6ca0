package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tequest-attempts/internal/domain"
)

// AttemptService contains the attempt lifecycle use cases.
type AttemptService struct {
	catalog     *Catalog
	attempts    AttemptStore
	leaderboard *LeaderboardAggregator
	events      EventPublisher
	now         func() time.Time
	newID       func() string
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptStore, leaderboard *LeaderboardAggregator, events EventPublisher) *AttemptService {
	if events == nil {
		events = discardPublisher{}
	}
	return &AttemptService{
		catalog:     NewCatalog(quizzes),
		attempts:    attempts,
		leaderboard: leaderboard,
		events:      events,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	s.leaderboard.now = now
	return s
}

// StartAttempt opens a new in-progress attempt if the quiz is active and the
// user has submitted fewer than max_attempts attempts.
func (s *AttemptService) StartAttempt(ctx context.Context, user domain.User, quizID string) (domain.Attempt, error) {
	quiz, err := s.catalog.GetActiveQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	now := s.now()
	if !quiz.IsActive(now) {
		return domain.Attempt{}, domain.ErrQuizInactive
	}
	if quiz.MaxAttempts > 0 {
		submitted, err := s.attempts.CountSubmitted(ctx, user.ID, quiz.ID)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("count attempts: %w", err)
		}
		if submitted >= quiz.MaxAttempts {
			return domain.Attempt{}, domain.ErrAttemptLimitReached
		}
	}

	attempt := domain.Attempt{
		ID:        s.newID(),
		UserID:    user.ID,
		QuizID:    quiz.ID,
		StartedAt: now,
		State:     domain.AttemptInProgress,
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}

	s.events.Publish(domain.Event{
		Action:    domain.ActionAttemptStarted,
		UserID:    user.ID,
		UserEmail: user.Email,
		QuizID:    quiz.ID,
		QuizTitle: quiz.Title,
		AttemptID: attempt.ID,
		Metadata:  map[string]any{"quiz_id": quiz.ID, "attempt_id": attempt.ID},
		At:        now,
	})
	return attempt, nil
}

// SubmitAnswer scores value against the referenced item and upserts the
// submission. Resubmitting the same item overwrites the previous verdict.
func (s *AttemptService) SubmitAnswer(ctx context.Context, user domain.User, attemptID string, ref domain.ItemRef, value string) (domain.AnswerResult, error) {
	if attemptID == "" || ref.ID == "" {
		return domain.AnswerResult{}, domain.ErrMissingField
	}
	if ref.Kind != domain.ItemMCQ && ref.Kind != domain.ItemCrossword {
		return domain.AnswerResult{}, domain.ErrUnknownItemKind
	}

	var result domain.AnswerResult
	err := s.attempts.RunInTx(ctx, func(ctx context.Context, tx AttemptTx) error {
		attempt, err := tx.ShareAttempt(ctx, attemptID, user.ID)
		if err != nil {
			return err
		}

		var correct bool
		var points int
		switch ref.Kind {
		case domain.ItemMCQ:
			question, err := s.catalog.GetQuestion(ctx, attempt.QuizID, ref.ID)
			if err != nil {
				return err
			}
			tag, ok := domain.ParseOptionTag(value)
			if !ok {
				return domain.ErrInvalidOption
			}
			correct, points = ScoreMCQ(tag, question)
		case domain.ItemCrossword:
			clue, err := s.catalog.GetClue(ctx, attempt.QuizID, ref.ID)
			if err != nil {
				return err
			}
			if strings.TrimSpace(value) == "" {
				return domain.ErrMissingField
			}
			correct, points = ScoreClue(value, clue)
		}

		if err := tx.UpsertSubmission(ctx, domain.Submission{
			AttemptID:     attempt.ID,
			Kind:          ref.Kind,
			ItemID:        ref.ID,
			Value:         value,
			IsCorrect:     correct,
			PointsAwarded: points,
			SubmittedAt:   s.now(),
		}); err != nil {
			return fmt.Errorf("upsert submission: %w", err)
		}

		result = domain.AnswerResult{
			AttemptID:     attempt.ID,
			Kind:          ref.Kind,
			ItemID:        ref.ID,
			IsCorrect:     correct,
			PointsAwarded: points,
		}
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return result, nil
}

// FinalizeAttempt locks the attempt, sums its awarded points, marks it
// submitted and records the result on the leaderboard, all in one unit.
// Audit and notification happen after commit and never fail the call.
//
// It returns domain.ErrAttemptNotFound when the attempt is unknown, owned by
// someone else or already submitted. It returns domain.ErrAttemptLimitReached
// (an AttemptNotAllowed error) when the user already has max_attempts
// submitted attempts for the quiz; the attempt then stays in progress.
func (s *AttemptService) FinalizeAttempt(ctx context.Context, user domain.User, attemptID string) (domain.Attempt, error) {
	var finalized domain.Attempt
	var quiz domain.Quiz
	err := s.attempts.RunInTx(ctx, func(ctx context.Context, tx AttemptTx) error {
		attempt, err := tx.LockAttempt(ctx, attemptID, user.ID)
		if err != nil {
			return err
		}
		quiz, err = s.catalog.GetQuiz(ctx, attempt.QuizID)
		if err != nil {
			return err
		}

		if err := tx.LockSlot(ctx, attempt.QuizID, user.ID); err != nil {
			return fmt.Errorf("lock attempt slot: %w", err)
		}
		// Attempts started concurrently all passed the start gate; only
		// max_attempts of them may reach submitted.
		if quiz.MaxAttempts > 0 {
			submitted, err := tx.CountSubmitted(ctx, user.ID, attempt.QuizID)
			if err != nil {
				return fmt.Errorf("count attempts: %w", err)
			}
			if submitted >= quiz.MaxAttempts {
				return domain.ErrAttemptLimitReached
			}
		}

		score, err := tx.SumAwardedPoints(ctx, attempt.ID)
		if err != nil {
			return fmt.Errorf("sum points: %w", err)
		}
		endedAt := s.now()
		if err := tx.MarkSubmitted(ctx, attempt.ID, endedAt, score); err != nil {
			return err
		}
		if _, err := s.leaderboard.RecordResult(ctx, tx, attempt.QuizID, user.ID, score, endedAt); err != nil {
			return fmt.Errorf("record result: %w", err)
		}

		attempt.EndedAt = &endedAt
		attempt.Score = score
		attempt.State = domain.AttemptSubmitted
		finalized = attempt
		return nil
	})
	if err != nil {
		return domain.Attempt{}, err
	}

	s.events.Publish(domain.Event{
		Action:    domain.ActionAttemptFinalized,
		UserID:    user.ID,
		UserEmail: user.Email,
		QuizID:    finalized.QuizID,
		QuizTitle: quiz.Title,
		AttemptID: finalized.ID,
		Score:     finalized.Score,
		Metadata:  map[string]any{"quiz_id": finalized.QuizID, "attempt_id": finalized.ID, "score": finalized.Score},
		At:        *finalized.EndedAt,
	})
	return finalized, nil
}

// GetAttempt returns an attempt owned by the user, in any state.
func (s *AttemptService) GetAttempt(ctx context.Context, user domain.User, attemptID string) (domain.Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.UserID != user.ID {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// Leaderboard returns the ordered leaderboard of an existing quiz.
func (s *AttemptService) Leaderboard(ctx context.Context, quizID string, limit int) (domain.Leaderboard, error) {
	if _, err := s.catalog.GetQuiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	return s.leaderboard.Leaderboard(ctx, quizID, limit)
}

// ListActiveQuizzes returns the quizzes that can be started right now.
func (s *AttemptService) ListActiveQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.catalog.ListActive(ctx, s.now())
}

// QuizDetail returns a published quiz with its questions and clues.
func (s *AttemptService) QuizDetail(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.catalog.GetActiveQuiz(ctx, quizID)
}
