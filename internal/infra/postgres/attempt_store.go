package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"tequest-attempts/internal/app"
	"tequest-attempts/internal/domain"
)

// AttemptStore keeps attempts, submissions and leaderboard rows in Postgres.
// Row locks back the AttemptTx contract: FOR UPDATE on the attempt for
// finalize, FOR SHARE for submissions, a transaction-scoped advisory lock for
// the (quiz, user) slot and FOR UPDATE on the leaderboard row.
type AttemptStore struct {
	db          *bun.DB
	lockTimeout time.Duration
}

// NewAttemptStore returns a store on db. A positive lockTimeout bounds how long
// a unit waits for row locks before failing.
func NewAttemptStore(db *bun.DB, lockTimeout time.Duration) *AttemptStore {
	return &AttemptStore{db: db, lockTimeout: lockTimeout}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt) error {
	row := attemptRowFrom(attempt)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) CountSubmitted(ctx context.Context, userID, quizID string) (int, error) {
	return countSubmitted(ctx, s.db, userID, quizID)
}

func (s *AttemptStore) Leaderboard(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardEntryRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		OrderExpr("best_score DESC, last_attempt_at ASC NULLS LAST, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

func (s *AttemptStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(ctx, &attemptTx{tx: tx})
	})
}

func countSubmitted(ctx context.Context, db bun.IDB, userID, quizID string) (int, error) {
	n, err := db.NewSelect().
		Model((*attemptRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Where("state = ?", string(domain.AttemptSubmitted)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count submitted attempts: %w", err)
	}
	return n, nil
}

type attemptTx struct {
	tx bun.Tx
}

func (t *attemptTx) LockAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error) {
	return t.lockAttempt(ctx, attemptID, userID, "UPDATE")
}

func (t *attemptTx) ShareAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error) {
	return t.lockAttempt(ctx, attemptID, userID, "SHARE")
}

// lockAttempt filters on state so that a waiter re-evaluates the row after the
// holder commits and sees a finalized attempt as missing.
func (t *attemptTx) lockAttempt(ctx context.Context, attemptID, userID, strength string) (domain.Attempt, error) {
	var row attemptRow
	err := t.tx.NewSelect().
		Model(&row).
		Where("id = ?", attemptID).
		Where("user_id = ?", userID).
		Where("state = ?", string(domain.AttemptInProgress)).
		For(strength).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("lock attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (t *attemptTx) LockSlot(ctx context.Context, quizID, userID string) error {
	_, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", "attempt-slot:"+quizID+":"+userID)
	return err
}

func (t *attemptTx) UpsertSubmission(ctx context.Context, s domain.Submission) error {
	var err error
	switch s.Kind {
	case domain.ItemMCQ:
		row := mcqSubmissionRow{
			AttemptID:      s.AttemptID,
			QuestionID:     s.ItemID,
			SelectedOption: s.Value,
			IsCorrect:      s.IsCorrect,
			PointsAwarded:  s.PointsAwarded,
			SubmittedAt:    s.SubmittedAt,
		}
		_, err = t.tx.NewInsert().
			Model(&row).
			On("CONFLICT (attempt_id, question_id) DO UPDATE").
			Set("selected_option = EXCLUDED.selected_option").
			Set("is_correct = EXCLUDED.is_correct").
			Set("points_awarded = EXCLUDED.points_awarded").
			Set("submitted_at = EXCLUDED.submitted_at").
			Exec(ctx)
	case domain.ItemCrossword:
		row := crosswordAnswerRow{
			AttemptID:     s.AttemptID,
			ClueID:        s.ItemID,
			Answer:        s.Value,
			IsCorrect:     s.IsCorrect,
			PointsAwarded: s.PointsAwarded,
			SubmittedAt:   s.SubmittedAt,
		}
		_, err = t.tx.NewInsert().
			Model(&row).
			On("CONFLICT (attempt_id, clue_id) DO UPDATE").
			Set("answer = EXCLUDED.answer").
			Set("is_correct = EXCLUDED.is_correct").
			Set("points_awarded = EXCLUDED.points_awarded").
			Set("submitted_at = EXCLUDED.submitted_at").
			Exec(ctx)
	default:
		return domain.ErrUnknownItemKind
	}
	return err
}

const sumAwardedPointsSQL = `
SELECT COALESCE(SUM(points_awarded), 0) FROM (
	SELECT points_awarded FROM mcq_submissions WHERE attempt_id = ?
	UNION ALL
	SELECT points_awarded FROM crossword_answers WHERE attempt_id = ?
) AS awarded`

func (t *attemptTx) SumAwardedPoints(ctx context.Context, attemptID string) (int, error) {
	var total int
	if err := t.tx.QueryRowContext(ctx, sumAwardedPointsSQL, attemptID, attemptID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (t *attemptTx) MarkSubmitted(ctx context.Context, attemptID string, endedAt time.Time, score int) error {
	res, err := t.tx.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("state = ?", string(domain.AttemptSubmitted)).
		Set("ended_at = ?", endedAt).
		Set("score = ?", score).
		Where("id = ?", attemptID).
		Where("state = ?", string(domain.AttemptInProgress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (t *attemptTx) CountSubmitted(ctx context.Context, userID, quizID string) (int, error) {
	return countSubmitted(ctx, t.tx, userID, quizID)
}

func (t *attemptTx) LeaderboardEntryForUpdate(ctx context.Context, quizID, userID string) (domain.LeaderboardEntry, error) {
	seed := leaderboardEntryRow{QuizID: quizID, UserID: userID}
	if _, err := t.tx.NewInsert().
		Model(&seed).
		On("CONFLICT (quiz_id, user_id) DO NOTHING").
		Exec(ctx); err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("ensure leaderboard entry: %w", err)
	}

	var row leaderboardEntryRow
	err := t.tx.NewSelect().
		Model(&row).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("lock leaderboard entry: %w", err)
	}
	return row.toDomain(), nil
}

func (t *attemptTx) SaveLeaderboardEntry(ctx context.Context, entry domain.LeaderboardEntry) error {
	row := leaderboardEntryRowFrom(entry)
	_, err := t.tx.NewUpdate().
		Model(&row).
		Column("best_score", "attempts_count", "last_attempt_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save leaderboard entry: %w", err)
	}
	return nil
}
