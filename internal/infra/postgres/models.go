package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"tequest-attempts/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID        string     `bun:"id,pk"`
	UserID    string     `bun:"user_id,notnull"`
	QuizID    string     `bun:"quiz_id,notnull"`
	StartedAt time.Time  `bun:"started_at,notnull"`
	EndedAt   *time.Time `bun:"ended_at"`
	Score     int        `bun:"score,notnull"`
	State     string     `bun:"state,notnull"`
}

func attemptRowFrom(a domain.Attempt) attemptRow {
	return attemptRow{
		ID:        a.ID,
		UserID:    a.UserID,
		QuizID:    a.QuizID,
		StartedAt: a.StartedAt,
		EndedAt:   a.EndedAt,
		Score:     a.Score,
		State:     string(a.State),
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:        r.ID,
		UserID:    r.UserID,
		QuizID:    r.QuizID,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Score:     r.Score,
		State:     domain.AttemptState(r.State),
	}
}

type mcqSubmissionRow struct {
	bun.BaseModel `bun:"table:mcq_submissions,alias:ms"`

	AttemptID      string    `bun:"attempt_id,pk"`
	QuestionID     string    `bun:"question_id,pk"`
	SelectedOption string    `bun:"selected_option,notnull"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	PointsAwarded  int       `bun:"points_awarded,notnull"`
	SubmittedAt    time.Time `bun:"submitted_at,notnull"`
}

type crosswordAnswerRow struct {
	bun.BaseModel `bun:"table:crossword_answers,alias:ca"`

	AttemptID     string    `bun:"attempt_id,pk"`
	ClueID        string    `bun:"clue_id,pk"`
	Answer        string    `bun:"answer,notnull"`
	IsCorrect     bool      `bun:"is_correct,notnull"`
	PointsAwarded int       `bun:"points_awarded,notnull"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull"`
}

type leaderboardEntryRow struct {
	bun.BaseModel `bun:"table:leaderboard_entries,alias:le"`

	QuizID        string    `bun:"quiz_id,pk"`
	UserID        string    `bun:"user_id,pk"`
	BestScore     int       `bun:"best_score,notnull"`
	AttemptsCount int       `bun:"attempts_count,notnull"`
	LastAttemptAt time.Time `bun:"last_attempt_at,nullzero"`
}

func leaderboardEntryRowFrom(e domain.LeaderboardEntry) leaderboardEntryRow {
	return leaderboardEntryRow{
		QuizID:        e.QuizID,
		UserID:        e.UserID,
		BestScore:     e.BestScore,
		AttemptsCount: e.AttemptsCount,
		LastAttemptAt: e.LastAttemptAt,
	}
}

func (r leaderboardEntryRow) toDomain() domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		QuizID:        r.QuizID,
		UserID:        r.UserID,
		BestScore:     r.BestScore,
		AttemptsCount: r.AttemptsCount,
		LastAttemptAt: r.LastAttemptAt,
	}
}
