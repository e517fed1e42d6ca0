package domain

import "time"

// Audit actions emitted by the attempt lifecycle.
const (
	ActionAttemptStarted   = "attempt_started"
	ActionAttemptFinalized = "attempt_finalized"
)

// Event is a best-effort notification emitted after a lifecycle operation committed.
type Event struct {
	Action    string         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	UserEmail string         `json:"-"`
	QuizID    string         `json:"quizId"`
	QuizTitle string         `json:"quizTitle,omitempty"`
	AttemptID string         `json:"attemptId"`
	Score     int            `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	At        time.Time      `json:"at"`
}
