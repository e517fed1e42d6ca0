package domain

import (
	"strings"
	"time"
)

// QuizType distinguishes the two supported quiz formats.
type QuizType string

const (
	QuizTypeMCQ       QuizType = "mcq"
	QuizTypeCrossword QuizType = "crossword"
)

// Quiz is the catalog view of a quiz together with its answer keys.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             QuizType   `json:"type"`
	Published        bool       `json:"isPublished"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"` // 0 means no limit
	MaxAttempts      int        `json:"maxAttempts"`      // 0 means unlimited
	TotalPoints      int        `json:"totalPoints"`
	Questions        []Question `json:"questions,omitempty"`
	Crossword        *Crossword `json:"crossword,omitempty"`
}

// IsActive reports whether the quiz is published and inside its time window at now.
func (q Quiz) IsActive(now time.Time) bool {
	if !q.Published {
		return false
	}
	if q.StartTime != nil && now.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && now.After(*q.EndTime) {
		return false
	}
	return true
}

// Question looks up an MCQ question of this quiz by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Clue looks up a crossword clue of this quiz by id.
func (q Quiz) Clue(id string) (Clue, bool) {
	if q.Crossword == nil {
		return Clue{}, false
	}
	for _, clue := range q.Crossword.Clues {
		if clue.ID == id {
			return clue, true
		}
	}
	return Clue{}, false
}

// OptionTag identifies one of the four MCQ option slots.
type OptionTag string

const (
	OptionA OptionTag = "A"
	OptionB OptionTag = "B"
	OptionC OptionTag = "C"
	OptionD OptionTag = "D"
)

// ParseOptionTag accepts exactly A, B, C or D.
func ParseOptionTag(raw string) (OptionTag, bool) {
	switch tag := OptionTag(raw); tag {
	case OptionA, OptionB, OptionC, OptionD:
		return tag, true
	default:
		return "", false
	}
}

// Question models an MCQ question. A and B are mandatory, C and D may be empty.
type Question struct {
	ID      string    `json:"id"`
	QuizID  string    `json:"quizId"`
	Text    string    `json:"text"`
	OptionA string    `json:"optionA"`
	OptionB string    `json:"optionB"`
	OptionC string    `json:"optionC,omitempty"`
	OptionD string    `json:"optionD,omitempty"`
	Correct OptionTag `json:"correctOption"`
	Points  int       `json:"points"`
	Order   int       `json:"order"`
}

// Direction of a crossword clue.
type Direction string

const (
	DirectionAcross Direction = "across"
	DirectionDown   Direction = "down"
)

// Crossword is the grid attached 1:1 to a crossword quiz.
type Crossword struct {
	QuizID string `json:"quizId"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
	Clues  []Clue `json:"clues"`
}

// Clue is a single crossword entry. (QuizID, Number, Direction) is unique.
type Clue struct {
	ID        string    `json:"id"`
	QuizID    string    `json:"quizId"`
	Number    int       `json:"number"`
	Direction Direction `json:"direction"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Answer    string    `json:"answer"`
	Text      string    `json:"clue"`
	Points    int       `json:"points"`
}

// User is an already-authenticated caller.
type User struct {
	ID    string
	Email string
}

// AttemptState is the lifecycle state of an attempt.
type AttemptState string

const (
	AttemptInProgress AttemptState = "in_progress"
	AttemptSubmitted  AttemptState = "submitted"
)

// Attempt is one user's pass at a quiz.
type Attempt struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	QuizID    string       `json:"quizId"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
	Score     int          `json:"score"`
	State     AttemptState `json:"state"`
}

// IsSubmitted reports whether the attempt has been finalized.
func (a Attempt) IsSubmitted() bool {
	return a.State == AttemptSubmitted
}

// ItemKind tells which answer key a submission is scored against.
type ItemKind string

const (
	ItemMCQ       ItemKind = "mcq"
	ItemCrossword ItemKind = "crossword"
)

// ItemRef points at a question (MCQ) or a clue (crossword).
type ItemRef struct {
	Kind ItemKind
	ID   string
}

// Submission is the stored answer for one (attempt, item) pair.
type Submission struct {
	AttemptID     string
	Kind          ItemKind
	ItemID        string
	Value         string
	IsCorrect     bool
	PointsAwarded int
	SubmittedAt   time.Time
}

// AnswerResult is returned to the caller after an answer is recorded.
type AnswerResult struct {
	AttemptID     string   `json:"attemptId"`
	Kind          ItemKind `json:"kind"`
	ItemID        string   `json:"itemId"`
	IsCorrect     bool     `json:"isCorrect"`
	PointsAwarded int      `json:"pointsAwarded"`
}

// LeaderboardEntry is the best result of one user on one quiz.
type LeaderboardEntry struct {
	QuizID        string    `json:"quizId"`
	UserID        string    `json:"userId"`
	BestScore     int       `json:"bestScore"`
	AttemptsCount int       `json:"attemptsCount"`
	LastAttemptAt time.Time `json:"lastAttemptAt"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// NormalizeAnswer folds a crossword answer for comparison.
func NormalizeAnswer(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
