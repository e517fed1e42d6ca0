package app

import (
	"context"
	"sort"
	"time"

	"tequest-attempts/internal/domain"
)

// Catalog is the read-only quiz view used by the lifecycle.
type Catalog struct {
	quizzes QuizRepository
}

func NewCatalog(quizzes QuizRepository) *Catalog {
	return &Catalog{quizzes: quizzes}
}

// GetActiveQuiz returns a published quiz. The time window is left to the caller
// so that a closed window can be told apart from a missing quiz.
func (c *Catalog) GetActiveQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := c.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.Published {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

// GetQuiz returns a quiz regardless of its publication flag.
func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.quizzes.GetQuiz(ctx, quizID)
}

// GetQuestion returns an MCQ question belonging to quizID.
func (c *Catalog) GetQuestion(ctx context.Context, quizID, questionID string) (domain.Question, error) {
	quiz, err := c.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := quiz.Question(questionID)
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

// GetClue returns a crossword clue belonging to quizID.
func (c *Catalog) GetClue(ctx context.Context, quizID, clueID string) (domain.Clue, error) {
	quiz, err := c.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Clue{}, err
	}
	clue, ok := quiz.Clue(clueID)
	if !ok {
		return domain.Clue{}, domain.ErrClueNotFound
	}
	return clue, nil
}

// ListActive returns the quizzes that are active at now, ordered by id.
func (c *Catalog) ListActive(ctx context.Context, now time.Time) ([]domain.Quiz, error) {
	published, err := c.quizzes.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]domain.Quiz, 0, len(published))
	for _, quiz := range published {
		if quiz.IsActive(now) {
			active = append(active, quiz)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}
