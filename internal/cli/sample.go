package cli

import "tequest-attempts/internal/domain"

// sampleQuizzes backs the service when no catalog database is configured and
// is what `seed` writes when no file is given.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"arithmetic": {
			ID:          "arithmetic",
			Title:       "Arithmetic warm-up",
			Description: "Two quick sums.",
			Type:        domain.QuizTypeMCQ,
			Published:   true,
			MaxAttempts: 3,
			TotalPoints: 5,
			Questions: []domain.Question{
				{ID: "arithmetic-q1", QuizID: "arithmetic", Text: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", Correct: domain.OptionB, Points: 3, Order: 1},
				{ID: "arithmetic-q2", QuizID: "arithmetic", Text: "What is 3 - 1?", OptionA: "1", OptionB: "3", OptionC: "0", OptionD: "2", Correct: domain.OptionD, Points: 2, Order: 2},
			},
		},
		"animals": {
			ID:          "animals",
			Title:       "Animal crossword",
			Type:        domain.QuizTypeCrossword,
			Published:   true,
			TotalPoints: 4,
			Crossword: &domain.Crossword{
				QuizID: "animals",
				Rows:   3,
				Cols:   3,
				Clues: []domain.Clue{
					{ID: "animals-1a", QuizID: "animals", Number: 1, Direction: domain.DirectionAcross, Row: 0, Col: 0, Answer: "CAT", Text: "Says meow", Points: 2},
					{ID: "animals-1d", QuizID: "animals", Number: 1, Direction: domain.DirectionDown, Row: 0, Col: 0, Answer: "COW", Text: "Says moo", Points: 2},
				},
			},
		},
	}
}
