package app

import "tequest-attempts/internal/domain"

// ScoreMCQ compares the selected tag against the question's correct option.
func ScoreMCQ(selected domain.OptionTag, question domain.Question) (bool, int) {
	if selected != question.Correct {
		return false, 0
	}
	return true, question.Points
}

// ScoreClue compares a crossword answer against the canonical one, ignoring
// case and surrounding whitespace.
func ScoreClue(answer string, clue domain.Clue) (bool, int) {
	if domain.NormalizeAnswer(answer) != domain.NormalizeAnswer(clue.Answer) {
		return false, 0
	}
	return true, clue.Points
}
