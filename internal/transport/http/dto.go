package http

import (
	"time"

	"tequest-attempts/internal/domain"
)

// Answer keys never leave the service: the DTOs below omit Correct and Answer.

type quizSummary struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             string     `json:"type"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	MaxAttempts      int        `json:"maxAttempts"`
	TotalPoints      int        `json:"totalPoints"`
}

type questionView struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"optionA"`
	OptionB string `json:"optionB"`
	OptionC string `json:"optionC,omitempty"`
	OptionD string `json:"optionD,omitempty"`
	Points  int    `json:"points"`
	Order   int    `json:"order"`
}

type clueView struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Direction string `json:"direction"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Length    int    `json:"length"`
	Clue      string `json:"clue"`
	Points    int    `json:"points"`
}

type crosswordView struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Clues []clueView `json:"clues"`
}

type quizDetail struct {
	quizSummary
	Questions []questionView `json:"questions,omitempty"`
	Crossword *crosswordView `json:"crossword,omitempty"`
}

func summaryOf(q domain.Quiz) quizSummary {
	return quizSummary{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		Type:             string(q.Type),
		StartTime:        q.StartTime,
		EndTime:          q.EndTime,
		TimeLimitSeconds: q.TimeLimitSeconds,
		MaxAttempts:      q.MaxAttempts,
		TotalPoints:      q.TotalPoints,
	}
}

func detailOf(q domain.Quiz) quizDetail {
	detail := quizDetail{quizSummary: summaryOf(q)}
	for _, question := range q.Questions {
		detail.Questions = append(detail.Questions, questionView{
			ID:      question.ID,
			Text:    question.Text,
			OptionA: question.OptionA,
			OptionB: question.OptionB,
			OptionC: question.OptionC,
			OptionD: question.OptionD,
			Points:  question.Points,
			Order:   question.Order,
		})
	}
	if cw := q.Crossword; cw != nil {
		view := &crosswordView{Rows: cw.Rows, Cols: cw.Cols, Clues: make([]clueView, 0, len(cw.Clues))}
		for _, clue := range cw.Clues {
			view.Clues = append(view.Clues, clueView{
				ID:        clue.ID,
				Number:    clue.Number,
				Direction: string(clue.Direction),
				Row:       clue.Row,
				Col:       clue.Col,
				Length:    len([]rune(clue.Answer)),
				Clue:      clue.Text,
				Points:    clue.Points,
			})
		}
		detail.Crossword = view
	}
	return detail
}

type mcqRequest struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

type crosswordRequest struct {
	ClueID string `json:"clueId"`
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}
