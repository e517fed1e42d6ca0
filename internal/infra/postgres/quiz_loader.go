package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tequest-attempts/internal/domain"
)

// QuizLoader reads the quiz catalog (quizzes, MCQ questions, crosswords and
// their clues) from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

const quizColumns = `id, title, description, quiz_type, is_published, start_time, end_time,
	time_limit_seconds, max_attempts, total_points`

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		quiz      domain.Quiz
		quizType  string
		startTime *time.Time
		endTime   *time.Time
	)
	err := row.Scan(
		&quiz.ID, &quiz.Title, &quiz.Description, &quizType, &quiz.Published,
		&startTime, &endTime, &quiz.TimeLimitSeconds, &quiz.MaxAttempts, &quiz.TotalPoints,
	)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Type = domain.QuizType(quizType)
	quiz.StartTime = startTime
	quiz.EndTime = endTime
	return quiz, nil
}

// LoadQuiz returns a quiz with its answer keys, whatever its publication flag.
func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := scanQuiz(l.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, quizID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	switch quiz.Type {
	case domain.QuizTypeMCQ:
		quiz.Questions, err = l.loadQuestions(ctx, quizID)
	case domain.QuizTypeCrossword:
		quiz.Crossword, err = l.loadCrossword(ctx, quizID)
	}
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// ListPublished returns published quiz metadata without questions or clues.
func (l *QuizLoader) ListPublished(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE is_published ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (l *QuizLoader) loadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, quiz_id, text, option_a, option_b, option_c, option_d, correct_option, points, position
		FROM mcq_questions WHERE quiz_id=$1 ORDER BY position, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var correct string
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &correct, &q.Points, &q.Order); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Correct = domain.OptionTag(strings.TrimSpace(correct))
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (l *QuizLoader) loadCrossword(ctx context.Context, quizID string) (*domain.Crossword, error) {
	cw := &domain.Crossword{QuizID: quizID}
	err := l.pool.QueryRow(ctx, `SELECT rows_count, cols_count FROM crosswords WHERE quiz_id=$1`, quizID).Scan(&cw.Rows, &cw.Cols)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load crossword: %w", err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, quiz_id, number, direction, row_index, col_index, answer, clue, points
		FROM crossword_clues WHERE quiz_id=$1 ORDER BY number, direction`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load clues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Clue
		var direction string
		if err := rows.Scan(&c.ID, &c.QuizID, &c.Number, &direction, &c.Row, &c.Col, &c.Answer, &c.Text, &c.Points); err != nil {
			return nil, fmt.Errorf("scan clue: %w", err)
		}
		c.Direction = domain.Direction(direction)
		cw.Clues = append(cw.Clues, c)
	}
	return cw, rows.Err()
}

// ErrItemOwnedByOtherQuiz is returned by SaveQuiz when a question or clue id is
// already stored under a different quiz.
var ErrItemOwnedByOtherQuiz = errors.New("item belongs to another quiz")

// SaveQuiz upserts a quiz together with its questions or crossword. Items are
// upserted by id and never deleted, so recorded submissions keep their keys.
// An item id never moves between quizzes.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO quizzes (id, title, description, quiz_type, is_published, start_time, end_time,
			time_limit_seconds, max_attempts, total_points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description, quiz_type = EXCLUDED.quiz_type,
			is_published = EXCLUDED.is_published, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
			time_limit_seconds = EXCLUDED.time_limit_seconds, max_attempts = EXCLUDED.max_attempts,
			total_points = EXCLUDED.total_points, updated_at = now()`,
		quiz.ID, quiz.Title, quiz.Description, string(quiz.Type), quiz.Published, quiz.StartTime, quiz.EndTime,
		quiz.TimeLimitSeconds, quiz.MaxAttempts, quiz.TotalPoints)
	if err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}

	for i, q := range quiz.Questions {
		order := q.Order
		if order == 0 {
			order = i + 1
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO mcq_questions (id, quiz_id, text, option_a, option_b, option_c, option_d, correct_option, points, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				text = EXCLUDED.text, option_a = EXCLUDED.option_a, option_b = EXCLUDED.option_b,
				option_c = EXCLUDED.option_c, option_d = EXCLUDED.option_d,
				correct_option = EXCLUDED.correct_option, points = EXCLUDED.points, position = EXCLUDED.position
			WHERE mcq_questions.quiz_id = EXCLUDED.quiz_id`,
			q.ID, quiz.ID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, string(q.Correct), q.Points, order)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("question %s: %w", q.ID, ErrItemOwnedByOtherQuiz)
		}
	}

	if cw := quiz.Crossword; cw != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO crosswords (quiz_id, rows_count, cols_count) VALUES ($1, $2, $3)
			ON CONFLICT (quiz_id) DO UPDATE SET rows_count = EXCLUDED.rows_count, cols_count = EXCLUDED.cols_count`, quiz.ID, cw.Rows, cw.Cols); err != nil {
			return fmt.Errorf("insert crossword: %w", err)
		}
		for _, c := range cw.Clues {
			tag, err := tx.Exec(ctx, `
				INSERT INTO crossword_clues (id, quiz_id, number, direction, row_index, col_index, answer, clue, points)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET
					number = EXCLUDED.number, direction = EXCLUDED.direction, row_index = EXCLUDED.row_index,
					col_index = EXCLUDED.col_index, answer = EXCLUDED.answer, clue = EXCLUDED.clue, points = EXCLUDED.points
				WHERE crossword_clues.quiz_id = EXCLUDED.quiz_id`,
				c.ID, quiz.ID, c.Number, string(c.Direction), c.Row, c.Col, c.Answer, c.Text, c.Points)
			if err != nil {
				return fmt.Errorf("insert clue %s: %w", c.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("clue %s: %w", c.ID, ErrItemOwnedByOtherQuiz)
			}
		}
	}
	return tx.Commit(ctx)
}
