package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tequest-attempts/internal/config"
	"tequest-attempts/internal/domain"
	"tequest-attempts/internal/infra/postgres"
	infraredis "tequest-attempts/internal/infra/redis"
)

// seedQuiz is the YAML form of a catalog quiz.
type seedQuiz struct {
	ID               string         `yaml:"id"`
	Title            string         `yaml:"title"`
	Description      string         `yaml:"description"`
	Type             string         `yaml:"type"`
	Published        bool           `yaml:"published"`
	StartTime        *time.Time     `yaml:"start_time"`
	EndTime          *time.Time     `yaml:"end_time"`
	TimeLimitSeconds int            `yaml:"time_limit_seconds"`
	MaxAttempts      *int           `yaml:"max_attempts"`
	Questions        []seedQuestion `yaml:"questions"`
	Crossword        *seedCrossword `yaml:"crossword"`
}

type seedQuestion struct {
	ID      string `yaml:"id"`
	Text    string `yaml:"text"`
	A       string `yaml:"a"`
	B       string `yaml:"b"`
	C       string `yaml:"c"`
	D       string `yaml:"d"`
	Correct string `yaml:"correct"`
	Points  *int   `yaml:"points"`
}

type seedCrossword struct {
	Rows  int        `yaml:"rows"`
	Cols  int        `yaml:"cols"`
	Clues []seedClue `yaml:"clues"`
}

type seedClue struct {
	ID        string `yaml:"id"`
	Number    int    `yaml:"number"`
	Direction string `yaml:"direction"`
	Row       int    `yaml:"row"`
	Col       int    `yaml:"col"`
	Answer    string `yaml:"answer"`
	Clue      string `yaml:"clue"`
	Points    *int   `yaml:"points"`
}

// NewSeedCmd writes quizzes into the catalog database.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quizzes into the catalog database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := requirePostgres(cfg); err != nil {
				return err
			}

			quizzes := sortedQuizzes(sampleQuizzes())
			if file != "" {
				if quizzes, err = loadSeedFile(file); err != nil {
					return err
				}
			}

			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			catalog := postgres.NewQuizLoader(pool)
			var cache quizInvalidator
			if cfg.Redis.Addr != "" {
				client := newRedisClient(cfg)
				defer client.Close()
				cache = infraredis.NewQuizRepository(client, catalog, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
			}
			return saveQuizzes(cmd.Context(), catalog, cache, quizzes)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file with quizzes (defaults to the built-in samples)")
	return cmd
}

type quizWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

type quizInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// saveQuizzes writes each quiz to the catalog and drops its shared cache entry
// so running servers reload the new answer keys and eligibility rules. cache
// may be nil when no shared cache is configured.
func saveQuizzes(ctx context.Context, catalog quizWriter, cache quizInvalidator, quizzes []domain.Quiz) error {
	for _, quiz := range quizzes {
		if err := catalog.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed %s: %w", quiz.ID, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.ID); err != nil {
				return fmt.Errorf("invalidate cached quiz %s: %w", quiz.ID, err)
			}
		}
		log.Printf("seeded quiz %s", quiz.ID)
	}
	return nil
}

func loadSeedFile(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Quizzes []seedQuiz `yaml:"quizzes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	quizzes := make([]domain.Quiz, 0, len(doc.Quizzes))
	for _, sq := range doc.Quizzes {
		quiz, err := sq.toDomain()
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

func (sq seedQuiz) toDomain() (domain.Quiz, error) {
	if sq.ID == "" || sq.Title == "" {
		return domain.Quiz{}, fmt.Errorf("quiz needs an id and a title")
	}
	quiz := domain.Quiz{
		ID:               sq.ID,
		Title:            sq.Title,
		Description:      sq.Description,
		Type:             domain.QuizType(sq.Type),
		Published:        sq.Published,
		StartTime:        sq.StartTime,
		EndTime:          sq.EndTime,
		TimeLimitSeconds: sq.TimeLimitSeconds,
		MaxAttempts:      orDefault(sq.MaxAttempts, 1),
	}
	if quiz.StartTime != nil && quiz.EndTime != nil && quiz.EndTime.Before(*quiz.StartTime) {
		return domain.Quiz{}, fmt.Errorf("quiz %s: end_time before start_time", sq.ID)
	}

	switch quiz.Type {
	case domain.QuizTypeMCQ:
		for i, q := range sq.Questions {
			correct, ok := domain.ParseOptionTag(q.Correct)
			if !ok {
				return domain.Quiz{}, fmt.Errorf("quiz %s question %s: %w", sq.ID, q.ID, domain.ErrInvalidOption)
			}
			question := domain.Question{
				ID: q.ID, QuizID: sq.ID, Text: q.Text,
				OptionA: q.A, OptionB: q.B, OptionC: q.C, OptionD: q.D,
				Correct: correct, Points: orDefault(q.Points, 1), Order: i + 1,
			}
			quiz.TotalPoints += question.Points
			quiz.Questions = append(quiz.Questions, question)
		}
	case domain.QuizTypeCrossword:
		if sq.Crossword == nil {
			return domain.Quiz{}, fmt.Errorf("quiz %s: crossword section missing", sq.ID)
		}
		cw := &domain.Crossword{QuizID: sq.ID, Rows: sq.Crossword.Rows, Cols: sq.Crossword.Cols}
		for _, c := range sq.Crossword.Clues {
			clue := domain.Clue{
				ID: c.ID, QuizID: sq.ID, Number: c.Number, Direction: domain.Direction(c.Direction),
				Row: c.Row, Col: c.Col, Answer: c.Answer, Text: c.Clue, Points: orDefault(c.Points, 1),
			}
			quiz.TotalPoints += clue.Points
			cw.Clues = append(cw.Clues, clue)
		}
		quiz.Crossword = cw
	default:
		return domain.Quiz{}, fmt.Errorf("quiz %s: unknown type %q", sq.ID, sq.Type)
	}
	return quiz, nil
}

func orDefault(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func sortedQuizzes(m map[string]domain.Quiz) []domain.Quiz {
	out := make([]domain.Quiz, 0, len(m))
	for _, quiz := range m {
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
