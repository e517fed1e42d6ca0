package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tequest-attempts/internal/app"
	"tequest-attempts/internal/domain"
	"tequest-attempts/internal/infra/memory"
)

var (
	alice = domain.User{ID: "u1", Email: "alice@example.com"}
	bob   = domain.User{ID: "u2"}
)

func TestEndToEndScoring(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)

	attempt := mustStart(t, service, alice, "mcq-1")
	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")
	mustAnswer(t, service, alice, attempt.ID, mcq("q2"), "D")

	final, err := service.FinalizeAttempt(ctx, alice, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Score != 5 || !final.IsSubmitted() || final.EndedAt == nil {
		t.Fatalf("expected submitted attempt with score 5, got %+v", final)
	}

	second := mustStart(t, service, alice, "mcq-1")
	mustAnswer(t, service, alice, second.ID, mcq("q1"), "A")
	mustAnswer(t, service, alice, second.ID, mcq("q2"), "D")
	final, err = service.FinalizeAttempt(ctx, alice, second.ID)
	if err != nil {
		t.Fatalf("finalize second: %v", err)
	}
	if final.Score != 2 {
		t.Fatalf("expected only the 2 point answer to count, got %d", final.Score)
	}
}

func TestFinalizeWithoutAnswersScoresZero(t *testing.T) {
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "mcq-1")

	final, err := service.FinalizeAttempt(context.Background(), alice, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Score != 0 {
		t.Fatalf("expected score 0, got %d", final.Score)
	}
	lb, err := service.Leaderboard(context.Background(), "mcq-1", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].BestScore != 0 || lb.Entries[0].AttemptsCount != 1 {
		t.Fatalf("expected a zero entry, got %+v", lb.Entries)
	}
}

func TestFinalizeIsNotReinvocable(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t, 0)

	attempt := mustStart(t, service, alice, "mcq-1")
	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")
	if _, err := service.FinalizeAttempt(ctx, alice, attempt.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if _, err := service.FinalizeAttempt(ctx, alice, attempt.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second finalize, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, alice, attempt.ID, mcq("q2"), "D"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for answer after finalize, got %v", err)
	}

	stored, err := store.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if stored.Score != 3 {
		t.Fatalf("score changed after finalize: %d", stored.Score)
	}
}

func TestResubmissionOverwrites(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "mcq-1")

	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")
	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")
	result := mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "C")
	if result.IsCorrect || result.PointsAwarded != 0 {
		t.Fatalf("expected latest answer to be wrong, got %+v", result)
	}

	final, err := service.FinalizeAttempt(ctx, alice, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Score != 0 {
		t.Fatalf("expected overwrite semantics, got score %d", final.Score)
	}
}

func TestCrosswordAnswersIgnoreCaseAndWhitespace(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "cw-1")

	for _, answer := range []string{" Cat ", "cat"} {
		result := mustAnswer(t, service, alice, attempt.ID, clue("c1"), answer)
		if !result.IsCorrect || result.PointsAwarded != 4 {
			t.Fatalf("answer %q: expected correct, got %+v", answer, result)
		}
	}
	mustAnswer(t, service, alice, attempt.ID, clue("c2"), "wolf")

	final, err := service.FinalizeAttempt(ctx, alice, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Score != 4 {
		t.Fatalf("expected score 4, got %d", final.Score)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "mcq-1")
	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")

	cases := []struct {
		name      string
		user      domain.User
		attemptID string
		ref       domain.ItemRef
		value     string
		want      error
	}{
		{"lowercase option", alice, attempt.ID, mcq("q1"), "a", domain.ErrInvalidInput},
		{"unknown option", alice, attempt.ID, mcq("q1"), "E", domain.ErrInvalidInput},
		{"missing question id", alice, attempt.ID, mcq(""), "A", domain.ErrInvalidInput},
		{"unknown kind", alice, attempt.ID, domain.ItemRef{Kind: "essay", ID: "q1"}, "A", domain.ErrInvalidInput},
		{"unknown question", alice, attempt.ID, mcq("q9"), "A", domain.ErrNotFound},
		{"clue of another quiz", alice, attempt.ID, clue("c1"), "cat", domain.ErrNotFound},
		{"foreign attempt", bob, attempt.ID, mcq("q1"), "A", domain.ErrNotFound},
		{"missing attempt", alice, "nope", mcq("q1"), "A", domain.ErrNotFound},
	}
	for _, tc := range cases {
		_, err := service.SubmitAnswer(ctx, tc.user, tc.attemptID, tc.ref, tc.value)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	final, err := service.FinalizeAttempt(ctx, alice, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Score != 3 {
		t.Fatalf("rejected submissions must not mutate state, got score %d", final.Score)
	}
}

func TestStartAttemptEligibility(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)

	if _, err := service.StartAttempt(ctx, alice, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, alice, "draft"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unpublished quiz to be not found, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, alice, "closed"); !errors.Is(err, domain.ErrAttemptNotAllowed) {
		t.Fatalf("expected closed window to be refused, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, alice, "upcoming"); !errors.Is(err, domain.ErrQuizInactive) {
		t.Fatalf("expected upcoming quiz to be inactive, got %v", err)
	}
}

func TestAttemptLimit(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)

	// limited allows two submitted attempts.
	for i := 0; i < 2; i++ {
		attempt := mustStart(t, service, alice, "limited")
		if _, err := service.FinalizeAttempt(ctx, alice, attempt.ID); err != nil {
			t.Fatalf("finalize %d: %v", i, err)
		}
	}
	if _, err := service.StartAttempt(ctx, alice, "limited"); !errors.Is(err, domain.ErrAttemptLimitReached) {
		t.Fatalf("expected limit reached, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, bob, "limited"); err != nil {
		t.Fatalf("limit is per user: %v", err)
	}
}

func TestInProgressAttemptsDoNotCountTowardLimit(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)

	a1 := mustStart(t, service, alice, "limited")
	a2 := mustStart(t, service, alice, "limited")
	a3 := mustStart(t, service, alice, "limited")

	for _, a := range []domain.Attempt{a1, a2} {
		if _, err := service.FinalizeAttempt(ctx, alice, a.ID); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}
	if _, err := service.FinalizeAttempt(ctx, alice, a3.ID); !errors.Is(err, domain.ErrAttemptLimitReached) {
		t.Fatalf("third concurrently started attempt must not be submitted, got %v", err)
	}
	got, err := service.GetAttempt(ctx, alice, a3.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.IsSubmitted() {
		t.Fatalf("refused finalize must leave the attempt in progress")
	}
}

func TestUnlimitedAttempts(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	for i := 0; i < 5; i++ {
		attempt := mustStart(t, service, alice, "mcq-1")
		if _, err := service.FinalizeAttempt(ctx, alice, attempt.ID); err != nil {
			t.Fatalf("finalize %d: %v", i, err)
		}
	}
	lb, _ := service.Leaderboard(ctx, "mcq-1", 10)
	if lb.Entries[0].AttemptsCount != 5 {
		t.Fatalf("expected 5 attempts counted, got %d", lb.Entries[0].AttemptsCount)
	}
}

func TestBestScoreIsMonotonic(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)

	runs := [][2]string{{"B", "D"}, {"A", "A"}, {"A", "D"}}
	wantBest := []int{5, 5, 5}
	for i, answers := range runs {
		attempt := mustStart(t, service, alice, "mcq-1")
		mustAnswer(t, service, alice, attempt.ID, mcq("q1"), answers[0])
		mustAnswer(t, service, alice, attempt.ID, mcq("q2"), answers[1])
		if _, err := service.FinalizeAttempt(ctx, alice, attempt.ID); err != nil {
			t.Fatalf("finalize: %v", err)
		}
		lb, err := service.Leaderboard(ctx, "mcq-1", 0)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		if lb.Entries[0].BestScore != wantBest[i] || lb.Entries[0].AttemptsCount != i+1 {
			t.Fatalf("run %d: got %+v", i, lb.Entries[0])
		}
	}
}

func TestConcurrentFinalizeOfDifferentAttempts(t *testing.T) {
	for round := 0; round < 20; round++ {
		ctx := context.Background()
		service, _ := newTestService(t, 0)

		low := mustStart(t, service, alice, "mcq-big")
		mustAnswer(t, service, alice, low.ID, mcq("seven"), "A")
		high := mustStart(t, service, alice, "mcq-big")
		mustAnswer(t, service, alice, high.ID, mcq("ten"), "A")

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, id := range []string{low.ID, high.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := service.FinalizeAttempt(ctx, alice, id)
				errs <- err
			}(id)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}
		}

		lb, err := service.Leaderboard(ctx, "mcq-big", 0)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		if len(lb.Entries) != 1 {
			t.Fatalf("expected one entry, got %+v", lb.Entries)
		}
		if lb.Entries[0].BestScore != 10 || lb.Entries[0].AttemptsCount != 2 {
			t.Fatalf("round %d: expected best 10 over 2 attempts, got %+v", round, lb.Entries[0])
		}
	}
}

func TestConcurrentFinalizeOfSameAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "mcq-1")
	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.FinalizeAttempt(ctx, alice, attempt.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrNotFound):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one finalize, got %d", succeeded)
	}
	lb, _ := service.Leaderboard(ctx, "mcq-1", 0)
	if lb.Entries[0].AttemptsCount != 1 || lb.Entries[0].BestScore != 3 {
		t.Fatalf("expected single scoring, got %+v", lb.Entries[0])
	}
}

func TestConcurrentAnswersForDifferentQuestions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "mcq-1")

	var wg sync.WaitGroup
	for _, pair := range [][2]string{{"q1", "B"}, {"q2", "D"}} {
		wg.Add(1)
		go func(questionID, option string) {
			defer wg.Done()
			if _, err := service.SubmitAnswer(ctx, alice, attempt.ID, mcq(questionID), option); err != nil {
				t.Errorf("submit %s: %v", questionID, err)
			}
		}(pair[0], pair[1])
	}
	wg.Wait()

	final, err := service.FinalizeAttempt(ctx, alice, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Score != 5 {
		t.Fatalf("expected both answers kept, got %d", final.Score)
	}
}

func TestLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	events := &recordingPublisher{}
	service := newServiceWithPublisher(t, events)

	attempt := mustStart(t, service, alice, "mcq-1")
	mustAnswer(t, service, alice, attempt.ID, mcq("q1"), "B")
	if _, err := service.FinalizeAttempt(ctx, alice, attempt.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	_, _ = service.FinalizeAttempt(ctx, alice, attempt.ID)

	got := events.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected started and finalized events only, got %+v", got)
	}
	if got[0].Action != domain.ActionAttemptStarted || got[0].AttemptID != attempt.ID {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	finalized := got[1]
	if finalized.Action != domain.ActionAttemptFinalized || finalized.Score != 3 || finalized.UserEmail != alice.Email || finalized.QuizTitle != "Arithmetic" {
		t.Fatalf("unexpected finalize event %+v", finalized)
	}
}

func TestGetAttemptIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, 0)
	attempt := mustStart(t, service, alice, "mcq-1")

	if _, err := service.GetAttempt(ctx, bob, attempt.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	got, err := service.GetAttempt(ctx, alice, attempt.ID)
	if err != nil || got.State != domain.AttemptInProgress {
		t.Fatalf("expected in-progress attempt, got %+v %v", got, err)
	}
}

func TestListActiveQuizzes(t *testing.T) {
	service, _ := newTestService(t, 0)
	quizzes, err := service.ListActiveQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := map[string]bool{}
	for _, q := range quizzes {
		ids[q.ID] = true
	}
	if !ids["mcq-1"] || !ids["cw-1"] || ids["draft"] || ids["closed"] || ids["upcoming"] {
		t.Fatalf("unexpected active set %v", ids)
	}
}

func TestLeaderboardUnknownQuiz(t *testing.T) {
	service, _ := newTestService(t, 0)
	if _, err := service.Leaderboard(context.Background(), "missing", 10); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

// helpers

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, pageSize int) (*app.AttemptService, *memory.AttemptStore) {
	t.Helper()
	store := memory.NewAttemptStore()
	return buildService(store, pageSize, nil), store
}

func newServiceWithPublisher(t *testing.T, events app.EventPublisher) *app.AttemptService {
	t.Helper()
	return buildService(memory.NewAttemptStore(), 0, events)
}

func buildService(store *memory.AttemptStore, pageSize int, events app.EventPublisher) *app.AttemptService {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(testQuizzes()), time.Minute)
	leaderboard := app.NewLeaderboardAggregator(store, pageSize)
	var tick sync.Mutex
	now := testNow
	clock := func() time.Time {
		tick.Lock()
		defer tick.Unlock()
		now = now.Add(time.Second)
		return now
	}
	return app.NewAttemptService(quizzes, store, leaderboard, events).WithClock(clock)
}

func mustStart(t *testing.T, service *app.AttemptService, user domain.User, quizID string) domain.Attempt {
	t.Helper()
	attempt, err := service.StartAttempt(context.Background(), user, quizID)
	if err != nil {
		t.Fatalf("start %s: %v", quizID, err)
	}
	return attempt
}

func mustAnswer(t *testing.T, service *app.AttemptService, user domain.User, attemptID string, ref domain.ItemRef, value string) domain.AnswerResult {
	t.Helper()
	result, err := service.SubmitAnswer(context.Background(), user, attemptID, ref, value)
	if err != nil {
		t.Fatalf("answer %s=%q: %v", ref.ID, value, err)
	}
	return result
}

func mcq(id string) domain.ItemRef  { return domain.ItemRef{Kind: domain.ItemMCQ, ID: id} }
func clue(id string) domain.ItemRef { return domain.ItemRef{Kind: domain.ItemCrossword, ID: id} }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

func testQuizzes() map[string]domain.Quiz {
	past := testNow.Add(-48 * time.Hour)
	yesterday := testNow.Add(-24 * time.Hour)
	tomorrow := testNow.Add(24 * time.Hour)

	return map[string]domain.Quiz{
		"mcq-1": {
			ID: "mcq-1", Title: "Arithmetic", Type: domain.QuizTypeMCQ, Published: true,
			Questions: []domain.Question{
				{ID: "q1", QuizID: "mcq-1", Text: "2 + 2", OptionA: "3", OptionB: "4", Correct: domain.OptionB, Points: 3},
				{ID: "q2", QuizID: "mcq-1", Text: "3 - 1", OptionA: "1", OptionB: "3", OptionC: "0", OptionD: "2", Correct: domain.OptionD, Points: 2},
			},
		},
		"mcq-big": {
			ID: "mcq-big", Title: "Bigger", Type: domain.QuizTypeMCQ, Published: true,
			Questions: []domain.Question{
				{ID: "seven", QuizID: "mcq-big", OptionA: "x", OptionB: "y", Correct: domain.OptionA, Points: 7},
				{ID: "ten", QuizID: "mcq-big", OptionA: "x", OptionB: "y", Correct: domain.OptionA, Points: 10},
			},
		},
		"cw-1": {
			ID: "cw-1", Title: "Animals", Type: domain.QuizTypeCrossword, Published: true,
			Crossword: &domain.Crossword{QuizID: "cw-1", Rows: 5, Cols: 5, Clues: []domain.Clue{
				{ID: "c1", QuizID: "cw-1", Number: 1, Direction: domain.DirectionAcross, Answer: "CAT", Points: 4},
				{ID: "c2", QuizID: "cw-1", Number: 1, Direction: domain.DirectionDown, Answer: "COW", Points: 1},
			}},
		},
		"limited":  {ID: "limited", Title: "Limited", Type: domain.QuizTypeMCQ, Published: true, MaxAttempts: 2},
		"draft":    {ID: "draft", Title: "Draft", Type: domain.QuizTypeMCQ, Published: false},
		"closed":   {ID: "closed", Title: "Closed", Type: domain.QuizTypeMCQ, Published: true, StartTime: &past, EndTime: &yesterday},
		"upcoming": {ID: "upcoming", Title: "Upcoming", Type: domain.QuizTypeMCQ, Published: true, StartTime: &tomorrow},
	}
}
