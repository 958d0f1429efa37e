package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

var (
	alice = identity("u1", "alice@example.com")
	bob   = identity("u2", "bob@example.com")
)

func TestPlayThroughRecordsResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	view, err := env.service.Start(ctx, alice)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.Total != 2 || view.Status != domain.StatusInProgress {
		t.Fatalf("unexpected view %+v", view)
	}

	// q1 correct, q2 wrong
	mustView(t)(env.service.SelectOption(ctx, alice, view.ID, 1))
	mustView(t)(env.service.Advance(ctx, alice, view.ID))
	mustView(t)(env.service.SelectOption(ctx, alice, view.ID, 3))
	submission, preview, err := env.service.OpenSubmission(ctx, alice, view.ID)
	if err != nil {
		t.Fatalf("open submission: %v", err)
	}
	if submission.Status != domain.StatusAwaitingSubmission || preview.Score != 90 {
		t.Fatalf("unexpected submission state %+v preview %+v", submission, preview)
	}

	result, err := env.service.Complete(ctx, alice, view.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.Score != 90 || result.CorrectAnswers != 1 || result.WrongAnswers != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ID == "" || !result.PlayedAt.Equal(env.now) {
		t.Fatalf("expected stamped result, got %+v", result)
	}

	stored, _ := env.results.All(ctx)
	if len(stored) != 1 || stored[0].ID != result.ID {
		t.Fatalf("expected result persisted, got %+v", stored)
	}
	if _, err := env.service.Get(ctx, alice, view.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session discarded after save, got %v", err)
	}
	if len(env.publisher.events()) != 1 || env.publisher.events()[0] != app.ResultRecordedEvent {
		t.Fatalf("expected one recorded event, got %v", env.publisher.events())
	}
}

func TestStartRequiresIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.service.Start(context.Background(), domain.Identity{}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestStartDropsInvalidQuestions(t *testing.T) {
	pool := append(samplePool(), domain.Question{ID: "bad", Text: "Two options", Options: []string{"a", "b"}})
	env := newTestEnv(t, memory.NewStaticSource(pool))

	view, err := env.service.Start(context.Background(), alice)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Total != 2 {
		t.Fatalf("expected the 2 valid questions, got %d", view.Total)
	}

	onlyBad := newTestEnv(t, memory.NewStaticSource(pool[2:]))
	if _, err := onlyBad.service.Start(context.Background(), alice); !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestSessionsAreOwned(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	view, _ := env.service.Start(ctx, alice)

	if _, err := env.service.SelectOption(ctx, bob, view.ID, 0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.service.Get(ctx, alice, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRejectedTransitionLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	view, _ := env.service.Start(ctx, alice)

	if _, err := env.service.Advance(ctx, alice, view.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := env.service.Complete(ctx, alice, view.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	got, err := env.service.Get(ctx, alice, view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Position != 0 || got.Status != domain.StatusInProgress || got.Answered != 0 {
		t.Fatalf("session changed by rejected transitions: %+v", got)
	}
}

func TestCompleteWithFailedWriteCanBeRetried(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.results.failNext(1)

	view, _ := env.service.Start(ctx, alice)
	finishSession(t, env.service, view.ID)

	result, err := env.service.Complete(ctx, alice, view.ID)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if result.ID == "" || result.Score != 200 {
		t.Fatalf("expected the fixed result alongside the error, got %+v", result)
	}

	pending, err := env.service.Get(ctx, alice, view.ID)
	if err != nil {
		t.Fatalf("completed session should be kept for retry: %v", err)
	}
	if pending.Status != domain.StatusCompleted || pending.Result == nil || pending.Result.ID != result.ID {
		t.Fatalf("unexpected pending session %+v", pending)
	}
	if _, err := env.service.SelectOption(ctx, alice, view.ID, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("completed session accepted an answer: %v", err)
	}

	retried, err := env.service.RetrySave(ctx, alice, view.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.ID != result.ID || retried.Score != result.Score || !retried.PlayedAt.Equal(result.PlayedAt) {
		t.Fatalf("retry changed the result: %+v vs %+v", retried, result)
	}
	stored, _ := env.results.All(ctx)
	if len(stored) != 1 {
		t.Fatalf("expected exactly one stored result, got %d", len(stored))
	}
}

func TestCompleteFailsWhenCompletedSessionCannotBeStored(t *testing.T) {
	ctx := context.Background()
	sessions := &completedSaveFailer{SessionStore: memory.NewSessionStore(), fail: true}
	env := newTestEnvWithSessions(t, nil, sessions)
	env.results.failNext(1)

	view, _ := env.service.Start(ctx, alice)
	finishSession(t, env.service, view.ID)

	result, err := env.service.Complete(ctx, alice, view.ID)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if result.ID != "" {
		t.Fatalf("no result should be handed out when the session was not stored, got %+v", result)
	}
	if stored, _ := env.results.All(ctx); len(stored) != 0 {
		t.Fatalf("result written although the session was not stored: %+v", stored)
	}
	got, err := env.service.Get(ctx, alice, view.ID)
	if err != nil || got.Status != domain.StatusAwaitingSubmission {
		t.Fatalf("expected session still awaiting submission, got %+v (%v)", got, err)
	}

	// once the store recovers, a failed result write is retried with the same record
	sessions.setFail(false)
	env.now = env.now.Add(time.Minute)
	result, err = env.service.Complete(ctx, alice, view.ID)
	if !errors.Is(err, domain.ErrPersistence) || result.ID == "" {
		t.Fatalf("expected failed write with a stamped result, got %+v (%v)", result, err)
	}
	env.now = env.now.Add(time.Minute)
	retried, err := env.service.RetrySave(ctx, alice, view.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.ID != result.ID || !retried.PlayedAt.Equal(result.PlayedAt) {
		t.Fatalf("retry changed the result: %+v vs %+v", retried, result)
	}
	if stored, _ := env.results.All(ctx); len(stored) != 1 {
		t.Fatalf("expected exactly one stored result, got %d", len(stored))
	}
}

func TestRetrySaveRequiresCompletedSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	view, _ := env.service.Start(ctx, alice)
	if _, err := env.service.RetrySave(ctx, alice, view.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestLeaderboardForViewer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	playAndComplete(t, env, alice, 1, 3) // 90
	playAndComplete(t, env, bob, 1, 0)   // 200
	playAndComplete(t, env, alice, 0, 3) // -20

	lb, err := env.service.Leaderboard(ctx, alice.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.TotalResults != 3 || lb.Players != 2 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
	if lb.Entries[0].DisplayName != "bob" || lb.Entries[0].Score != 200 {
		t.Fatalf("expected bob first, got %+v", lb.Entries[0])
	}
	if lb.Entries[1].DisplayName != "You" || lb.Entries[1].Score != 90 {
		t.Fatalf("expected viewer second with 90, got %+v", lb.Entries[1])
	}
	if lb.UserRank == nil || *lb.UserRank != 2 || !lb.GeneratedAt.Equal(env.now) {
		t.Fatalf("unexpected rank/time %v %v", lb.UserRank, lb.GeneratedAt)
	}

	anon, _ := env.service.Leaderboard(ctx, "")
	if anon.UserRank != nil || anon.Entries[1].DisplayName != "alice" {
		t.Fatalf("unexpected anonymous view %+v", anon)
	}

	stats, err := env.service.Stats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.GamesPlayed != 2 || stats.BestScore != 90 || stats.TotalCorrect != 1 || stats.TotalWrong != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLeaderboardMatchesBuildLeaderboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	playAndComplete(t, env, alice, 1, 0)
	env.now = env.now.Add(time.Hour)
	playAndComplete(t, env, bob, 1, 3)
	env.now = env.now.Add(time.Hour)
	playAndComplete(t, env, alice, 2, 2)

	got, err := env.service.Leaderboard(ctx, bob.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	stored, _ := env.results.All(ctx)
	emails := map[string]string{alice.ID: *alice.Email, bob.ID: *bob.Email}
	want := app.BuildLeaderboard(stored, bob.ID, func(id string) (string, bool) {
		email, ok := emails[id]
		return email, ok
	}, app.DefaultLeaderboardLimit)

	if len(got.Entries) != len(want.Entries) || got.TotalResults != want.TotalResults || got.Players != want.Players {
		t.Fatalf("leaderboard mismatch: got %+v want %+v", got, want)
	}
	for i := range want.Entries {
		g, w := got.Entries[i], want.Entries[i]
		if g.ResultID != w.ResultID || g.Rank != w.Rank || g.DisplayName != w.DisplayName || g.IsViewer != w.IsViewer {
			t.Fatalf("entry %d: got %+v want %+v", i, g, w)
		}
	}
}

func TestLeaderboardFetchFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.results.failAll = errors.New("connection refused")

	if _, err := env.service.Leaderboard(context.Background(), alice.ID); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if _, err := env.service.Stats(context.Background(), alice.ID); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence from stats, got %v", err)
	}
}

func TestLeaderboardCancelledFetch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.service.Leaderboard(ctx, ""); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence on cancelled fetch, got %v", err)
	}
}

func TestLeaderboardDirectoryFailureUsesPlaceholders(t *testing.T) {
	ctx := context.Background()
	results := newFlakyResults()
	_ = results.Save(ctx, domain.Result{ID: "r1", UserID: "u9", Score: 10})
	service := app.NewQuizService(memory.NewSessionStore(), memory.NewStaticSource(samplePool()), results, brokenDirectory{})

	lb, err := service.Leaderboard(ctx, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb.Entries[0].DisplayName != "Unknown User" {
		t.Fatalf("expected placeholder label, got %q", lb.Entries[0].DisplayName)
	}
}

func TestSubscribeReceivesRecordedResults(t *testing.T) {
	env := newTestEnv(t, nil)
	ch, cancel := env.service.Subscribe(context.Background())
	defer cancel()

	result := playAndComplete(t, env, alice, 1, 0)

	select {
	case got := <-ch:
		if got.ID != result.ID {
			t.Fatalf("expected %s, got %s", result.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update received")
	}
}

func TestConcurrentSelectionsAreSerialized(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	view, _ := env.service.Start(ctx, alice)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			if _, err := env.service.SelectOption(ctx, alice, view.ID, option); err != nil {
				t.Errorf("select: %v", err)
			}
		}(i % domain.OptionCount)
	}
	wg.Wait()

	got, _ := env.service.Get(ctx, alice, view.ID)
	if got.Selected == nil || got.Answered != 1 {
		t.Fatalf("expected one recorded answer, got %+v", got)
	}
}

func TestFallbackSource(t *testing.T) {
	fallback := memory.NewStaticSource(samplePool())

	src := app.NewFallbackSource(failingSource{}, fallback, nil)
	qs, err := src.Questions(context.Background())
	if err != nil || len(qs) != 2 {
		t.Fatalf("expected fallback pool, got %d questions, err %v", len(qs), err)
	}

	empty := app.NewFallbackSource(memory.NewStaticSource(nil), fallback, nil)
	if qs, _ := empty.Questions(context.Background()); len(qs) != 2 {
		t.Fatalf("expected fallback on empty primary, got %d", len(qs))
	}

	primary := memory.NewStaticSource([]domain.Question{samplePool()[0]})
	if qs, _ := app.NewFallbackSource(primary, fallback, nil).Questions(context.Background()); len(qs) != 1 {
		t.Fatalf("expected primary pool, got %d", len(qs))
	}
}

type testEnv struct {
	service   *app.QuizService
	results   *flakyResults
	publisher *recordingPublisher
	now       time.Time
}

func newTestEnv(t *testing.T, source app.QuestionSource) *testEnv {
	t.Helper()
	return newTestEnvWithSessions(t, source, memory.NewSessionStore())
}

func newTestEnvWithSessions(t *testing.T, source app.QuestionSource, sessions app.SessionRepository) *testEnv {
	t.Helper()
	if source == nil {
		source = memory.NewStaticSource(samplePool())
	}
	env := &testEnv{
		results:   newFlakyResults(),
		publisher: &recordingPublisher{},
		now:       time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}
	env.service = app.NewQuizService(
		sessions,
		source,
		env.results,
		memory.NewDirectory(),
		app.WithPublisher(env.publisher),
		app.WithClock(func() time.Time { return env.now }),
		app.WithPermutation(func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		}),
	)
	return env
}

// playAndComplete answers q1 and q2 with the given options and completes the session.
func playAndComplete(t *testing.T, env *testEnv, who domain.Identity, first, second int) domain.Result {
	t.Helper()
	ctx := context.Background()
	view, err := env.service.Start(ctx, who)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	mustView(t)(env.service.SelectOption(ctx, who, view.ID, first))
	mustView(t)(env.service.Advance(ctx, who, view.ID))
	mustView(t)(env.service.SelectOption(ctx, who, view.ID, second))
	if _, _, err := env.service.OpenSubmission(ctx, who, view.ID); err != nil {
		t.Fatalf("open submission: %v", err)
	}
	result, err := env.service.Complete(ctx, who, view.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return result
}

// finishSession answers both questions correctly and opens submission.
func finishSession(t *testing.T, service *app.QuizService, sessionID string) {
	t.Helper()
	ctx := context.Background()
	mustView(t)(service.SelectOption(ctx, alice, sessionID, 1))
	mustView(t)(service.Advance(ctx, alice, sessionID))
	mustView(t)(service.SelectOption(ctx, alice, sessionID, 0))
	if _, _, err := service.OpenSubmission(ctx, alice, sessionID); err != nil {
		t.Fatalf("open submission: %v", err)
	}
}

func mustView(t *testing.T) func(app.SessionView, error) {
	return func(_ app.SessionView, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func samplePool() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, AnswerIndex: 1},
		{ID: "q2", Text: "Capital of France?", Options: []string{"Paris", "Rome", "Lyon", "Nice"}, AnswerIndex: 0},
	}
}

func identity(id, email string) domain.Identity {
	return domain.Identity{ID: id, Email: &email}
}

type flakyResults struct {
	*memory.ResultStore
	mu       sync.Mutex
	failures int
	failAll  error
}

func newFlakyResults() *flakyResults {
	return &flakyResults{ResultStore: memory.NewResultStore()}
}

func (f *flakyResults) failNext(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *flakyResults) Save(ctx context.Context, r domain.Result) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("write timeout")
	}
	f.mu.Unlock()
	return f.ResultStore.Save(ctx, r)
}

func (f *flakyResults) All(ctx context.Context) ([]domain.Result, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	return f.ResultStore.All(ctx)
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

type brokenDirectory struct{}

func (brokenDirectory) Upsert(context.Context, domain.Identity) error { return nil }
func (brokenDirectory) DisplayNames(context.Context, []string) (map[string]string, error) {
	return nil, errors.New("directory down")
}

type failingSource struct{}

func (failingSource) Questions(context.Context) ([]domain.Question, error) {
	return nil, errors.New("generator unavailable")
}

// completedSaveFailer refuses to store completed sessions while fail is set.
type completedSaveFailer struct {
	*memory.SessionStore
	mu   sync.Mutex
	fail bool
}

func (c *completedSaveFailer) setFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

func (c *completedSaveFailer) Save(ctx context.Context, session *app.Session) error {
	c.mu.Lock()
	fail := c.fail
	c.mu.Unlock()
	if fail && session.Status() == domain.StatusCompleted {
		return errors.New("session store unavailable")
	}
	return c.SessionStore.Save(ctx, session)
}
