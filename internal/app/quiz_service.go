package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivia-service/internal/domain"
	"trivia-service/internal/metrics"
)

// ResultRecordedEvent is the routing key published after a result is stored.
const ResultRecordedEvent = "trivia.result.recorded"

// SessionRepository abstracts how in-flight sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	// Get returns domain.ErrSessionNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// QuestionSource supplies the pool sessions draw from (static file, database, generator).
type QuestionSource interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// ResultRepository is the result persister.
type ResultRepository interface {
	Save(ctx context.Context, result domain.Result) error
	All(ctx context.Context) ([]domain.Result, error)
}

// UserDirectory resolves user ids to display names (emails).
type UserDirectory interface {
	Upsert(ctx context.Context, who domain.Identity) error
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// EventPublisher emits domain events to a broker.
type EventPublisher interface {
	Publish(eventType string, payload interface{}) error
}

// QuizService contains the quiz and leaderboard use cases.
type QuizService struct {
	sessions  SessionRepository
	questions QuestionSource
	results   ResultRepository
	users     UserDirectory
	publisher EventPublisher
	feed      *ResultFeed
	logger    *zap.Logger

	questionsPerSession int
	leaderboardLimit    int
	fetchTimeout        time.Duration
	now                 func() time.Time
	perm                func(n int) []int
	newID               func() string

	locks *sessionLocks
}

// Option customises a QuizService.
type Option func(*QuizService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *QuizService) { s.logger = logger }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *QuizService) { s.publisher = p }
}

func WithFeed(feed *ResultFeed) Option {
	return func(s *QuizService) { s.feed = feed }
}

func WithQuestionsPerSession(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.questionsPerSession = n
		}
	}
}

func WithLeaderboardLimit(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.leaderboardLimit = n
		}
	}
}

// WithFetchTimeout bounds how long the result history fetch may take; zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *QuizService) { s.fetchTimeout = d }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithPermutation replaces the random permutation used for question selection.
func WithPermutation(perm func(n int) []int) Option {
	return func(s *QuizService) { s.perm = perm }
}

// WithIDGenerator replaces the uuid generator for session and result ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(sessions SessionRepository, questions QuestionSource, results ResultRepository, users UserDirectory, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:            sessions,
		questions:           questions,
		results:             results,
		users:               users,
		feed:                NewResultFeed(),
		logger:              zap.NewNop(),
		questionsPerSession: DefaultQuestionsPerSession,
		leaderboardLimit:    DefaultLeaderboardLimit,
		fetchTimeout:        10 * time.Second,
		now:                 time.Now,
		perm:                rand.Perm,
		newID:               uuid.NewString,
		locks:               newSessionLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a session for who from a fresh draw of the question pool.
func (s *QuizService) Start(ctx context.Context, who domain.Identity) (SessionView, error) {
	if who.ID == "" {
		return SessionView{}, domain.ErrUnauthenticated
	}

	pool, err := s.questions.Questions(ctx)
	if err != nil {
		return SessionView{}, fmt.Errorf("load questions: %w", err)
	}
	valid, rejected := domain.FilterValid(pool)
	if len(rejected) > 0 {
		metrics.RejectedQuestions.Add(float64(len(rejected)))
		s.logger.Warn("discarded invalid questions",
			zap.Int("rejected", len(rejected)),
			zap.Error(errors.Join(rejected...)),
		)
	}

	session, err := NewSession(s.newID(), who.ID, valid, s.questionsPerSession, s.perm, s.now())
	if err != nil {
		return SessionView{}, err
	}

	if s.users != nil {
		if err := s.users.Upsert(ctx, who); err != nil {
			s.logger.Warn("register user in directory", zap.String("user_id", who.ID), zap.Error(err))
		}
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return SessionView{}, fmt.Errorf("store session: %w", err)
	}
	metrics.SessionsStarted.Inc()
	s.logger.Info("session started",
		zap.String("session_id", session.ID()),
		zap.String("user_id", who.ID),
		zap.Int("questions", session.Len()),
	)
	return session.View(), nil
}

// Get returns the current view of a session owned by who.
func (s *QuizService) Get(ctx context.Context, who domain.Identity, sessionID string) (SessionView, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return session.View(), nil
}

// SelectOption records an answer for the current question.
func (s *QuizService) SelectOption(ctx context.Context, who domain.Identity, sessionID string, option int) (SessionView, error) {
	return s.mutate(ctx, who, sessionID, func(session *Session) error {
		return session.SelectOption(option)
	})
}

// Advance moves the session to its next question.
func (s *QuizService) Advance(ctx context.Context, who domain.Identity, sessionID string) (SessionView, error) {
	return s.mutate(ctx, who, sessionID, func(session *Session) error {
		return session.Advance()
	})
}

// OpenSubmission moves the session into AwaitingSubmission and previews its score.
func (s *QuizService) OpenSubmission(ctx context.Context, who domain.Identity, sessionID string) (SessionView, domain.Tally, error) {
	var preview domain.Tally
	view, err := s.mutate(ctx, who, sessionID, func(session *Session) error {
		if err := session.OpenSubmission(); err != nil {
			return err
		}
		preview = session.Preview()
		return nil
	})
	return view, preview, err
}

// Complete scores the session and persists its result. The score is fixed before the write: on a
// persistence failure the returned result is still valid and RetrySave writes the same record.
func (s *QuizService) Complete(ctx context.Context, who domain.Identity, sessionID string) (domain.Result, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	if _, err := session.Complete(); err != nil {
		return domain.Result{}, err
	}
	result, _ := session.stamp(s.newID(), s.now().UTC())

	// RetrySave reads the stamped result back from the store.
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error("store completed session", zap.String("session_id", sessionID), zap.Error(err))
		return domain.Result{}, fmt.Errorf("%w: store completed session: %w", domain.ErrPersistence, err)
	}
	metrics.SessionsCompleted.Inc()
	s.logger.Info("session completed",
		zap.String("session_id", sessionID),
		zap.String("user_id", result.UserID),
		zap.Int("score", result.Score),
		zap.Int("correct", result.CorrectAnswers),
		zap.Int("wrong", result.WrongAnswers),
	)
	return s.persistLocked(ctx, session)
}

// RetrySave writes the pending result of a completed session again.
func (s *QuizService) RetrySave(ctx context.Context, who domain.Identity, sessionID string) (domain.Result, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	if session.Status() != domain.StatusCompleted {
		return domain.Result{}, fmt.Errorf("%w: session %s has no result to save", domain.ErrInvalidState, sessionID)
	}
	return s.persistLocked(ctx, session)
}

func (s *QuizService) persistLocked(ctx context.Context, session *Session) (domain.Result, error) {
	result, ok := session.PendingResult()
	if !ok {
		return domain.Result{}, fmt.Errorf("%w: session %s has no result to save", domain.ErrInvalidState, session.ID())
	}

	if err := s.results.Save(ctx, result); err != nil {
		metrics.ResultWrites.WithLabelValues("failure").Inc()
		s.logger.Error("persist result",
			zap.String("session_id", session.ID()),
			zap.String("result_id", result.ID),
			zap.Error(err),
		)
		return result, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	metrics.ResultWrites.WithLabelValues("success").Inc()

	// The session is discarded once its result is stored.
	if err := s.sessions.Delete(ctx, session.ID()); err != nil {
		s.logger.Warn("discard session", zap.String("session_id", session.ID()), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ResultRecordedEvent, result); err != nil {
			s.logger.Warn("publish result event", zap.String("result_id", result.ID), zap.Error(err))
		}
	}
	s.feed.Publish(result)
	return result, nil
}

// Leaderboard builds the ranked view for viewerID (empty for anonymous viewers).
func (s *QuizService) Leaderboard(ctx context.Context, viewerID string) (domain.Leaderboard, error) {
	started := s.now()
	results, err := s.fetchResults(ctx)
	if err != nil {
		metrics.LeaderboardBuildDuration.WithLabelValues("failure").Observe(s.now().Sub(started).Seconds())
		return domain.Leaderboard{}, err
	}

	// names are looked up in one batch for the users that can appear on the board
	names := s.displayNames(ctx, rankedUserIDs(RankBest(results, s.leaderboardLimit)))
	resolve := func(userID string) (string, bool) {
		name, ok := names[userID]
		return name, ok
	}

	lb := BuildLeaderboard(results, viewerID, resolve, s.leaderboardLimit)
	lb.GeneratedAt = s.now().UTC()
	metrics.LeaderboardBuildDuration.WithLabelValues("success").Observe(s.now().Sub(started).Seconds())
	return lb, nil
}

// Stats summarises the stored results of userID.
func (s *QuizService) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	if userID == "" {
		return domain.UserStats{}, domain.ErrUnauthenticated
	}
	results, err := s.fetchResults(ctx)
	if err != nil {
		return domain.UserStats{}, err
	}
	return ComputeStats(results, userID), nil
}

// Subscribe streams newly recorded results. The caller must invoke the returned cancel function.
func (s *QuizService) Subscribe(_ context.Context) (<-chan domain.Result, func()) {
	return s.feed.Subscribe()
}

// fetchResults reads the full history. A cancelled or timed-out fetch is a failure, never a partial read.
func (s *QuizService) fetchResults(ctx context.Context) ([]domain.Result, error) {
	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	results, err := s.results.All(fetchCtx)
	if err == nil {
		err = fetchCtx.Err()
	}
	if err != nil {
		s.logger.Error("fetch results", zap.Error(err))
		return nil, fmt.Errorf("%w: fetch results: %w", domain.ErrPersistence, err)
	}
	return results, nil
}

// displayNames never fails: directory errors leave every name unresolved.
func (s *QuizService) displayNames(ctx context.Context, userIDs []string) map[string]string {
	if s.users == nil || len(userIDs) == 0 {
		return nil
	}
	names, err := s.users.DisplayNames(ctx, userIDs)
	if err != nil {
		s.logger.Warn("resolve display names", zap.Int("users", len(userIDs)), zap.Error(err))
		return nil
	}
	return names
}

func (s *QuizService) load(ctx context.Context, who domain.Identity, sessionID string) (*Session, error) {
	if who.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID() != who.ID {
		return nil, domain.ErrForbidden
	}
	return session, nil
}

func (s *QuizService) mutate(ctx context.Context, who domain.Identity, sessionID string, fn func(*Session) error) (SessionView, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := fn(session); err != nil {
		return SessionView{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return SessionView{}, fmt.Errorf("store session: %w", err)
	}
	return session.View(), nil
}
