package app

import (
	"fmt"
	"time"

	"trivia-service/internal/domain"
)

// DefaultQuestionsPerSession is how many questions a session draws from the pool.
const DefaultQuestionsPerSession = 10

// Session is one quiz attempt. It is a pure state machine: callers serialize access per instance.
type Session struct {
	id        string
	userID    string
	createdAt time.Time
	questions []domain.Question
	position  int
	answers   map[string]int
	status    domain.SessionStatus
	result    *domain.Result
}

// NewSession draws a random permutation of pool via perm and keeps the first size distinct questions.
func NewSession(id, userID string, pool []domain.Question, size int, perm func(n int) []int, createdAt time.Time) (*Session, error) {
	if len(pool) == 0 {
		return nil, domain.ErrEmptyPool
	}
	if size <= 0 {
		size = DefaultQuestionsPerSession
	}

	seen := make(map[string]struct{}, size)
	questions := make([]domain.Question, 0, size)
	for _, idx := range perm(len(pool)) {
		if len(questions) == size {
			break
		}
		q := pool[idx]
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		questions = append(questions, cloneQuestion(q))
	}
	if len(questions) == 0 {
		return nil, domain.ErrEmptyPool
	}

	return &Session{
		id:        id,
		userID:    userID,
		createdAt: createdAt,
		questions: questions,
		answers:   make(map[string]int, len(questions)),
		status:    domain.StatusInProgress,
	}, nil
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) UserID() string               { return s.userID }
func (s *Session) Status() domain.SessionStatus { return s.status }
func (s *Session) Position() int                { return s.position }
func (s *Session) Len() int                     { return len(s.questions) }

// Current returns the question at the current position.
func (s *Session) Current() domain.Question {
	return s.questions[s.position]
}

// Answer returns the recorded option for questionID.
func (s *Session) Answer(questionID string) (int, bool) {
	idx, ok := s.answers[questionID]
	return idx, ok
}

func (s *Session) currentAnswered() bool {
	_, ok := s.answers[s.Current().ID]
	return ok
}

func (s *Session) isLast() bool {
	return s.position == len(s.questions)-1
}

// SelectOption records (or overwrites) the answer for the current question.
func (s *Session) SelectOption(idx int) error {
	if s.status == domain.StatusCompleted {
		return fmt.Errorf("%w: session is completed", domain.ErrInvalidState)
	}
	if !domain.ValidOption(idx) {
		return fmt.Errorf("%w: option %d out of range", domain.ErrValidation, idx)
	}
	s.answers[s.Current().ID] = idx
	return nil
}

// Advance moves to the next question once the current one is answered.
func (s *Session) Advance() error {
	switch {
	case s.status != domain.StatusInProgress:
		return fmt.Errorf("%w: cannot advance a session that is %s", domain.ErrInvalidState, s.status)
	case !s.currentAnswered():
		return fmt.Errorf("%w: current question has no answer", domain.ErrInvalidState)
	case s.isLast():
		return fmt.Errorf("%w: already on the last question", domain.ErrInvalidState)
	}
	s.position++
	return nil
}

// OpenSubmission moves an answered last question into AwaitingSubmission.
func (s *Session) OpenSubmission() error {
	switch {
	case s.status != domain.StatusInProgress:
		return fmt.Errorf("%w: cannot open submission on a session that is %s", domain.ErrInvalidState, s.status)
	case !s.isLast():
		return fmt.Errorf("%w: submission opens on the last question", domain.ErrInvalidState)
	case !s.currentAnswered():
		return fmt.Errorf("%w: current question has no answer", domain.ErrInvalidState)
	}
	s.status = domain.StatusAwaitingSubmission
	return nil
}

// Preview tallies the answers recorded so far without changing state.
func (s *Session) Preview() domain.Tally {
	return domain.ScoreAnswers(s.questions, s.answers)
}

// Complete scores the session and returns its result. ID and PlayedAt are left for the persister side.
func (s *Session) Complete() (domain.Result, error) {
	if s.status != domain.StatusAwaitingSubmission {
		return domain.Result{}, fmt.Errorf("%w: cannot complete a session that is %s", domain.ErrInvalidState, s.status)
	}

	tally := domain.ScoreAnswers(s.questions, s.answers)
	result := domain.Result{
		UserID:          s.userID,
		QuestionIDs:     make([]string, len(s.questions)),
		SelectedAnswers: make([]int, len(s.questions)),
		Score:           tally.Score,
		TotalQuestions:  tally.Total,
		CorrectAnswers:  tally.Correct,
		WrongAnswers:    tally.Wrong,
	}
	for i, q := range s.questions {
		result.QuestionIDs[i] = q.ID
		result.SelectedAnswers[i] = domain.Unanswered
		if idx, ok := s.answers[q.ID]; ok {
			result.SelectedAnswers[i] = idx
		}
	}

	s.status = domain.StatusCompleted
	s.result = &result
	return cloneResult(result), nil
}

// stamp fixes the persistence identity of a completed session's result. Later calls keep the first stamp.
func (s *Session) stamp(id string, playedAt time.Time) (domain.Result, bool) {
	if s.result == nil {
		return domain.Result{}, false
	}
	if s.result.ID == "" {
		s.result.ID = id
		s.result.PlayedAt = playedAt
	}
	return cloneResult(*s.result), true
}

// PendingResult returns the result of a completed session that has not been discarded yet.
func (s *Session) PendingResult() (domain.Result, bool) {
	if s.result == nil {
		return domain.Result{}, false
	}
	return cloneResult(*s.result), true
}

// SessionView is what clients see of a session; the answer key is never exposed.
type SessionView struct {
	ID         string                `json:"id"`
	Status     domain.SessionStatus  `json:"status"`
	Position   int                   `json:"position"`
	Total      int                   `json:"total"`
	Answered   int                   `json:"answered"`
	Question   domain.PublicQuestion `json:"question"`
	Selected   *int                  `json:"selected,omitempty"`
	IsLast     bool                  `json:"isLast"`
	CanAdvance bool                  `json:"canAdvance"`
	Result     *domain.Result        `json:"result,omitempty"`
}

// View renders the client-facing state.
func (s *Session) View() SessionView {
	view := SessionView{
		ID:       s.id,
		Status:   s.status,
		Position: s.position,
		Total:    len(s.questions),
		Answered: len(s.answers),
		Question: s.Current().Public(),
		IsLast:   s.isLast(),
	}
	if idx, ok := s.answers[s.Current().ID]; ok {
		selected := idx
		view.Selected = &selected
	}
	view.CanAdvance = s.status == domain.StatusInProgress && view.Selected != nil && !view.IsLast
	if s.result != nil {
		r := cloneResult(*s.result)
		view.Result = &r
	}
	return view
}

// SessionSnapshot is the serializable form of a session, used by external session stores.
type SessionSnapshot struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	CreatedAt time.Time            `json:"createdAt"`
	Questions []domain.Question    `json:"questions"`
	Position  int                  `json:"position"`
	Answers   map[string]int       `json:"answers"`
	Status    domain.SessionStatus `json:"status"`
	Result    *domain.Result       `json:"result,omitempty"`
}

// Snapshot captures the full session state.
func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:        s.id,
		UserID:    s.userID,
		CreatedAt: s.createdAt,
		Questions: make([]domain.Question, len(s.questions)),
		Position:  s.position,
		Answers:   make(map[string]int, len(s.answers)),
		Status:    s.status,
	}
	for i, q := range s.questions {
		snap.Questions[i] = cloneQuestion(q)
	}
	for k, v := range s.answers {
		snap.Answers[k] = v
	}
	if s.result != nil {
		r := cloneResult(*s.result)
		snap.Result = &r
	}
	return snap
}

// RestoreSession rebuilds a session from a snapshot, rejecting snapshots that break session invariants.
func RestoreSession(snap SessionSnapshot) (*Session, error) {
	if len(snap.Questions) == 0 {
		return nil, fmt.Errorf("%w: snapshot %s has no questions", domain.ErrValidation, snap.ID)
	}
	if snap.Position < 0 || snap.Position >= len(snap.Questions) {
		return nil, fmt.Errorf("%w: snapshot %s position %d out of range", domain.ErrValidation, snap.ID, snap.Position)
	}
	switch snap.Status {
	case domain.StatusInProgress, domain.StatusAwaitingSubmission:
	case domain.StatusCompleted:
		if snap.Result == nil {
			return nil, fmt.Errorf("%w: completed snapshot %s has no result", domain.ErrValidation, snap.ID)
		}
	default:
		return nil, fmt.Errorf("%w: snapshot %s has unknown status %q", domain.ErrValidation, snap.ID, snap.Status)
	}

	s := &Session{
		id:        snap.ID,
		userID:    snap.UserID,
		createdAt: snap.CreatedAt,
		questions: make([]domain.Question, len(snap.Questions)),
		position:  snap.Position,
		answers:   make(map[string]int, len(snap.Answers)),
		status:    snap.Status,
	}
	known := make(map[string]struct{}, len(snap.Questions))
	for i, q := range snap.Questions {
		if _, dup := known[q.ID]; dup {
			return nil, fmt.Errorf("%w: snapshot %s repeats question %s", domain.ErrValidation, snap.ID, q.ID)
		}
		known[q.ID] = struct{}{}
		s.questions[i] = cloneQuestion(q)
	}
	for qid, idx := range snap.Answers {
		if _, ok := known[qid]; !ok || !domain.ValidOption(idx) {
			return nil, fmt.Errorf("%w: snapshot %s has invalid answer for %s", domain.ErrValidation, snap.ID, qid)
		}
		s.answers[qid] = idx
	}
	if snap.Result != nil {
		r := cloneResult(*snap.Result)
		s.result = &r
	}
	return s, nil
}

func cloneQuestion(q domain.Question) domain.Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	return out
}

func cloneResult(r domain.Result) domain.Result {
	out := r
	out.QuestionIDs = append([]string(nil), r.QuestionIDs...)
	out.SelectedAnswers = append([]int(nil), r.SelectedAnswers...)
	return out
}
