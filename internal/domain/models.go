package domain

import "time"

// OptionCount is the number of options every question carries.
const OptionCount = 4

// Unanswered marks a question without a recorded answer in Result.SelectedAnswers.
const Unanswered = -1

// SessionStatus is the lifecycle state of a quiz session. It only moves forward.
type SessionStatus string

const (
	StatusInProgress         SessionStatus = "in_progress"
	StatusAwaitingSubmission SessionStatus = "awaiting_submission"
	StatusCompleted          SessionStatus = "completed"
)

// Identity is the authenticated actor supplied by the identity collaborator.
type Identity struct {
	ID    string  `json:"id"`
	Email *string `json:"email,omitempty"`
}

// Result is the immutable outcome of a completed session.
// Field names match the persisted record shape.
type Result struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	UserID          string    `json:"user_id" bson:"user_id"`
	QuestionIDs     []string  `json:"question_ids" bson:"question_ids"`
	SelectedAnswers []int     `json:"selected_answers" bson:"selected_answers"`
	Score           int       `json:"score" bson:"score"`
	TotalQuestions  int       `json:"total_questions" bson:"total_questions"`
	CorrectAnswers  int       `json:"correct_answers" bson:"correct_answers"`
	WrongAnswers    int       `json:"wrong_answers" bson:"wrong_answers"`
	PlayedAt        time.Time `json:"played_at" bson:"played_at"`
}

// LeaderboardEntry is a ranked, display-ready projection of one user's best result.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	ResultID       string    `json:"resultId"`
	UserID         string    `json:"userId"`
	DisplayName    string    `json:"displayName"`
	IsViewer       bool      `json:"isViewer"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	WrongAnswers   int       `json:"wrongAnswers"`
	PlayedAt       time.Time `json:"playedAt"`
}

// Leaderboard is the ordered view returned to one viewer.
type Leaderboard struct {
	Entries      []LeaderboardEntry `json:"entries"`
	UserRank     *int               `json:"userRank,omitempty"`
	TotalResults int                `json:"totalResults"`
	Players      int                `json:"players"`
	GeneratedAt  time.Time          `json:"generatedAt"`
}

// UserStats summarises every stored result of one user.
type UserStats struct {
	UserID        string  `json:"userId"`
	GamesPlayed   int     `json:"gamesPlayed"`
	BestScore     int     `json:"bestScore"`
	AverageScore  float64 `json:"averageScore"`
	TotalCorrect  int     `json:"totalCorrect"`
	TotalWrong    int     `json:"totalWrong"`
	TotalAnswered int     `json:"totalAnswered"`
}
