package http

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *app.QuizService) {
	t.Helper()
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewStaticSource(sampleQuestions()),
		memory.NewResultStore(),
		memory.NewDirectory(),
		app.WithPermutation(func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		}),
	)
	router := NewRouter(RouterConfig{
		Service: service,
		Auth:    NewAuthenticator(testSecret, ""),
	})
	return router, service
}

func signToken(t *testing.T, userID, email string) string {
	t.Helper()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, AnswerIndex: 1},
		{ID: "q2", Text: "Capital of France?", Options: []string{"Paris", "Rome", "Lyon", "Nice"}, AnswerIndex: 0},
	}
}
