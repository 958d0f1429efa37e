// Package generator requests question pools from an OpenAI-compatible chat completions endpoint.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

const systemPrompt = `You are an experienced dental educator preparing to quiz dental students.
Cover dental anatomy, oral pathology, common procedures, materials and instruments, infection control,
patient management, radiology basics and preventive dentistry. Every question has exactly four options
and one correct answer.`

// ErrNoQuestions is returned when the model reply holds no usable question.
var ErrNoQuestions = errors.New("generator returned no usable questions")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Topic   string
	Count   int
	Timeout time.Duration
}

// Client asks a chat model for a fresh question list on every call.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Topic == "" {
		cfg.Topic = "dentistry"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Questions(ctx context.Context) ([]domain.Question, error) {
	temperature := 0.7
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: c.userPrompt()},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read generator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, ErrNoQuestions
	}

	questions, err := Parse(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	c.logger.Info("generated questions", zap.Int("count", len(questions)), zap.String("model", c.cfg.Model))
	return questions, nil
}

func (c *Client) userPrompt() string {
	return fmt.Sprintf(`Generate %d multiple-choice trivia questions about %s.
Reply with a JSON array only. Each element: {"id": string, "text": string, "options": [4 strings], "answerIndex": 0-3}.`,
		c.cfg.Count, c.cfg.Topic)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
