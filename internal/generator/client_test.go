package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientQuestions(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		content := "```json\n[{\"text\":\"Which tooth faces the cheek?\",\"options\":[\"Lingual\",\"Buccal\",\"Mesial\",\"Distal\"],\"answerIndex\":1}]\n```"
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "k", Model: "test-model"}, nil)
	qs, err := client.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if gotAuth != "Bearer k" || gotModel != "test-model" {
		t.Fatalf("unexpected request auth=%q model=%q", gotAuth, gotModel)
	}
	if len(qs) != 1 || qs[0].ID != "q_1" || qs[0].AnswerIndex != 1 {
		t.Fatalf("unexpected questions %+v", qs)
	}
}

func TestClientReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewClient(Config{BaseURL: srv.URL}, nil).Questions(context.Background()); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestClientEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Questions(context.Background())
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}
