package generator

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"trivia-service/internal/domain"
)

var fencePattern = regexp.MustCompile("```[a-zA-Z]*\\n?|```")

// extractJSONArray strips markdown code fences and returns the outermost [...] span of text.
// Text without a bracketed span is returned unfenced and unchanged otherwise.
func extractJSONArray(text string) string {
	unfenced := fencePattern.ReplaceAllString(text, "")
	start := strings.Index(unfenced, "[")
	end := strings.LastIndex(unfenced, "]")
	if start != -1 && end > start {
		return unfenced[start : end+1]
	}
	return unfenced
}

// Parse extracts and sanitizes the question list from a model reply.
func Parse(reply string) ([]domain.Question, error) {
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(extractJSONArray(reply)), &records); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	return Sanitize(records), nil
}

// Sanitize keeps records that carry a string text and exactly four options, and normalizes them:
// a missing id becomes q_<n> (n counts kept records from 1), options are stringified and the
// answer index is floored and clamped into [0,3], defaulting to 0.
func Sanitize(records []json.RawMessage) []domain.Question {
	questions := make([]domain.Question, 0, len(records))
	for _, raw := range records {
		var rec map[string]interface{}
		if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
			continue
		}
		text, ok := rec["text"].(string)
		if !ok {
			continue
		}
		options, ok := rec["options"].([]interface{})
		if !ok || len(options) != domain.OptionCount {
			continue
		}

		q := domain.Question{
			ID:      stringID(rec["id"]),
			Text:    text,
			Options: make([]string, len(options)),
		}
		if q.ID == "" {
			q.ID = "q_" + strconv.Itoa(len(questions)+1)
		}
		for i, o := range options {
			q.Options[i] = stringify(o)
		}
		if n, ok := rec["answerIndex"].(float64); ok {
			q.AnswerIndex = int(math.Max(0, math.Min(domain.OptionCount-1, math.Floor(n))))
		}
		questions = append(questions, q)
	}
	return questions
}

func stringID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id != 0 {
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch o := v.(type) {
	case string:
		return o
	case float64:
		return strconv.FormatFloat(o, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(o)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(o)
		if err != nil {
			return fmt.Sprint(o)
		}
		return string(b)
	}
}
