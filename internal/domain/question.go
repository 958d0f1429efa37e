package domain

import (
	"fmt"
	"strings"
)

// Question models a multiple-choice question with exactly four options.
type Question struct {
	ID          string   `json:"id" yaml:"id"`
	Text        string   `json:"text" yaml:"text"`
	Options     []string `json:"options" yaml:"options"`
	AnswerIndex int      `json:"answerIndex" yaml:"answerIndex"`
}

// Validate reports why a question cannot be served, wrapping ErrValidation.
func (q Question) Validate() error {
	switch {
	case strings.TrimSpace(q.ID) == "":
		return fmt.Errorf("%w: question id is empty", ErrValidation)
	case strings.TrimSpace(q.Text) == "":
		return fmt.Errorf("%w: question %s has no text", ErrValidation, q.ID)
	case len(q.Options) != OptionCount:
		return fmt.Errorf("%w: question %s has %d options, want %d", ErrValidation, q.ID, len(q.Options), OptionCount)
	case !ValidOption(q.AnswerIndex):
		return fmt.Errorf("%w: question %s answer index %d out of range", ErrValidation, q.ID, q.AnswerIndex)
	}
	return nil
}

// ValidOption reports whether idx addresses one of the four options.
func ValidOption(idx int) bool {
	return idx >= 0 && idx < OptionCount
}

// PublicQuestion hides the answer index from clients still playing.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Public strips the answer from q.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{ID: q.ID, Text: q.Text, Options: options}
}

// FilterValid splits questions into servable ones and the validation errors of the rest.
func FilterValid(questions []Question) ([]Question, []error) {
	valid := make([]Question, 0, len(questions))
	var rejected []error
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid = append(valid, q)
	}
	return valid, rejected
}
