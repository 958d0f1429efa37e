// Package questionbank ships the built-in question pool and loads pools from YAML files.
package questionbank

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"trivia-service/internal/domain"
)

//go:embed dental.yaml
var dentalYAML []byte

var (
	defaultOnce sync.Once
	defaultPool []domain.Question
	defaultErr  error
)

// Default returns a copy of the built-in dental pool.
func Default() ([]domain.Question, error) {
	defaultOnce.Do(func() {
		defaultPool, defaultErr = Parse(dentalYAML)
	})
	if defaultErr != nil {
		return nil, defaultErr
	}
	return clone(defaultPool), nil
}

// Parse decodes a YAML list of questions.
func Parse(data []byte) ([]domain.Question, error) {
	var qs []domain.Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse question pool: %w", err)
	}
	return qs, nil
}

// LoadFile reads a YAML question pool from path.
func LoadFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Source serves the built-in pool; it satisfies app.QuestionSource.
type Source struct{}

func (Source) Questions(_ context.Context) ([]domain.Question, error) {
	return Default()
}

func clone(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = q
		out[i].Options = append([]string(nil), q.Options...)
	}
	return out
}
