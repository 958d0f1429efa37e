package app

import (
	"context"

	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// FallbackSource serves questions from primary and switches to fallback when primary fails or
// produces no usable question.
type FallbackSource struct {
	primary  QuestionSource
	fallback QuestionSource
	logger   *zap.Logger
}

func NewFallbackSource(primary, fallback QuestionSource, logger *zap.Logger) *FallbackSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackSource{primary: primary, fallback: fallback, logger: logger}
}

func (s *FallbackSource) Questions(ctx context.Context) ([]domain.Question, error) {
	qs, err := s.primary.Questions(ctx)
	if err == nil {
		if valid, _ := domain.FilterValid(qs); len(valid) > 0 {
			return qs, nil
		}
		s.logger.Warn("primary question source returned no valid questions, using fallback")
		return s.fallback.Questions(ctx)
	}
	if ctx.Err() != nil {
		return nil, err
	}
	s.logger.Warn("primary question source failed, using fallback", zap.Error(err))
	return s.fallback.Questions(ctx)
}
