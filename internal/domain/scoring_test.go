package domain

import (
	"errors"
	"testing"
)

func TestScoreAnswersOneRightOneWrong(t *testing.T) {
	questions := []Question{
		{ID: "q1", AnswerIndex: 1},
		{ID: "q2", AnswerIndex: 0},
	}
	tally := ScoreAnswers(questions, map[string]int{"q1": 1, "q2": 2})

	if tally.Correct != 1 || tally.Wrong != 1 || tally.Score != 90 {
		t.Fatalf("expected 1 correct, 1 wrong, score 90, got %+v", tally)
	}
	if tally.Total != 2 {
		t.Fatalf("expected total 2, got %d", tally.Total)
	}
}

func TestScoreAnswersUnansweredScoresNothing(t *testing.T) {
	questions := []Question{
		{ID: "q1", AnswerIndex: 1},
		{ID: "q2", AnswerIndex: 0},
	}
	tally := ScoreAnswers(questions, map[string]int{"q1": 1})

	if tally.Correct != 1 || tally.Wrong != 0 || tally.Score != 100 {
		t.Fatalf("expected 1 correct, 0 wrong, score 100, got %+v", tally)
	}
}

func TestScoreAnswersCanGoNegative(t *testing.T) {
	questions := []Question{
		{ID: "q1", AnswerIndex: 1},
		{ID: "q2", AnswerIndex: 0},
		{ID: "q3", AnswerIndex: 3},
	}
	tally := ScoreAnswers(questions, map[string]int{"q1": 0, "q2": 1, "q3": 2, "stray": 0})

	if tally.Score != -30 || tally.Wrong != 3 {
		t.Fatalf("expected -30 with 3 wrong, got %+v", tally)
	}
}

func TestScoreAnswersConsistency(t *testing.T) {
	questions := make([]Question, 10)
	for i := range questions {
		questions[i] = Question{ID: string(rune('a' + i)), AnswerIndex: i % OptionCount}
	}
	for mask := 0; mask < 1<<10; mask += 37 {
		answers := map[string]int{}
		for i, q := range questions {
			if mask&(1<<i) == 0 {
				continue
			}
			answers[q.ID] = (i + mask) % OptionCount
		}
		tally := ScoreAnswers(questions, answers)
		if tally.Score != tally.Correct*PointsCorrect-tally.Wrong*PointsWrong {
			t.Fatalf("inconsistent tally %+v", tally)
		}
		if tally.Correct+tally.Wrong > tally.Total {
			t.Fatalf("answered more than total: %+v", tally)
		}
	}
}

func TestQuestionValidate(t *testing.T) {
	good := Question{ID: "q1", Text: "Pick one", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 3}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	cases := map[string]Question{
		"missing id":    {Text: "x", Options: []string{"a", "b", "c", "d"}},
		"missing text":  {ID: "q", Options: []string{"a", "b", "c", "d"}},
		"three options": {ID: "q", Text: "x", Options: []string{"a", "b", "c"}},
		"bad answer":    {ID: "q", Text: "x", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 4},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			if err := q.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestFilterValid(t *testing.T) {
	valid, rejected := FilterValid([]Question{
		{ID: "q1", Text: "ok", Options: []string{"a", "b", "c", "d"}},
		{ID: "q2", Text: "short", Options: []string{"a"}},
	})
	if len(valid) != 1 || valid[0].ID != "q1" {
		t.Fatalf("expected only q1 to survive, got %+v", valid)
	}
	if len(rejected) != 1 {
		t.Fatalf("expected one rejection, got %d", len(rejected))
	}
}

func TestPublicHidesAnswer(t *testing.T) {
	q := Question{ID: "q1", Text: "t", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 2}
	pub := q.Public()
	pub.Options[0] = "changed"
	if q.Options[0] != "a" {
		t.Fatalf("public copy must not alias the question options")
	}
}
