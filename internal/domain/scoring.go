package domain

const (
	// PointsCorrect is awarded for each correct answer.
	PointsCorrect = 100
	// PointsWrong is deducted for each wrong answer. Unanswered questions score nothing.
	PointsWrong = 10
)

// Tally is the scored outcome of a set of answers.
// Score always equals Correct*PointsCorrect - Wrong*PointsWrong.
type Tally struct {
	Score   int `json:"score"`
	Correct int `json:"correctAnswers"`
	Wrong   int `json:"wrongAnswers"`
	Total   int `json:"totalQuestions"`
}

// ScoreAnswers tallies answers (question id -> option index) against questions.
// Answers for ids outside questions are ignored.
func ScoreAnswers(questions []Question, answers map[string]int) Tally {
	t := Tally{Total: len(questions)}
	for _, q := range questions {
		selected, ok := answers[q.ID]
		if !ok {
			continue
		}
		if selected == q.AnswerIndex {
			t.Correct++
		} else {
			t.Wrong++
		}
	}
	t.Score = t.Correct*PointsCorrect - t.Wrong*PointsWrong
	return t
}
