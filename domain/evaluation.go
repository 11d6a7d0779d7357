package domain

import "math"

const (
	MinScore = 0
	MaxScore = 100
)

// EvaluationResult is the structured output of the evaluation engine.
// It is folded into the session on success and never stored on its own.
type EvaluationResult struct {
	Transcript       string         `json:"transcript"`
	Score            int            `json:"score"`
	ScoreExplanation string         `json:"score_explanation"`
	Breakdown        map[string]int `json:"breakdown"`
	Suggestions      []string       `json:"suggestions"`
}

// ClampScore rounds a provider-reported score and clamps it into [0,100].
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return MinScore
	}
	rounded := math.Round(v)
	if rounded < MinScore {
		return MinScore
	}
	if rounded > MaxScore {
		return MaxScore
	}
	return int(rounded)
}

// EvaluationRequest carries a recording to the evaluation engine.
type EvaluationRequest struct {
	Data        []byte
	MediaType   string
	Questions   []Question
	InterviewID string
	SubjectID   string
}
