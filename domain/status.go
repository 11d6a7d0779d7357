package domain

import "encoding/json"

// StatusView is the read-only projection returned to pollers.
// Score and Breakdown are set only for done sessions, ErrorMessage only for failed ones.
type StatusView struct {
	Status       Status         `json:"status"`
	Score        *int           `json:"score,omitempty"`
	Breakdown    map[string]int `json:"breakdown,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// ProjectStatus builds the status projection keyed strictly by status.
func ProjectStatus(s *InterviewSession) StatusView {
	view := StatusView{Status: s.Status}

	switch s.Status {
	case StatusDone:
		score := 0
		if s.Score != nil {
			score = *s.Score
		}
		breakdown := copyBreakdown(s.BreakdownScores())
		if breakdown == nil {
			breakdown = map[string]int{}
		}
		view.Score = &score
		view.Breakdown = breakdown
	case StatusFailed:
		view.ErrorMessage = s.ErrorMessage
		if view.ErrorMessage == "" {
			view.ErrorMessage = "evaluation failed"
		}
	}

	return view
}

// MarshalJSON emits only the fields allowed for the view's status.
func (v StatusView) MarshalJSON() ([]byte, error) {
	out := map[string]any{"status": v.Status}

	switch v.Status {
	case StatusDone:
		score := 0
		if v.Score != nil {
			score = *v.Score
		}
		breakdown := v.Breakdown
		if breakdown == nil {
			breakdown = map[string]int{}
		}
		out["score"] = score
		out["breakdown"] = breakdown
	case StatusFailed:
		out["error_message"] = v.ErrorMessage
	}

	return json.Marshal(out)
}
