package domain

import (
	"fmt"
	"strings"
)

// DefaultQuestions is the server-fixed question set used when no file is configured.
func DefaultQuestions() []Question {
	return []Question{
		{ID: 1, Text: "Tell us about yourself and your professional background.", Type: "introduction", Duration: 120},
		{ID: 2, Text: "Describe a challenging project you worked on and how you handled it.", Type: "behavioral", Duration: 180},
		{ID: 3, Text: "How do you prioritise work when several deadlines compete?", Type: "situational", Duration: 120},
		{ID: 4, Text: "Tell us about a time you disagreed with a teammate. What happened?", Type: "behavioral", Duration: 150},
		{ID: 5, Text: "Why are you interested in this role, and what would you bring to it?", Type: "motivation", Duration: 120},
	}
}

// ValidateQuestions checks a question set before it is used for new sessions.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: question set is empty", ErrValidation)
	}

	seen := make(map[int]struct{}, len(questions))
	for i, q := range questions {
		if q.ID <= 0 {
			return fmt.Errorf("%w: question %d has no id", ErrValidation, i+1)
		}
		if _, ok := seen[q.ID]; ok {
			return fmt.Errorf("%w: duplicate question id %d", ErrValidation, q.ID)
		}
		seen[q.ID] = struct{}{}

		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrValidation, q.ID)
		}
		if q.Duration <= 0 {
			return fmt.Errorf("%w: question %d must have a positive duration", ErrValidation, q.ID)
		}
	}

	return nil
}
