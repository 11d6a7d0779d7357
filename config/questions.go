package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"interview-evaluator/domain"
)

type questionsDocument struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestions returns the configured question set, falling back to the
// built-in set when path is empty.
func LoadQuestions(path string) ([]domain.Question, error) {
	if path == "" {
		return domain.DefaultQuestions(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	return ParseQuestions(data)
}

func ParseQuestions(data []byte) ([]domain.Question, error) {
	var doc questionsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse questions file: %w", err)
	}
	if err := domain.ValidateQuestions(doc.Questions); err != nil {
		return nil, err
	}
	return doc.Questions, nil
}
