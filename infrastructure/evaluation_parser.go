package infrastructure

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"interview-evaluator/domain"
)

//go:embed prompts/evaluation.md
var evaluationPrompt string

// buildEvaluationPrompt renders the rubric prompt for the given questions.
func buildEvaluationPrompt(questions []domain.Question) string {
	var b strings.Builder
	if len(questions) == 0 {
		b.WriteString("(questions not provided; evaluate the answers on their own merit)")
	}
	for i, q := range questions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", q.ID, strings.TrimSpace(q.Text))
	}
	return strings.ReplaceAll(evaluationPrompt, "{{QUESTIONS}}", b.String())
}

// parseEvaluation turns a provider response into an EvaluationResult. A known
// transcript (from a separate transcription step) replaces the one in the response.
// Partial results are never returned: any missing field fails the whole parse.
func parseEvaluation(raw, knownTranscript string) (*domain.EvaluationResult, error) {
	cleaned := cleanJSONResponse(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrEvaluationParse)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEvaluationParse, err)
	}

	transcript := strings.TrimSpace(knownTranscript)
	if transcript == "" {
		transcript = coerceString(data["transcript"])
	}
	if transcript == "" {
		return nil, fmt.Errorf("%w: missing transcript", domain.ErrEvaluationParse)
	}

	score, ok := data["score"]
	if !ok {
		return nil, fmt.Errorf("%w: missing score", domain.ErrEvaluationParse)
	}
	scoreValue := coerceFloat(score)
	if math.IsNaN(scoreValue) {
		return nil, fmt.Errorf("%w: score is not a number: %v", domain.ErrEvaluationParse, score)
	}

	explanation := coerceString(data["score_explanation"])
	if explanation == "" {
		return nil, fmt.Errorf("%w: missing score_explanation", domain.ErrEvaluationParse)
	}

	breakdown, err := parseBreakdown(data["breakdown"])
	if err != nil {
		return nil, err
	}

	suggestions, err := parseSuggestions(data["suggestions"])
	if err != nil {
		return nil, err
	}

	return &domain.EvaluationResult{
		Transcript:       transcript,
		Score:            domain.ClampScore(scoreValue),
		ScoreExplanation: explanation,
		Breakdown:        breakdown,
		Suggestions:      suggestions,
	}, nil
}

func parseBreakdown(v any) (map[string]int, error) {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing breakdown", domain.ErrEvaluationParse)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]int, len(raw))
	for _, k := range keys {
		name := strings.TrimSpace(k)
		if name == "" {
			continue
		}
		value := coerceFloat(raw[k])
		if math.IsNaN(value) {
			return nil, fmt.Errorf("%w: breakdown %q is not a number", domain.ErrEvaluationParse, k)
		}
		out[name] = domain.ClampScore(value)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: missing breakdown", domain.ErrEvaluationParse)
	}
	return out, nil
}

func parseSuggestions(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}, nil
		}
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: suggestions must be a list", domain.ErrEvaluationParse)
	}
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end != -1 && end > start {
		content = content[start : end+1]
	}

	return strings.TrimSpace(content)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
