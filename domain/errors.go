package domain

import (
	"errors"
	"strings"
)

// Sentinel errors. Wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrValidation indicates missing or malformed caller input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates an unknown interview id.
	ErrNotFound = errors.New("interview not found")

	// ErrInvalidState indicates the operation is not legal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid interview state")

	// ErrAlreadyExists is returned by stores when a record id is taken.
	ErrAlreadyExists = errors.New("interview already exists")

	// ErrProviderUnavailable covers network and provider-side failures. Retryable.
	ErrProviderUnavailable = errors.New("evaluation provider unavailable")

	// ErrProviderRejected is a client error from the provider (bad key, forbidden,
	// unsupported input). Repeating the request will not help.
	ErrProviderRejected = errors.New("evaluation request rejected by provider")

	// ErrPayloadTooLarge indicates the recording exceeds provider limits.
	ErrPayloadTooLarge = errors.New("recording too large")

	// ErrEvaluationParse indicates the provider response could not be parsed.
	ErrEvaluationParse = errors.New("malformed evaluation response")

	// ErrInternal is an unexpected failure.
	ErrInternal = errors.New("internal error")
)

// IsRetryable reports whether an evaluation error is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// FailureMessage turns an evaluation failure into the message shown to the end user.
func FailureMessage(err error) string {
	if err == nil {
		return "evaluation failed"
	}

	var prefix string
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		prefix = "The evaluation service is currently unavailable"
	case errors.Is(err, ErrProviderRejected):
		prefix = "The evaluation service rejected the request"
	case errors.Is(err, ErrPayloadTooLarge):
		prefix = "The recording is too large to evaluate"
	case errors.Is(err, ErrEvaluationParse):
		prefix = "The evaluation result could not be read"
	case errors.Is(err, ErrValidation):
		prefix = "The recording could not be evaluated"
	default:
		prefix = "Evaluation failed"
	}

	detail := strings.TrimSpace(err.Error())
	if detail == "" {
		return prefix
	}
	return prefix + ": " + detail
}
