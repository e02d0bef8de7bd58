package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify failures from external collaborators.
// Wrap tags errors with one of these so the recovery coordinator can pick a
// strategy without string matching at the call site.
var (
	ErrCredential = errors.New("credential error")
	ErrQuota      = errors.New("quota exceeded")
	ErrNetwork    = errors.New("network error")
	ErrFile       = errors.New("file error")
	ErrValidation = errors.New("validation error")
	ErrProcessing = errors.New("processing error")
	ErrTimeout    = errors.New("timeout error")
)

// Kind identifies the failure category of a classified error.
type Kind string

const (
	KindCredential Kind = "credential_error"
	KindQuota      Kind = "quota_exceeded"
	KindNetwork    Kind = "network_error"
	KindFile       Kind = "file_error"
	KindValidation Kind = "validation_error"
	KindProcessing Kind = "processing_error"
	KindTimeout    Kind = "timeout_error"
	KindUnknown    Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure kind. Errors tagged via Wrap resolve
// directly; untagged errors fall back to message pattern matching so failures
// surfaced by third-party code still land in the right bucket.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrQuota):
		return KindQuota
	case errors.Is(err, ErrCredential):
		return KindCredential
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrFile):
		return KindFile
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	}
	return classifyMessage(err.Error())
}

func classifyMessage(message string) Kind {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "quota", "rate limit", "too many requests", "429"):
		return KindQuota
	case containsAny(lower, "api key", "unauthorized", "forbidden", "invalid credential", "401", "403"):
		return KindCredential
	case containsAny(lower, "deadline exceeded", "timed out", "timeout"):
		return KindTimeout
	case containsAny(lower, "connection", "dns", "no such host", "network", "refused", "reset by peer"):
		return KindNetwork
	case containsAny(lower, "no such file", "permission denied", "not a directory", "file exists", "disk"):
		return KindFile
	case containsAny(lower, "invalid", "malformed", "must be", "required"):
		return KindValidation
	default:
		return KindUnknown
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// Recoverable reports whether the pipeline should keep trying after this
// failure. Validation failures indicate malformed input, not a transient
// condition, so they surface immediately.
func Recoverable(err error) bool {
	return Classify(err) != KindValidation
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
