package services

import "strings"

// Severity ranks how disruptive a failure is to the running pipeline.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ErrorInfo is the structured view of a caught failure handed to the recovery
// coordinator and the request log. It is never persisted beyond the log.
type ErrorInfo struct {
	Kind        Kind
	Severity    Severity
	Message     string
	Recoverable bool
	Suggestions []string
	Context     map[string]string
}

// Details builds an ErrorInfo for an error, deriving kind, severity, and
// next-step suggestions from the classification.
func Details(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{Kind: KindUnknown, Severity: SeverityWarning, Recoverable: true}
	}
	kind := Classify(err)
	info := ErrorInfo{
		Kind:        kind,
		Severity:    severityFor(kind),
		Message:     strings.TrimSpace(err.Error()),
		Recoverable: kind != KindValidation,
		Suggestions: suggestionsFor(kind),
	}
	return info
}

// WithContext returns a copy of the info with the key/value pair attached.
func (i ErrorInfo) WithContext(key, value string) ErrorInfo {
	ctx := make(map[string]string, len(i.Context)+1)
	for k, v := range i.Context {
		ctx[k] = v
	}
	ctx[key] = value
	i.Context = ctx
	return i
}

func severityFor(kind Kind) Severity {
	switch kind {
	case KindValidation:
		return SeverityCritical
	case KindCredential, KindQuota, KindFile:
		return SeverityError
	default:
		return SeverityWarning
	}
}

func suggestionsFor(kind Kind) []string {
	switch kind {
	case KindCredential:
		return []string{"verify the credential is valid", "rotate to another credential"}
	case KindQuota:
		return []string{
			"wait for the quota window to reset",
			"rotate to another credential",
			"halve translation.batch_size to spend fewer tokens per request",
		}
	case KindNetwork:
		return []string{"check network connectivity", "retry after a short delay"}
	case KindFile:
		return []string{"check the working directory exists and is writable"}
	case KindValidation:
		return []string{"fix the input and rerun; this failure will not be retried"}
	case KindTimeout:
		return []string{"retry with a longer timeout"}
	default:
		return nil
	}
}
