// Package credential tracks the health of API credentials and selects which
// one each request should use.
//
// Every credential accumulates success and failure counts. A credential is
// skipped while its consecutive failure count is at the exclusion threshold
// or while its quota is marked exhausted with a reset time still in the
// future. A single success clears the failure streak.
package credential

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ExclusionThreshold is the consecutive failure count at which a credential
// stops being offered.
const ExclusionThreshold = 5

// ErrNoneAvailable is returned when every credential is excluded.
var ErrNoneAvailable = errors.New("no healthy credential available")

// Health is a point-in-time snapshot of one credential's counters.
type Health struct {
	Label               string     `json:"label"`
	Successes           int        `json:"successes"`
	Failures            int        `json:"failures"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	QuotaExhausted      bool       `json:"quota_exhausted"`
	QuotaResetAt        *time.Time `json:"quota_reset_at,omitempty"`
	LastUsed            *time.Time `json:"last_used,omitempty"`
}

type entry struct {
	secret string
	health Health
}

// Registry holds the credential pool. All methods are safe for concurrent
// use.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	cursor  int
	now     func() time.Time
}

// NewRegistry builds a registry from raw secrets. Labels expose only a
// positional identifier so secrets never reach logs or reports.
func NewRegistry(secrets []string) (*Registry, error) {
	if len(secrets) == 0 {
		return nil, errors.New("credential registry: at least one credential required")
	}
	reg := &Registry{now: time.Now}
	for i, secret := range secrets {
		if secret == "" {
			return nil, fmt.Errorf("credential registry: credential %d is empty", i+1)
		}
		reg.entries = append(reg.entries, &entry{
			secret: secret,
			health: Health{Label: fmt.Sprintf("credential_%d", i+1)},
		})
	}
	return reg, nil
}

// WithClock overrides the time source (for testing).
func (r *Registry) WithClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Acquire returns the next usable credential in round-robin order. The label
// identifies the credential in later ReportSuccess/ReportFailure calls.
func (r *Registry) Acquire() (label, secret string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for offset := 0; offset < len(r.entries); offset++ {
		idx := (r.cursor + offset) % len(r.entries)
		ent := r.entries[idx]
		if !r.usable(ent) {
			continue
		}
		r.cursor = idx + 1
		used := r.now()
		ent.health.LastUsed = &used
		return ent.health.Label, ent.secret, nil
	}
	return "", "", ErrNoneAvailable
}

// Rotate excludes the labelled credential from the current position and
// acquires the next usable one. It is the rotation primitive the recovery
// coordinator calls on a credential error.
func (r *Registry) Rotate(failedLabel string) (label, secret string, err error) {
	r.ReportFailure(failedLabel, false, nil)
	return r.Acquire()
}

// ReportSuccess records a successful request and clears the failure streak.
func (r *Registry) ReportSuccess(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ent := r.find(label); ent != nil {
		ent.health.Successes++
		ent.health.ConsecutiveFailures = 0
		ent.health.QuotaExhausted = false
		ent.health.QuotaResetAt = nil
	}
}

// ReportFailure records a failed request. quotaExhausted marks the credential
// as rate limited until resetAt (nil means unknown, the credential stays
// excluded until a success elsewhere or a later Acquire after counts allow).
func (r *Registry) ReportFailure(label string, quotaExhausted bool, resetAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent := r.find(label)
	if ent == nil {
		return
	}
	ent.health.Failures++
	ent.health.ConsecutiveFailures++
	if quotaExhausted {
		ent.health.QuotaExhausted = true
		ent.health.QuotaResetAt = resetAt
	}
}

// Snapshot returns the health of every credential for status reporting.
func (r *Registry) Snapshot() []Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Health, 0, len(r.entries))
	for _, ent := range r.entries {
		out = append(out, ent.health)
	}
	return out
}

// UsableCount reports how many credentials are currently offerable.
func (r *Registry) UsableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ent := range r.entries {
		if r.usable(ent) {
			count++
		}
	}
	return count
}

func (r *Registry) usable(ent *entry) bool {
	if ent.health.ConsecutiveFailures >= ExclusionThreshold {
		return false
	}
	if ent.health.QuotaExhausted {
		if ent.health.QuotaResetAt == nil || r.now().Before(*ent.health.QuotaResetAt) {
			return false
		}
		// Reset time has passed; the credential gets another chance.
		ent.health.QuotaExhausted = false
		ent.health.QuotaResetAt = nil
	}
	return true
}

func (r *Registry) find(label string) *entry {
	for _, ent := range r.entries {
		if ent.health.Label == label {
			return ent
		}
	}
	return nil
}
