// Package health reports whether the configured backend can serve sessions.
package health

import (
	"time"
)

// NewHealthChecker returns a checker whose responses are labelled with the
// backend type, e.g. "memory" or "postgres".
func NewHealthChecker(backend string) *HealthChecker {
	return &HealthChecker{
		backend: backend,
		started: time.Now(),
		checks: map[Kind]map[string]CheckFunc{
			KindLiveness:  {},
			KindReadiness: {},
		},
	}
}

// Register adds or replaces the check called name for kind
func (hc *HealthChecker) Register(kind Kind, name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.checks[kind] == nil {
		hc.checks[kind] = make(map[string]CheckFunc)
	}
	hc.checks[kind][name] = check
}

// RegisterCheck registers a liveness check
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.Register(KindLiveness, name, check)
}

// RegisterReadinessCheck registers a check that gates /readyz, typically a
// ping of the backend store.
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.Register(KindReadiness, name, check)
}

// Check runs the liveness checks
func (hc *HealthChecker) Check() Response {
	return hc.Run(KindLiveness)
}

// CheckReadiness runs the readiness checks
func (hc *HealthChecker) CheckReadiness() Response {
	return hc.Run(KindReadiness)
}

// Run executes every check of kind. The overall status is the worst one
// reported; no checks means healthy.
func (hc *HealthChecker) Run(kind Kind) Response {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	checks := hc.checks[kind]
	response := Response{
		Backend:   hc.backend,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(hc.started),
	}

	for name, fn := range checks {
		start := time.Now()
		check := fn()
		check.Name = name
		check.LastChecked = start
		check.Duration = time.Since(start)

		response.Checks[name] = check
		response.Status = response.Status.worse(check.Status)
	}
	return response
}
