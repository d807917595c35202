package health

import (
	"sync"
	"time"
)

// Status is the outcome of a backend check
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// worse returns whichever of s and other is further from healthy
func (s Status) worse(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Kind separates checks answered on /healthz from those on /readyz. A
// process can be live while its store is unreachable.
type Kind int

const (
	KindLiveness Kind = iota
	KindReadiness
)

// Check is the result of one named check
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ms"`
}

// CheckFunc runs a single check. It must be safe to call from the HTTP
// server's goroutines.
type CheckFunc func() Check

// HealthChecker holds the checks registered for one backend
type HealthChecker struct {
	mu      sync.RWMutex
	backend string
	started time.Time
	checks  map[Kind]map[string]CheckFunc
}

// Response is the JSON body of /healthz and /readyz
type Response struct {
	Backend   string           `json:"backend,omitempty"`
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    time.Duration    `json:"uptime_seconds"`
}
