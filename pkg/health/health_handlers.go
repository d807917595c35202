package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler serves /healthz. A degraded backend still answers 200 so the
// process is not restarted for a missing data directory.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return hc.handler(KindLiveness, func(s Status) bool { return s != StatusUnhealthy })
}

// ReadinessHandler serves /readyz. Only a fully healthy backend is ready.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return hc.handler(KindReadiness, func(s Status) bool { return s == StatusHealthy })
}

func (hc *HealthChecker) handler(kind Kind, passing func(Status) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := hc.Run(kind)

		code := http.StatusServiceUnavailable
		if passing(response.Status) {
			code = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
	}
}
