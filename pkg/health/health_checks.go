package health

import (
	"context"
	"os"
	"time"
)

// PingCheck reports a remote backend healthy when ping succeeds within timeout
func PingCheck(ping func(context.Context) error, timeout time.Duration) CheckFunc {
	return func() Check {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy, Message: "Connected"}
	}
}

// DirCheck reports a local backend healthy when its data directory exists
// and is writable. A missing directory is degraded since the first session
// creates it.
func DirCheck(dir string) CheckFunc {
	return func() Check {
		check := Check{Details: map[string]any{"path": dir}}

		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			check.Status = StatusDegraded
			check.Message = "Data directory not created yet"
			return check
		case err != nil:
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			return check
		case !info.IsDir():
			check.Status = StatusUnhealthy
			check.Message = "Data path is not a directory"
			return check
		}

		tmp, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = "Data directory not writable: " + err.Error()
			return check
		}
		tmp.Close()
		os.Remove(tmp.Name())

		check.Status = StatusHealthy
		check.Message = "Writable"
		return check
	}
}

// SimpleCheck always reports healthy
func SimpleCheck() CheckFunc {
	return func() Check {
		return Check{Status: StatusHealthy}
	}
}
