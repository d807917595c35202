// Package server runs the HTTP endpoint docdb exposes metrics on.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/health"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
)

// DefaultShutdownTimeout bounds connection draining on shutdown
const DefaultShutdownTimeout = 5 * time.Second

// ConfigReloadFunc is a function that reloads configuration
type ConfigReloadFunc func() error

// GracefulServer wraps an HTTP server with graceful shutdown capabilities
type GracefulServer struct {
	server         *http.Server
	logger         logging.Logger
	listener       net.Listener
	ready          chan struct{}
	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	configReloadFn ConfigReloadFunc
	configMu       sync.RWMutex
}

// NewGracefulServer creates a new graceful HTTP server
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:     logger.With(logging.Component("http")),
		ready:      make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// NewMetricsServer serves the registry on /metrics and, when checker is not
// nil, health on /healthz and readiness on /readyz.
func NewMetricsServer(addr string, registry *metrics.Registry, checker *health.HealthChecker, logger logging.Logger) *GracefulServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	if checker != nil {
		mux.Handle("/healthz", checker.HTTPHandler())
		mux.Handle("/readyz", checker.ReadinessHandler())
	}
	return NewGracefulServer(addr, mux, logger)
}

// Start serves until ctx is cancelled or Shutdown is called. SIGHUP triggers
// a configuration reload while the server runs.
func (gs *GracefulServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		close(gs.ready)
		return err
	}
	stopSignals := gs.handleSignals()
	defer stopSignals()

	gs.listener = ln
	close(gs.ready)

	go func() {
		select {
		case <-ctx.Done():
			if err := gs.Shutdown(DefaultShutdownTimeout); err != nil {
				gs.logger.Warn("shutdown error", logging.Error(err))
			}
		case <-gs.shutdownCh:
		}
	}()

	gs.logger.Info("starting HTTP server", logging.String("addr", ln.Addr().String()))
	if err := gs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address once Start has begun listening, or nil if
// listening failed.
func (gs *GracefulServer) Addr() net.Addr {
	<-gs.ready
	if gs.listener == nil {
		return nil
	}
	return gs.listener.Addr()
}

// Shutdown initiates a graceful shutdown
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("initiating graceful shutdown", logging.Duration("timeout", timeout))

		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			gs.logger.Error("error during shutdown", logging.Error(shutdownErr))
		} else {
			gs.logger.Info("server shutdown complete")
		}
	})
	return err
}

// handleSignals reloads configuration on SIGHUP until the returned stop
// function is called. Termination signals belong to the owning process.
func (gs *GracefulServer) handleSignals() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigCh:
				gs.logger.Info("received SIGHUP, reloading configuration")
				if err := gs.ReloadConfig(); err != nil {
					gs.logger.Error("configuration reload error", logging.Error(err))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// SetConfigReloadFunc sets the function to call when configuration reload is triggered
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	gs.configMu.Lock()
	defer gs.configMu.Unlock()
	gs.configReloadFn = fn
}

// ReloadConfig triggers a configuration reload
func (gs *GracefulServer) ReloadConfig() error {
	gs.configMu.RLock()
	reloadFn := gs.configReloadFn
	gs.configMu.RUnlock()

	if reloadFn == nil {
		gs.logger.Debug("configuration reload requested, but no reload function configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		return err
	}

	gs.logger.Info("configuration reload complete")
	return nil
}
