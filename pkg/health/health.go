// Package health provides Kubernetes-style liveness and readiness probe
// endpoints. Checks run on demand when a probe is requested; readiness is
// additionally gated by an explicit ready flag for graceful shutdown.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// CheckFunc reports the health of one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Service aggregates liveness and readiness checks and serves probe endpoints.
type Service struct {
	mu        sync.RWMutex
	liveness  []check
	readiness []check
	ready     atomic.Bool
}

// New creates an empty Service. It starts not ready; call SetReady(true)
// once startup completes.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check for the /livez endpoint.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	s.liveness = append(s.liveness, check{name: name, timeout: timeout, fn: fn})
	s.mu.Unlock()
}

// AddReadinessCheck registers a check for the /readyz endpoint.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	s.readiness = append(s.readiness, check{name: name, timeout: timeout, fn: fn})
	s.mu.Unlock()
}

// SetReady flips the readiness gate. Flipping to false makes /readyz fail
// regardless of check results, which drains load balancer traffic before
// shutdown.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the liveness probe.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checks := s.liveness
	s.mu.RUnlock()
	s.respond(w, r, checks, true)
}

// ReadyEndpoint serves the readiness probe.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checks := s.readiness
	s.mu.RUnlock()
	s.respond(w, r, checks, s.ready.Load())
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, checks []check, gate bool) {
	results := make(map[string]string, len(checks))
	healthy := gate

	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		err := c.fn(ctx)
		cancel()
		if err != nil {
			healthy = false
			results[c.name] = err.Error()
		} else {
			results[c.name] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(probeResponse{Status: status, Checks: results})
}

// GoroutineCountCheck fails when the goroutine count exceeds max, which
// usually indicates a leak.
func GoroutineCountCheck(max int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return errors.Errorf("too many goroutines: %d > %d", n, max)
		}
		return nil
	}
}
