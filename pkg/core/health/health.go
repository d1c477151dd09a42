// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     health
// Description: Runtime diagnostics for backend, audio devices and storage
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Status represents the outcome of a check
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a single check
const DefaultTimeout = 5 * time.Second

// CheckResult represents the result of a check
type CheckResult struct {
	Name     string
	Status   Status
	Message  string
	Duration time.Duration
	Details  map[string]interface{}
}

// Checker is an interface for checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

type namedChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewChecker creates a named checker from a function
func NewChecker(name string, fn func(ctx context.Context) CheckResult) Checker {
	return &namedChecker{name: name, fn: fn}
}

func (c *namedChecker) Name() string {
	return c.name
}

func (c *namedChecker) Check(ctx context.Context) CheckResult {
	return c.fn(ctx)
}

// Registry runs checks concurrently and reports them in registration order
type Registry struct {
	mu       sync.RWMutex
	checkers []Checker
	service  string
	version  string
	timeout  time.Duration
}

// NewRegistry creates a new registry
func NewRegistry(service, version string) *Registry {
	return &Registry{service: service, version: version, timeout: DefaultTimeout}
}

// SetTimeout changes the per-check timeout
func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.timeout = d
	}
}

// Register adds a checker; a checker with the same name is replaced in place
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.checkers {
		if c.Name() == checker.Name() {
			r.checkers[i] = checker
			return
		}
	}
	r.checkers = append(r.checkers, checker)
}

// RegisterFunc adds a check function
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context) CheckResult) {
	r.Register(NewChecker(name, fn))
}

// Len returns the number of checkers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checkers)
}

// Check runs all checks and returns the overall status
func (r *Registry) Check(ctx context.Context) *Report {
	r.mu.RLock()
	checkers := append([]Checker(nil), r.checkers...)
	timeout := r.timeout
	r.mu.RUnlock()

	report := &Report{
		Service:   r.service,
		Version:   r.version,
		Timestamp: time.Now(),
		Checks:    make([]CheckResult, len(checkers)),
	}

	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			result := c.Check(cctx)
			result.Duration = time.Since(start)
			if result.Name == "" {
				result.Name = c.Name()
			}
			if result.Status == "" {
				result.Status = StatusUnknown
			}
			report.Checks[i] = result
		}(i, checker)
	}
	wg.Wait()

	report.Status = StatusHealthy
	for _, result := range report.Checks {
		switch result.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded, StatusUnknown:
			if report.Status != StatusUnhealthy {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// Report represents the overall health report
type Report struct {
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckResult `json:"checks"`
}

// Healthy reports whether no check failed
func (r *Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}

// String returns a string representation of the report
func (r *Report) String() string {
	return fmt.Sprintf("Service: %s, Status: %s, Checks: %d", r.Service, r.Status, len(r.Checks))
}

// Common checks

// ErrorCheck turns an error-returning probe into a checker. A nil error is
// healthy with okMessage.
func ErrorCheck(name, okMessage string, probe func(ctx context.Context) error) Checker {
	return NewChecker(name, func(ctx context.Context) CheckResult {
		if err := probe(ctx); err != nil {
			return CheckResult{Name: name, Status: StatusUnhealthy, Message: err.Error()}
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: okMessage}
	})
}

// Optional reports failures of checker as degraded instead of unhealthy
func Optional(checker Checker) Checker {
	return NewChecker(checker.Name(), func(ctx context.Context) CheckResult {
		result := checker.Check(ctx)
		if result.Status == StatusUnhealthy {
			result.Status = StatusDegraded
		}
		return result
	})
}

// TCPCheck dials address
func TCPCheck(name, address string) Checker {
	return NewChecker(name, func(ctx context.Context) CheckResult {
		result := CheckResult{
			Name:    name,
			Details: map[string]interface{}{"address": address},
		}

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			return result
		}
		conn.Close()

		result.Status = StatusHealthy
		result.Message = "reachable"
		return result
	})
}

// EndpointCheck dials the host of a ws://, wss://, http:// or https:// URL
func EndpointCheck(name, rawURL string) Checker {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return NewChecker(name, func(ctx context.Context) CheckResult {
			return CheckResult{Name: name, Status: StatusUnhealthy, Message: fmt.Sprintf("invalid URL %q", rawURL)}
		})
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https", "wss":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	return TCPCheck(name, host)
}

// HTTPCheck expects 200 OK from a GET of url
func HTTPCheck(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return NewChecker(name, func(ctx context.Context) CheckResult {
		result := CheckResult{
			Name:    name,
			Details: map[string]interface{}{"url": url},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			return result
		}
		resp, err := client.Do(req)
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			return result
		}
		resp.Body.Close()

		result.Details["status_code"] = resp.StatusCode
		if resp.StatusCode != http.StatusOK {
			result.Status = StatusUnhealthy
			result.Message = resp.Status
			return result
		}
		result.Status = StatusHealthy
		result.Message = resp.Status
		return result
	})
}
