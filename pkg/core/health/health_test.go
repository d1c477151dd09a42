package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatus_Constants(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusUnhealthy, "unhealthy"},
		{StatusDegraded, "degraded"},
		{StatusUnknown, "unknown"},
	}
	for _, tt := range tests {
		if string(tt.status) != tt.want {
			t.Errorf("status = %v, want %v", tt.status, tt.want)
		}
	}
}

func TestNewChecker(t *testing.T) {
	checker := NewChecker("test-checker", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: "test passed"}
	})

	if checker.Name() != "test-checker" {
		t.Errorf("Name() = %v, want test-checker", checker.Name())
	}
	result := checker.Check(context.Background())
	if result.Status != StatusHealthy || result.Message != "test passed" {
		t.Errorf("Check() = %+v", result)
	}
}

func TestRegistry_OrderAndOverall(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unknown counts as degraded", []Status{StatusUnknown, StatusHealthy}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"empty", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry("hatsuon", "1.0.0")
			names := []string{"a", "b", "c", "d"}
			for i, s := range tt.statuses {
				s := s
				// Later checks finish first
				delay := time.Duration(len(tt.statuses)-i) * 5 * time.Millisecond
				registry.RegisterFunc(names[i], func(ctx context.Context) CheckResult {
					time.Sleep(delay)
					return CheckResult{Status: s}
				})
			}

			report := registry.Check(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %v, want %v", report.Status, tt.want)
			}
			if report.Service != "hatsuon" || report.Version != "1.0.0" {
				t.Errorf("report = %+v", report)
			}
			if len(report.Checks) != len(tt.statuses) {
				t.Fatalf("Checks = %d, want %d", len(report.Checks), len(tt.statuses))
			}
			for i, c := range report.Checks {
				if c.Name != names[i] {
					t.Errorf("Checks[%d].Name = %v, want %v", i, c.Name, names[i])
				}
				if c.Duration <= 0 {
					t.Errorf("Checks[%d].Duration not measured", i)
				}
			}
		})
	}
}

func TestRegistry_ReplaceByName(t *testing.T) {
	registry := NewRegistry("hatsuon", "1.0.0")
	registry.RegisterFunc("db", func(ctx context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} })
	registry.RegisterFunc("db", func(ctx context.Context) CheckResult { return CheckResult{Status: StatusHealthy} })

	if registry.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", registry.Len())
	}
	if report := registry.Check(context.Background()); !report.Healthy() {
		t.Errorf("Status = %v, want healthy", report.Status)
	}
}

func TestRegistry_Timeout(t *testing.T) {
	registry := NewRegistry("hatsuon", "1.0.0")
	registry.SetTimeout(20 * time.Millisecond)
	registry.RegisterFunc("slow", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	})

	start := time.Now()
	report := registry.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", report.Status)
	}
}

func TestErrorCheckAndOptional(t *testing.T) {
	failing := ErrorCheck("mic", "ok", func(ctx context.Context) error { return errors.New("no device") })
	passing := ErrorCheck("mic", "2 devices", func(ctx context.Context) error { return nil })

	if r := failing.Check(context.Background()); r.Status != StatusUnhealthy || r.Message != "no device" {
		t.Errorf("failing = %+v", r)
	}
	if r := passing.Check(context.Background()); r.Status != StatusHealthy || r.Message != "2 devices" {
		t.Errorf("passing = %+v", r)
	}
	if r := Optional(failing).Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("Optional(failing) = %v, want degraded", r.Status)
	}
	if Optional(failing).Name() != "mic" {
		t.Error("Optional changed the name")
	}
}

func TestHTTPCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		url  string
		want Status
	}{
		{"ok", srv.URL + "/health", StatusHealthy},
		{"not found", srv.URL + "/missing", StatusUnhealthy},
		{"bad url", "://", StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := HTTPCheck("backend", tt.url, srv.Client()).Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Status = %v (%s), want %v", r.Status, r.Message, tt.want)
			}
		})
	}
}

func TestTCPAndEndpointCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()

	if r := TCPCheck("stream", addr).Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("TCPCheck(open) = %+v", r)
	}
	if r := EndpointCheck("stream", "ws://"+addr+"/api/v1/audio-stream/ws").Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("EndpointCheck(open) = %+v", r)
	}

	ln.Close()
	if r := TCPCheck("stream", addr).Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("TCPCheck(closed) = %v, want unhealthy", r.Status)
	}
	if r := EndpointCheck("stream", "not a url").Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("EndpointCheck(invalid) = %v, want unhealthy", r.Status)
	}
}
