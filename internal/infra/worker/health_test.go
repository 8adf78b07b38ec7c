package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"
)

func startHealthServer(t *testing.T, addr string, detail func() map[string]any) (*HealthServer, context.CancelFunc) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewHealthServer(addr, logger, detail)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
			t.Errorf("unexpected server error: %v", err)
		}
	}()

	// Wait for the listener to come up
	time.Sleep(100 * time.Millisecond)
	return server, cancel
}

func decodeHealth(t *testing.T, resp *http.Response) healthResponse {
	t.Helper()

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf("failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	var response healthResponse
	if err := json.Unmarshal(body, &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return response
}

func TestHealthServer_Liveness(t *testing.T) {
	_, cancel := startHealthServer(t, "localhost:19091", nil)
	defer cancel()

	resp, err := http.Get("http://localhost:19091/health")
	if err != nil {
		t.Fatalf("failed to call /health: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	response := decodeHealth(t, resp)
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
}

func TestHealthServer_Readiness_NotReady(t *testing.T) {
	_, cancel := startHealthServer(t, "localhost:19092", nil)
	defer cancel()

	resp, err := http.Get("http://localhost:19092/health/ready")
	if err != nil {
		t.Fatalf("failed to call /health/ready: %v", err)
	}

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", resp.StatusCode)
	}

	response := decodeHealth(t, resp)
	if response.Status != "not ready" {
		t.Errorf("expected status 'not ready', got '%s'", response.Status)
	}
}

func TestHealthServer_Readiness_Ready(t *testing.T) {
	server, cancel := startHealthServer(t, "localhost:19093", nil)
	defer cancel()

	server.SetReady(true)

	resp, err := http.Get("http://localhost:19093/health/ready")
	if err != nil {
		t.Fatalf("failed to call /health/ready: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	response := decodeHealth(t, resp)
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
}

func TestHealthServer_Readiness_Detail(t *testing.T) {
	detail := func() map[string]any {
		return map[string]any{
			"tracked_scopes": 3,
			"queue_depth":    7,
		}
	}
	server, cancel := startHealthServer(t, "localhost:19096", detail)
	defer cancel()

	server.SetReady(true)

	resp, err := http.Get("http://localhost:19096/health/ready")
	if err != nil {
		t.Fatalf("failed to call /health/ready: %v", err)
	}

	response := decodeHealth(t, resp)
	if response.Detail == nil {
		t.Fatal("expected detail payload in readiness response")
	}
	if response.Detail["tracked_scopes"] != float64(3) {
		t.Errorf("expected tracked_scopes 3, got %v", response.Detail["tracked_scopes"])
	}
	if response.Detail["queue_depth"] != float64(7) {
		t.Errorf("expected queue_depth 7, got %v", response.Detail["queue_depth"])
	}
}

func TestHealthServer_Readiness_Transition(t *testing.T) {
	server, cancel := startHealthServer(t, "localhost:19094", nil)
	defer cancel()

	resp, err := http.Get("http://localhost:19094/health/ready")
	if err != nil {
		t.Fatalf("failed to call /health/ready: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 initially, got %d", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}

	server.SetReady(true)

	resp, err = http.Get("http://localhost:19094/health/ready")
	if err != nil {
		t.Fatalf("failed to call /health/ready after SetReady: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200 after SetReady(true), got %d", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}

	server.SetReady(false)

	resp, err = http.Get("http://localhost:19094/health/ready")
	if err != nil {
		t.Fatalf("failed to call /health/ready after SetReady(false): %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 after SetReady(false), got %d", resp.StatusCode)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}

func TestHealthServer_GracefulShutdown(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewHealthServer("localhost:19095", logger, nil)

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19095/health")
	if err != nil {
		t.Fatalf("server not running: %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}

	cancel()

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			t.Errorf("expected http.ErrServerClosed, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown timeout")
	}

	if _, err = http.Get("http://localhost:19095/health"); err == nil {
		t.Error("expected connection error after shutdown, but got success")
	}
}

func TestNewHealthServer(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewHealthServer(":9091", logger, nil)

	if server.addr != ":9091" {
		t.Errorf("expected addr ':9091', got '%s'", server.addr)
	}
	if server.logger == nil {
		t.Error("expected logger to be set")
	}
	if server.isReady == nil {
		t.Fatal("expected isReady to be initialized")
	}
	if server.isReady.Load() {
		t.Error("expected isReady to be false initially")
	}
}

func TestSetReady(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewHealthServer(":9091", logger, nil)

	server.SetReady(true)
	if !server.isReady.Load() {
		t.Error("expected isReady to be true after SetReady(true)")
	}

	server.SetReady(false)
	if server.isReady.Load() {
		t.Error("expected isReady to be false after SetReady(false)")
	}
}
