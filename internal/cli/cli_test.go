package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "focustimer/backend/internal/errors"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := recordedRequest{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.body)
		}
		requests = append(requests, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", server}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatusPrintsRunningSession(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{"state":{"status":"running","phase":"focus","taskName":"Write report","remainingSeconds":754,"chainNumber":2}}`)

	out, err := run(t, server.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.TrimSpace(out) != "running focus 12:34 Write report (chain 2)" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatusIdle(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{"state":{"status":"idle"}}`)

	out, err := run(t, server.URL, "status")
	if err != nil || strings.TrimSpace(out) != "idle" {
		t.Fatalf("expected idle, got %q / %v", out, err)
	}
}

func TestStartSendsTaskAndDuration(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `{"state":{"status":"running","phase":"focus","remainingSeconds":900}}`)

	if _, err := run(t, server.URL, "start", "task-1", "--seconds", "900"); err != nil {
		t.Fatalf("start: %v", err)
	}
	req := (*requests)[0]
	if req.method != http.MethodPost || req.path != "/api/timer/start" {
		t.Fatalf("unexpected request %s %s", req.method, req.path)
	}
	if req.body["taskId"] != "task-1" || req.body["focusDurationSeconds"] != float64(900) {
		t.Fatalf("unexpected body %+v", req.body)
	}
}

func TestSimpleCommandsHitTheirRoutes(t *testing.T) {
	for _, simple := range simpleTimerCommands {
		t.Run(simple.use, func(t *testing.T) {
			server, requests := newTestServer(t, http.StatusOK, `{"state":{"status":"idle"}}`)
			if _, err := run(t, server.URL, simple.use); err != nil {
				t.Fatalf("%s: %v", simple.use, err)
			}
			if got := (*requests)[0].path; got != simple.path {
				t.Fatalf("expected %s, got %s", simple.path, got)
			}
		})
	}
}

func TestConfigPrintsDurations(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `{"state":{"status":"idle","durations":{"focusSeconds":1800,"breakSeconds":300,"delaySeconds":120}}}`)

	out, err := run(t, server.URL, "config", "--focus", "1800")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if (*requests)[0].method != http.MethodPut || (*requests)[0].body["focusDurationSeconds"] != float64(1800) {
		t.Fatalf("unexpected request %+v", (*requests)[0])
	}
	if strings.TrimSpace(out) != "focus 30:00, break 05:00, delay 02:00" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	server, _ := newTestServer(t, http.StatusBadRequest, `{"error":{"code":"invalid_duration","message":"negative delay duration"}}`)

	_, err := run(t, server.URL, "delay", "--seconds", "-1")
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "invalid_duration" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestTasksAddAndRemove(t *testing.T) {
	server, requests := newTestServer(t, http.StatusCreated, `{"task":{"id":"abc","text":"Write report"}}`)

	out, err := run(t, server.URL, "tasks", "add", "Write", "report", "--date", "2026-05-10")
	if err != nil {
		t.Fatalf("tasks add: %v", err)
	}
	if strings.TrimSpace(out) != "added abc" {
		t.Fatalf("unexpected output %q", out)
	}
	if body := (*requests)[0].body; body["text"] != "Write report" || body["date"] != "2026-05-10" {
		t.Fatalf("unexpected body %+v", body)
	}

	removeServer, removeRequests := newTestServer(t, http.StatusNoContent, "")
	if _, err := run(t, removeServer.URL, "tasks", "rm", "abc"); err != nil {
		t.Fatalf("tasks rm: %v", err)
	}
	if req := (*removeRequests)[0]; req.method != http.MethodDelete || req.path != "/api/tasks/abc" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := map[int]string{0: "00:00", 59: "00:59", 61: "01:01", 1500: "25:00", -3: "00:00"}
	for seconds, want := range tests {
		if got := formatRemaining(seconds); got != want {
			t.Fatalf("formatRemaining(%d) = %q, want %q", seconds, got, want)
		}
	}
}
