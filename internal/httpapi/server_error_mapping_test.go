package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"inferd/internal/orchestrator"
	"inferd/internal/task"
	"inferd/pkg/types"
)

func TestQuery_BackendUnavailableMaps503WithAttempts(t *testing.T) {
	err := orchestrator.ErrBackendUnavailable([]orchestrator.Attempt{
		{TierID: "deep-14b", Reason: "load timeout after 30s", Latency: 30 * time.Second},
		{TierID: "mid-7b", Reason: "connection refused", Latency: 5 * time.Millisecond},
		{TierID: "fast-3b", Reason: "connection refused", Latency: 4 * time.Millisecond},
	})
	svc := &mockService{queryErr: err}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/query", `{"query":"hi","complexity":0.9}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body types.ErrorResponse
	if jerr := json.Unmarshal(w.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("json: %v", jerr)
	}
	if len(body.Attempts) != 3 {
		t.Fatalf("attempts=%d", len(body.Attempts))
	}
	if body.Attempts[0].TierID != "deep-14b" || body.Attempts[0].Reason == "" {
		t.Fatalf("unexpected attempt: %+v", body.Attempts[0])
	}
}

func TestQuery_TierNotFoundMaps404(t *testing.T) {
	svc := &mockService{queryErr: orchestrator.ErrTierNotFound("ghost-tier")}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/query", `{"query":"hi","complexity":0.1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTask_NotFoundMaps404(t *testing.T) {
	svc := &mockService{taskErr: taskNotFound(t)}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/tasks/ghost/interrupt", ``)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTask_ResumeNotPausedMaps409(t *testing.T) {
	svc := &mockService{resumeErr: task.ErrNotPaused("t-1", types.TaskCompleted)}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/tasks/t-1/resume", ``)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

// taskNotFound produces a real not-found error through the store, so the
// mapping test exercises the same error value the service returns.
func taskNotFound(t *testing.T) error {
	t.Helper()
	s, err := task.OpenStore(t.TempDir() + "/tasks.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	_, err = s.Load(context.Background(), "ghost")
	if !task.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	return err
}
