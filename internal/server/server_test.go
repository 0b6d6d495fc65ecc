package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/pipeline"
	"github.com/rickgao/crypto-etl/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOrchestrator scripts TriggerNow results.
type fakeOrchestrator struct {
	outcome  model.RunOutcome
	err      error
	open     bool
	failures int
}

func (f *fakeOrchestrator) TriggerNow(trigger string) (model.RunOutcome, error) {
	if f.err != nil {
		return model.RunOutcome{}, f.err
	}
	out := f.outcome
	out.Trigger = trigger
	return out, nil
}

func (f *fakeOrchestrator) BreakerOpen() bool    { return f.open }
func (f *fakeOrchestrator) BreakerFailures() int { return f.failures }

// fakeStore scripts the read endpoints.
type fakeStore struct {
	rows     int64
	rowsErr  error
	snapshot []storage.Row
	snapErr  error
}

func (f *fakeStore) Name() string { return "sqlite" }

func (f *fakeStore) RowCount(ctx context.Context) (int64, error) {
	return f.rows, f.rowsErr
}

func (f *fakeStore) LatestSnapshot(ctx context.Context) ([]storage.Row, error) {
	return f.snapshot, f.snapErr
}

func serve(t *testing.T, orch Triggerer, store Store, method, path string) (int, map[string]any) {
	t.Helper()
	router := newRouter(&handler{orch: orch, store: store, logger: discardLogger()})
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
	}
	return w.Code, body
}

func successOutcome() model.RunOutcome {
	return model.RunOutcome{
		RunID:              uuid.New(),
		StartedAt:          time.Now().UTC(),
		Success:            true,
		EntriesExtracted:   3,
		RecordsTransformed: 3,
		Load: &model.LoadSummary{
			Total:    3,
			Upserted: 3,
			Elapsed:  12 * time.Millisecond,
		},
		Summary: &model.MarketSummary{
			Records:      3,
			TopGainer:    "solana",
			TopGainerPct: 5.61,
			MostVolatile: "bitcoin",
		},
		Duration: 80 * time.Millisecond,
	}
}

func TestTrigger(t *testing.T) {
	t.Run("successful run returns 200 with outcome", func(t *testing.T) {
		outcome := successOutcome()
		orch := &fakeOrchestrator{outcome: outcome}

		code, body := serve(t, orch, &fakeStore{}, http.MethodPost, "/api/v1/etl/trigger")

		if code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if body["success"] != true {
			t.Errorf("success = %v, want true", body["success"])
		}
		if body["trigger"] != model.TriggerManual {
			t.Errorf("trigger = %v, want %q", body["trigger"], model.TriggerManual)
		}
		if body["run_id"] != outcome.RunID.String() {
			t.Errorf("run_id = %v, want %q", body["run_id"], outcome.RunID.String())
		}
		load, ok := body["load"].(map[string]any)
		if !ok {
			t.Fatalf("load missing from response: %v", body)
		}
		if load["upserted"] != float64(3) {
			t.Errorf("load.upserted = %v, want 3", load["upserted"])
		}
		summary, ok := body["summary"].(map[string]any)
		if !ok {
			t.Fatalf("summary missing from response: %v", body)
		}
		if summary["top_gainer"] != "solana" {
			t.Errorf("summary.top_gainer = %v, want %q", summary["top_gainer"], "solana")
		}
		if _, present := body["error"]; present {
			t.Errorf("error should be omitted on success, got %v", body["error"])
		}
	})

	t.Run("failed run returns 500 with outcome", func(t *testing.T) {
		orch := &fakeOrchestrator{outcome: model.RunOutcome{
			RunID:     uuid.New(),
			StartedAt: time.Now().UTC(),
			Success:   false,
			Err:       "extract: fetch exhausted after 3 attempts: boom",
		}}

		code, body := serve(t, orch, &fakeStore{}, http.MethodPost, "/api/v1/etl/trigger")

		if code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", code, http.StatusInternalServerError)
		}
		if body["success"] != false {
			t.Errorf("success = %v, want false", body["success"])
		}
		if body["error"] != "extract: fetch exhausted after 3 attempts: boom" {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("run in progress returns 409", func(t *testing.T) {
		orch := &fakeOrchestrator{err: pipeline.ErrRunInProgress}

		code, body := serve(t, orch, &fakeStore{}, http.MethodPost, "/api/v1/etl/trigger")

		if code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", code, http.StatusConflict)
		}
		if body["error"] != pipeline.ErrRunInProgress.Error() {
			t.Errorf("error = %v, want %q", body["error"], pipeline.ErrRunInProgress.Error())
		}
	})

	t.Run("open breaker returns 503 with failure count", func(t *testing.T) {
		orch := &fakeOrchestrator{err: pipeline.ErrCircuitOpen, open: true, failures: 5}

		code, body := serve(t, orch, &fakeStore{}, http.MethodPost, "/api/v1/etl/trigger")

		if code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", code, http.StatusServiceUnavailable)
		}
		if body["failures"] != float64(5) {
			t.Errorf("failures = %v, want 5", body["failures"])
		}
	})

	t.Run("stopped orchestrator returns 503", func(t *testing.T) {
		orch := &fakeOrchestrator{err: pipeline.ErrStopped}

		code, _ := serve(t, orch, &fakeStore{}, http.MethodPost, "/api/v1/etl/trigger")

		if code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", code, http.StatusServiceUnavailable)
		}
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		store := &fakeStore{rows: 42}

		code, body := serve(t, &fakeOrchestrator{}, store, http.MethodGet, "/health")

		if code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if body["status"] != "healthy" {
			t.Errorf("status = %v, want %q", body["status"], "healthy")
		}
		if body["version"] == "" {
			t.Error("version should not be empty")
		}
		components := body["components"].(map[string]any)
		stor := components["storage"].(map[string]any)
		if stor["backend"] != "sqlite" {
			t.Errorf("storage.backend = %v, want %q", stor["backend"], "sqlite")
		}
		if stor["rows"] != float64(42) {
			t.Errorf("storage.rows = %v, want 42", stor["rows"])
		}
		breaker := components["breaker"].(map[string]any)
		if breaker["open"] != false {
			t.Errorf("breaker.open = %v, want false", breaker["open"])
		}
	})

	t.Run("degraded when breaker is open", func(t *testing.T) {
		orch := &fakeOrchestrator{open: true, failures: 5}

		code, body := serve(t, orch, &fakeStore{rows: 42}, http.MethodGet, "/health")

		if code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if body["status"] != "degraded" {
			t.Errorf("status = %v, want %q", body["status"], "degraded")
		}
		breaker := body["components"].(map[string]any)["breaker"].(map[string]any)
		if breaker["failures"] != float64(5) {
			t.Errorf("breaker.failures = %v, want 5", breaker["failures"])
		}
	})

	t.Run("unhealthy when storage is unreachable", func(t *testing.T) {
		store := &fakeStore{rowsErr: context.DeadlineExceeded}

		code, body := serve(t, &fakeOrchestrator{}, store, http.MethodGet, "/health")

		if code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", code, http.StatusServiceUnavailable)
		}
		if body["status"] != "unhealthy" {
			t.Errorf("status = %v, want %q", body["status"], "unhealthy")
		}
		stor := body["components"].(map[string]any)["storage"].(map[string]any)
		if stor["error"] == "" {
			t.Error("storage.error should carry the probe failure")
		}
	})
}

func TestLatest(t *testing.T) {
	t.Run("returns rows of the newest extraction", func(t *testing.T) {
		store := &fakeStore{snapshot: []storage.Row{
			{"entity_id": "bitcoin", "rank": int64(1)},
			{"entity_id": "ethereum", "rank": int64(2)},
		}}

		code, body := serve(t, &fakeOrchestrator{}, store, http.MethodGet, "/api/v1/market/latest")

		if code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if body["count"] != float64(2) {
			t.Errorf("count = %v, want 2", body["count"])
		}
		rows := body["rows"].([]any)
		first := rows[0].(map[string]any)
		if first["entity_id"] != "bitcoin" {
			t.Errorf("rows[0].entity_id = %v, want %q", first["entity_id"], "bitcoin")
		}
	})

	t.Run("query failure returns 500", func(t *testing.T) {
		store := &fakeStore{snapErr: context.DeadlineExceeded}

		code, body := serve(t, &fakeOrchestrator{}, store, http.MethodGet, "/api/v1/market/latest")

		if code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", code, http.StatusInternalServerError)
		}
		if body["error"] == "" {
			t.Error("error should be present")
		}
	})
}

func TestServerShutdown(t *testing.T) {
	s := New(0, &fakeOrchestrator{}, &fakeStore{}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
