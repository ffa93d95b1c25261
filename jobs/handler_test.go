package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	overdue int
	expiry  int
	err     error
}

func (s *stubEnqueuer) EnqueueInvoiceOverdueScan(ctx context.Context, payload ScanPayload) (*asynq.TaskInfo, error) {
	s.overdue++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "t-overdue", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueQuoteExpiryScan(ctx context.Context, payload ScanPayload) (*asynq.TaskInfo, error) {
	s.expiry++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "t-expiry", Queue: QueueDefault}, nil
}

func newTestRouter(client ScanEnqueuer) chi.Router {
	h := NewHandler(nil, client, slog.Default())
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func TestTriggerScansEnqueue(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestRouter(stub)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/jobs/scans/invoice-overdue", nil))
	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Equal(t, 1, stub.overdue)
	require.Contains(t, resp.Body.String(), `"task_id":"t-overdue"`)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/jobs/scans/quote-expiry", nil))
	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Equal(t, 1, stub.expiry)
	require.Contains(t, resp.Body.String(), `"queue":"default"`)
}

func TestTriggerScanEnqueueFailure(t *testing.T) {
	stub := &stubEnqueuer{err: errors.New("redis down")}
	router := newTestRouter(stub)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/jobs/scans/invoice-overdue", nil))
	require.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestTriggerScanWithoutClient(t *testing.T) {
	router := newTestRouter(nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/jobs/scans/quote-expiry", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
