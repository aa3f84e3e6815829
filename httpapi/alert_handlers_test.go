package httpapi_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/alert"
	"github.com/flowenginer/meta-hub/httpapi"
)

type fakeAlertHandlerRepo struct {
	alert.Repository
	history map[string]alert.History
}

func (f *fakeAlertHandlerRepo) GetHistory(ctx context.Context, tenantID, id string) (alert.History, error) {
	h, ok := f.history[id]
	if !ok {
		return alert.History{}, alert.ErrNotFound
	}
	return h, nil
}

func (f *fakeAlertHandlerRepo) UpdateHistoryStatus(ctx context.Context, id string, status alert.HistoryStatus, fields alert.HistoryUpdate) error {
	h := f.history[id]
	h.Status = status
	f.history[id] = h
	return nil
}

func newAlertService(history map[string]alert.History) *alert.Service {
	return alert.NewService(&fakeAlertHandlerRepo{history: history}, nil, nil, nil, nil, nil, zap.NewNop())
}

func TestHandleAlertAcknowledge_Success(t *testing.T) {
	svc := newAlertService(map[string]alert.History{"h1": {ID: "h1", Status: alert.HistoryTriggered}})

	req := httptest.NewRequest(http.MethodPost, "/alerts/acknowledge", bytes.NewBufferString(`{"alert_id":"h1"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleAlertAcknowledge(svc)(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleAlertAcknowledge_RejectsMissingAlertID(t *testing.T) {
	svc := newAlertService(nil)

	req := httptest.NewRequest(http.MethodPost, "/alerts/acknowledge", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	httpapi.HandleAlertAcknowledge(svc)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAlertAcknowledge_UnknownAlertIs404(t *testing.T) {
	svc := newAlertService(map[string]alert.History{})

	req := httptest.NewRequest(http.MethodPost, "/alerts/acknowledge", bytes.NewBufferString(`{"alert_id":"missing"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleAlertAcknowledge(svc)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAlertAcknowledge_AlreadyResolvedIsConflict(t *testing.T) {
	svc := newAlertService(map[string]alert.History{"h1": {ID: "h1", Status: alert.HistoryResolved}})

	req := httptest.NewRequest(http.MethodPost, "/alerts/acknowledge", bytes.NewBufferString(`{"alert_id":"h1"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleAlertAcknowledge(svc)(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleAlertResolve_Success(t *testing.T) {
	svc := newAlertService(map[string]alert.History{"h1": {ID: "h1", Status: alert.HistoryAcknowledged}})

	req := httptest.NewRequest(http.MethodPost, "/alerts/resolve", bytes.NewBufferString(`{"alert_id":"h1"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleAlertResolve(svc)(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
