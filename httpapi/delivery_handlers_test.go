package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/delivery"
	"github.com/flowenginer/meta-hub/destination"
	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/httpapi"
	"github.com/flowenginer/meta-hub/logsink"
)

type fakeDeliveryEventRepo struct {
	event.Repository
	byID map[string]event.DeliveryEvent
}

func (f *fakeDeliveryEventRepo) Get(ctx context.Context, tenantID, id string) (event.DeliveryEvent, error) {
	e, ok := f.byID[id]
	if !ok {
		return event.DeliveryEvent{}, event.ErrNotFound
	}
	return e, nil
}

func (f *fakeDeliveryEventRepo) QueryByStatus(ctx context.Context, status event.Status, readyBefore time.Time, limit int) ([]event.DeliveryEvent, error) {
	return nil, nil
}

func (f *fakeDeliveryEventRepo) Transition(ctx context.Context, id string, from, to event.Status, fields event.TransitionFields) error {
	e, ok := f.byID[id]
	if !ok || e.Status != from {
		return event.ErrConflict
	}
	e.Status = to
	if fields.MaxAttempts != nil {
		e.MaxAttempts = *fields.MaxAttempts
	}
	f.byID[id] = e
	return nil
}

type fakeDeliveryDestRepo struct {
	destination.Repository
	byID map[string]destination.Destination
}

func (f *fakeDeliveryDestRepo) Get(ctx context.Context, tenantID, id string) (destination.Destination, error) {
	d, ok := f.byID[id]
	if !ok {
		return destination.Destination{}, destination.ErrNotFound
	}
	return d, nil
}

type nopLogRepo struct{ logsink.Repository }

func (nopLogRepo) Write(ctx context.Context, entry logsink.EventLog) (logsink.EventLog, error) {
	return entry, nil
}

func TestHandleDeliveryResend_UnknownEventReturnsSuccessFalse(t *testing.T) {
	svc := delivery.NewService(
		&fakeDeliveryEventRepo{byID: map[string]event.DeliveryEvent{}},
		&fakeDeliveryDestRepo{},
		destination.NewClient(),
		nopLogRepo{},
		0, zap.NewNop(),
	)

	req := httptest.NewRequest(http.MethodPost, "/delivery/resend", bytes.NewBufferString(`{"event_id":"missing"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleDeliveryResend(svc)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body["success"].(bool))
}

func TestHandleDeliveryResend_RejectsMissingEventID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/delivery/resend", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	httpapi.HandleDeliveryResend(nil)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeliveryTest_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	destRepo := &fakeDeliveryDestRepo{byID: map[string]destination.Destination{
		"dest-1": {ID: "dest-1", URL: srv.URL, Method: destination.MethodPOST, AuthType: destination.AuthNone},
	}}
	svc := delivery.NewService(&fakeDeliveryEventRepo{byID: map[string]event.DeliveryEvent{}}, destRepo, destination.NewClient(), nopLogRepo{}, 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/delivery/test", bytes.NewBufferString(`{"destination_id":"dest-1"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleDeliveryTest(svc)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["success"].(bool))
}

func TestHandleDeliveryTest_UnknownDestinationIs404(t *testing.T) {
	destRepo := &fakeDeliveryDestRepo{byID: map[string]destination.Destination{}}
	svc := delivery.NewService(&fakeDeliveryEventRepo{byID: map[string]event.DeliveryEvent{}}, destRepo, destination.NewClient(), nopLogRepo{}, 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/delivery/test", bytes.NewBufferString(`{"destination_id":"missing"}`))
	req = req.WithContext(httpapi.WithCaller(req.Context(), httpapi.Caller{ID: "u1", TenantID: "t1"}))
	rec := httptest.NewRecorder()

	httpapi.HandleDeliveryTest(svc)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeliveryProcess_ReportsZeroCountsWhenQueueEmpty(t *testing.T) {
	svc := delivery.NewService(&fakeDeliveryEventRepo{byID: map[string]event.DeliveryEvent{}}, &fakeDeliveryDestRepo{}, destination.NewClient(), nopLogRepo{}, 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/delivery/process", nil)
	rec := httptest.NewRecorder()

	httpapi.HandleDeliveryProcess(svc)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result delivery.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Processed)
}
