package ingest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/ingest"
	"github.com/flowenginer/meta-hub/internal/hmacsig"
	"github.com/flowenginer/meta-hub/logsink"
	"github.com/flowenginer/meta-hub/mapping"
	"github.com/flowenginer/meta-hub/route"
)

type fakeTenantResolver struct {
	bySource map[string]string // sourceType+"/"+sourceID -> tenantID
}

func (f *fakeTenantResolver) ResolveTenant(ctx context.Context, sourceType, sourceID string) (string, error) {
	tenantID, ok := f.bySource[sourceType+"/"+sourceID]
	if !ok {
		return "", ingest.ErrTenantNotFound
	}
	return tenantID, nil
}

type fakeRouteRepo struct {
	route.Repository
	candidates []route.Route
}

func (f *fakeRouteRepo) FindCandidates(ctx context.Context, tenantID, sourceType, sourceID string) ([]route.Route, error) {
	return f.candidates, nil
}

type fakeMappingRepo struct {
	mapping.Repository
	mappings map[string]mapping.Mapping
}

func (f *fakeMappingRepo) Get(ctx context.Context, tenantID, id string) (mapping.Mapping, error) {
	m, ok := f.mappings[id]
	if !ok {
		return mapping.Mapping{}, mapping.ErrNotFound
	}
	return m, nil
}

type fakeEventRepoIngest struct {
	event.Repository
	created []event.DeliveryEvent
}

func (f *fakeEventRepoIngest) Create(ctx context.Context, e event.DeliveryEvent) (event.DeliveryEvent, error) {
	e.ID = "ev-" + "generated"
	f.created = append(f.created, e)
	return e, nil
}

func (f *fakeEventRepoIngest) FindByIdempotencyKey(ctx context.Context, tenantID, routeID, key string) (event.DeliveryEvent, error) {
	for _, e := range f.created {
		if e.TenantID == tenantID && e.RouteID == routeID && e.IdempotencyKey == key {
			return e, nil
		}
	}
	return event.DeliveryEvent{}, event.ErrNotFound
}

type fakeDeliverer struct {
	submitted []event.DeliveryEvent
}

func (f *fakeDeliverer) Submit(ev event.DeliveryEvent) {
	f.submitted = append(f.submitted, ev)
}

type fakeLogRepoIngest struct {
	entries []logsink.EventLog
}

func (f *fakeLogRepoIngest) Write(ctx context.Context, entry logsink.EventLog) (logsink.EventLog, error) {
	f.entries = append(f.entries, entry)
	return entry, nil
}
func (f *fakeLogRepoIngest) Query(ctx context.Context, tenantID string, filter logsink.Filter) ([]logsink.EventLog, error) {
	return f.entries, nil
}

func whatsappEnvelope(phoneNumberID string) []byte {
	env := map[string]any{
		"object": "whatsapp_business_account",
		"entry": []any{
			map[string]any{
				"id": "waba-1",
				"changes": []any{
					map[string]any{
						"field": "messages",
						"value": map[string]any{
							"metadata": map[string]any{"phone_number_id": phoneNumberID},
							"messages": []any{map[string]any{"from": "15551234567", "text": map[string]any{"body": "hi"}}},
						},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(env)
	return b
}

func TestService_Receive_WhatsAppHappyPath(t *testing.T) {
	routes := &fakeRouteRepo{candidates: []route.Route{
		{ID: "route-1", TenantID: "tenant-1", SourceType: "whatsapp", DestinationID: "dest-1", IsActive: true},
	}}
	events := &fakeEventRepoIngest{}
	deliverer := &fakeDeliverer{}
	logs := &fakeLogRepoIngest{}

	svc := ingest.NewService("verify-me", "",
		route.NewResolver(routes),
		&fakeMappingRepo{},
		events,
		&fakeTenantResolver{bySource: map[string]string{"whatsapp/PN1": "tenant-1"}},
		nil, nil, deliverer, logs, nil)

	result, err := svc.Receive(t.Context(), whatsappEnvelope("PN1"))
	require.NoError(t, err)
	assert.Equal(t, "processed", result.Status)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, events.created, 1)
	assert.Equal(t, "tenant-1", events.created[0].TenantID)
	assert.Equal(t, "route-1", events.created[0].RouteID)
	require.Len(t, deliverer.submitted, 1)
}

func TestService_Receive_UnknownTenantSkipped(t *testing.T) {
	routes := &fakeRouteRepo{}
	events := &fakeEventRepoIngest{}
	svc := ingest.NewService("verify-me", "",
		route.NewResolver(routes),
		&fakeMappingRepo{},
		events,
		&fakeTenantResolver{},
		nil, nil, &fakeDeliverer{}, &fakeLogRepoIngest{}, nil)

	result, err := svc.Receive(t.Context(), whatsappEnvelope("unknown-phone"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, events.created)
}

func TestService_Receive_IgnoresMalformedEnvelope(t *testing.T) {
	svc := ingest.NewService("verify-me", "", route.NewResolver(&fakeRouteRepo{}), &fakeMappingRepo{}, &fakeEventRepoIngest{}, &fakeTenantResolver{}, nil, nil, &fakeDeliverer{}, &fakeLogRepoIngest{}, nil)

	result, err := svc.Receive(t.Context(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "ignored", result.Status)
}

func TestService_Receive_WhatsAppRepeatIsNotDeduplicated(t *testing.T) {
	routes := &fakeRouteRepo{candidates: []route.Route{
		{ID: "route-1", TenantID: "tenant-1", SourceType: "whatsapp", DestinationID: "dest-1", IsActive: true},
	}}
	events := &fakeEventRepoIngest{}
	deliverer := &fakeDeliverer{}

	svc := ingest.NewService("verify-me", "",
		route.NewResolver(routes),
		&fakeMappingRepo{},
		events,
		&fakeTenantResolver{bySource: map[string]string{"whatsapp/PN1": "tenant-1"}},
		nil, nil, deliverer, &fakeLogRepoIngest{}, nil)

	// WhatsApp changes are passed to event creation with no idempotency
	// key (only Lead Gen's leadgen_id is used as one), so a second receive
	// of the exact same body produces a second, independent event.
	_, err := svc.Receive(t.Context(), whatsappEnvelope("PN1"))
	require.NoError(t, err)
	_, err = svc.Receive(t.Context(), whatsappEnvelope("PN1"))
	require.NoError(t, err)
	assert.Len(t, events.created, 2)
}

func TestService_VerifyChallenge(t *testing.T) {
	svc := ingest.NewService("secret-token", "", nil, nil, nil, nil, nil, nil, nil, nil, nil)

	challenge, ok := svc.VerifyChallenge("subscribe", "secret-token", "echo-me")
	assert.True(t, ok)
	assert.Equal(t, "echo-me", challenge)

	_, ok = svc.VerifyChallenge("subscribe", "wrong-token", "echo-me")
	assert.False(t, ok)
}

func TestService_VerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)

	t.Run("empty app secret accepts everything", func(t *testing.T) {
		svc := ingest.NewService("verify-me", "", nil, nil, nil, nil, nil, nil, nil, nil, nil)
		assert.True(t, svc.VerifySignature(body, ""))
	})

	t.Run("valid signature", func(t *testing.T) {
		svc := ingest.NewService("verify-me", "app-secret", nil, nil, nil, nil, nil, nil, nil, nil, nil)
		digest := hmacsig.HexDigest([]byte("app-secret"), body)
		assert.True(t, svc.VerifySignature(body, "sha256="+digest))
	})

	t.Run("wrong digest rejected", func(t *testing.T) {
		svc := ingest.NewService("verify-me", "app-secret", nil, nil, nil, nil, nil, nil, nil, nil, nil)
		assert.False(t, svc.VerifySignature(body, "sha256=deadbeef"))
	})

	t.Run("missing sha256 prefix rejected", func(t *testing.T) {
		svc := ingest.NewService("verify-me", "app-secret", nil, nil, nil, nil, nil, nil, nil, nil, nil)
		digest := hmacsig.HexDigest([]byte("app-secret"), body)
		assert.False(t, svc.VerifySignature(body, digest))
	})

	t.Run("body tampered after signing", func(t *testing.T) {
		svc := ingest.NewService("verify-me", "app-secret", nil, nil, nil, nil, nil, nil, nil, nil, nil)
		digest := hmacsig.HexDigest([]byte("app-secret"), body)
		assert.False(t, svc.VerifySignature([]byte(`{"object":"tampered"}`), "sha256="+digest))
	})
}
