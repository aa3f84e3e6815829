// Package ingest is the Webhook Receiver: it validates Meta's challenge and
// envelope, resolves matching routes, applies the mapping and idempotency
// policy, creates DeliveryEvents, and hands each one to the Delivery
// Worker's bounded pool for a best-effort first attempt.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/internal/hmacsig"
	"github.com/flowenginer/meta-hub/logsink"
	"github.com/flowenginer/meta-hub/mapping"
	"github.com/flowenginer/meta-hub/route"
)

// Deliverer is the subset of the Delivery Worker's Service the receiver
// depends on: a best-effort, non-blocking submission into the same
// per-tenant bounded pool the scheduled process cycle dispatches into.
type Deliverer interface {
	Submit(ev event.DeliveryEvent)
}

// ReceiveResult summarizes one POST /webhook/meta call for the HTTP layer.
type ReceiveResult struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
}

// Service implements the receiver's business logic, independent of the
// chi/http framing in handler.go.
type Service struct {
	verifyToken string
	appSecret   string
	routes      *route.Resolver
	mappings    mapping.Repository
	events      event.Repository
	tenants     TenantResolver
	tokens      TokenSource
	graph       *GraphClient
	deliverer   Deliverer
	logs        logsink.Repository
	logger      *zap.Logger
}

// NewService builds a Service. tokens and graph may be nil when Lead Gen
// enrichment is not configured — enrichment is then skipped, never fatal.
func NewService(verifyToken, appSecret string, routes *route.Resolver, mappings mapping.Repository, events event.Repository, tenants TenantResolver, tokens TokenSource, graph *GraphClient, deliverer Deliverer, logs logsink.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		routes:      routes,
		mappings:    mappings,
		events:      events,
		tenants:     tenants,
		tokens:      tokens,
		graph:       graph,
		deliverer:   deliverer,
		logs:        logs,
		logger:      logger,
	}
}

// VerifyChallenge checks Meta's GET subscription challenge, returning the
// challenge string to echo back and whether it should be accepted.
func (s *Service) VerifyChallenge(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || token != s.verifyToken || challenge == "" {
		return "", false
	}
	return challenge, true
}

// VerifySignature checks the X-Hub-Signature-256 header Meta attaches to
// every webhook POST against the raw request body, using the app secret
// the same HMAC-SHA256 primitive the Destination Client and the OAuth
// state codec use. An empty appSecret (local dev without one configured)
// accepts everything, same posture as an unset verify token would for the
// challenge.
func (s *Service) VerifySignature(body []byte, header string) bool {
	if s.appSecret == "" {
		return true
	}
	digest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	return hmacsig.VerifyHex([]byte(s.appSecret), body, digest)
}

// Receive parses a Meta envelope and drives it through route resolution,
// mapping and event creation. It never returns an error for a malformed or
// empty envelope — Meta needs a fast 200 either way — only for a failure
// that should surface as a 500 so Meta retries the delivery.
func (s *Service) Receive(ctx context.Context, body []byte) (ReceiveResult, error) {
	var env MetaEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Object == "" || len(env.Entry) == 0 {
		return ReceiveResult{Status: "ignored"}, nil
	}

	processed := 0
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			n, err := s.handleChange(ctx, env.Object, change)
			if err != nil {
				s.logger.Warn("handling webhook change failed", zap.String("entry_id", entry.ID), zap.Error(err))
				continue
			}
			processed += n
		}
	}
	return ReceiveResult{Status: "processed", Processed: processed}, nil
}

func (s *Service) handleChange(ctx context.Context, object string, change Change) (int, error) {
	switch {
	case object == objectWhatsAppBusinessAccount:
		return s.handleWhatsApp(ctx, change)
	case object == objectPage && change.Field == fieldLeadgen:
		return s.handleLeadgen(ctx, change)
	default:
		return 0, nil
	}
}

func (s *Service) handleWhatsApp(ctx context.Context, change Change) (int, error) {
	phoneID := phoneNumberID(change.Value)
	if phoneID == "" {
		return 0, nil
	}

	tenantID, err := s.tenants.ResolveTenant(ctx, "whatsapp", phoneID)
	if err != nil {
		s.writeLog(ctx, "", logsink.LevelWarn, "webhook.tenant_not_found", phoneID, nil)
		return 0, nil
	}

	eventType := whatsappEventType(change.Value)
	routes, err := s.routes.Resolve(ctx, tenantID, "whatsapp", phoneID, eventType)
	if err != nil {
		return 0, fmt.Errorf("resolving whatsapp routes: %w", err)
	}
	s.writeLog(ctx, tenantID, logsink.LevelInfo, "webhook.received", phoneID, map[string]any{
		"source_type": "whatsapp", "event_type": eventType, "matched_routes": len(routes),
	})

	return s.fanOut(ctx, tenantID, routes, "whatsapp", change.Value, ""), nil
}

func (s *Service) handleLeadgen(ctx context.Context, change Change) (int, error) {
	formID := leadFormID(change.Value)
	if formID == "" {
		return 0, nil
	}

	tenantID, err := s.tenants.ResolveTenant(ctx, "forms", formID)
	if err != nil {
		s.writeLog(ctx, "", logsink.LevelWarn, "webhook.tenant_not_found", formID, nil)
		return 0, nil
	}

	routes, err := s.routes.Resolve(ctx, tenantID, "forms", formID, "")
	if err != nil {
		return 0, fmt.Errorf("resolving lead gen routes: %w", err)
	}
	leadID := leadgenID(change.Value)
	s.writeLog(ctx, tenantID, logsink.LevelInfo, "webhook.received", formID, map[string]any{
		"source_type": "forms", "leadgen_id": leadID, "matched_routes": len(routes),
	})
	if len(routes) == 0 {
		return 0, nil
	}

	payload := s.enrichLead(ctx, tenantID, change.Value)
	return s.fanOut(ctx, tenantID, routes, "forms", payload, leadID), nil
}

// enrichLead fetches the full lead via the Graph API and merges it under
// "lead" in the payload tree. Any failure — missing token, network error,
// non-2xx — is logged at warn and the original value is returned unchanged;
// enrichment never blocks event creation (spec.md §4.E step 3).
func (s *Service) enrichLead(ctx context.Context, tenantID string, value map[string]any) map[string]any {
	leadID := leadgenID(value)
	if leadID == "" || s.tokens == nil || s.graph == nil {
		return value
	}

	pageID := pageAccessTokenPageID(value)
	token, err := s.tokens.AccessToken(ctx, tenantID, pageID)
	if err != nil || token == "" {
		s.writeLog(ctx, tenantID, logsink.LevelWarn, "webhook.enrichment_skipped", leadID, map[string]any{"reason": "no access token"})
		return value
	}

	lead, err := s.graph.FetchLead(ctx, leadID, token)
	if err != nil {
		s.writeLog(ctx, tenantID, logsink.LevelWarn, "webhook.enrichment_failed", leadID, map[string]any{"error": err.Error()})
		return value
	}

	enriched := make(map[string]any, len(value)+1)
	for k, v := range value {
		enriched[k] = v
	}
	enriched["lead"] = lead
	return enriched
}

func (s *Service) fanOut(ctx context.Context, tenantID string, routes []route.Route, sourceType string, payload any, providerEventID string) int {
	created := 0
	for _, r := range routes {
		ev, err := s.createEventForRoute(ctx, tenantID, r, sourceType, payload, providerEventID)
		if err != nil {
			s.logger.Warn("creating delivery event failed", zap.String("route_id", r.ID), zap.Error(err))
			continue
		}
		if ev != nil {
			created++
		}
	}
	return created
}

func (s *Service) createEventForRoute(ctx context.Context, tenantID string, r route.Route, sourceType string, payload any, providerEventID string) (*event.DeliveryEvent, error) {
	if providerEventID != "" {
		existing, err := s.events.FindByIdempotencyKey(ctx, tenantID, r.ID, providerEventID)
		switch {
		case err == nil:
			s.writeLog(ctx, tenantID, logsink.LevelInfo, "webhook.duplicate_dropped", existing.ID, map[string]any{"idempotency_key": providerEventID})
			return nil, nil
		case !errors.Is(err, event.ErrNotFound):
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
	}

	var transformed any
	if r.MappingID != "" {
		m, err := s.mappings.Get(ctx, tenantID, r.MappingID)
		if err != nil {
			return nil, fmt.Errorf("loading mapping: %w", err)
		}
		result, err := mapping.Apply(m, payload)
		if err != nil {
			return nil, fmt.Errorf("applying mapping: %w", err)
		}
		for _, w := range result.Warnings {
			s.writeLog(ctx, tenantID, logsink.LevelWarn, "mapping.warning", r.ID, map[string]any{"warning": w})
		}
		transformed = result.Output
	}

	now := time.Now()
	ev, err := s.events.Create(ctx, event.DeliveryEvent{
		TenantID:           tenantID,
		RouteID:            r.ID,
		DestinationID:      r.DestinationID,
		SourceType:         sourceType,
		SourceEventID:      providerEventID,
		IdempotencyKey:     providerEventID,
		Payload:            payload,
		TransformedPayload: transformed,
		Status:             event.StatusPending,
		MaxAttempts:        event.DefaultMaxAttempts,
		NextRetryAt:        &now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating delivery event: %w", err)
	}

	s.writeLog(ctx, tenantID, logsink.LevelInfo, "delivery.enqueued", ev.ID, map[string]any{"route_id": r.ID})

	if s.deliverer != nil {
		s.deliverer.Submit(ev)
	}
	return &ev, nil
}

func (s *Service) writeLog(ctx context.Context, tenantID string, level logsink.Level, action, resourceRef string, metadata map[string]any) {
	if s.logs == nil {
		return
	}
	_, err := s.logs.Write(ctx, logsink.EventLog{
		TenantID:    tenantID,
		Level:       level,
		Category:    logsink.CategoryWebhook,
		Action:      action,
		Message:     action,
		ResourceRef: resourceRef,
		Metadata:    metadata,
	})
	if err != nil {
		s.logger.Warn("writing log sink entry failed", zap.Error(err))
	}
}
