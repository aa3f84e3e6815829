package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/logsink"
)

const webhookNotifyTimeout = 5 * time.Second

// Mailer is the external collaborator the email channel sends through.
// There is no concrete SMTP implementation in this module — wiring one up
// is a deployment-specific concern, same as Membership in httpapi.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ErrMailerNotConfigured is returned by NopMailer, the zero-value Mailer
// used when no real one is wired.
var ErrMailerNotConfigured = errors.New("alert: no mailer configured")

// NopMailer always fails, so the email channel simply never lands in
// NotifiedVia until a real Mailer is wired.
type NopMailer struct{}

func (NopMailer) Send(ctx context.Context, to, subject, body string) error {
	return ErrMailerNotConfigured
}

// Notifier dispatches a triggered History across a Rule's configured
// channels.
type Notifier struct {
	logs       logsink.Repository
	mailer     Mailer
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNotifier builds a Notifier. A nil mailer defaults to NopMailer.
func NewNotifier(logs logsink.Repository, mailer Mailer, logger *zap.Logger) *Notifier {
	if mailer == nil {
		mailer = NopMailer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		logs:       logs,
		mailer:     mailer,
		httpClient: &http.Client{Timeout: webhookNotifyTimeout},
		logger:     logger,
	}
}

// Dispatch attempts delivery of h across every channel in r.NotifyChannels and
// returns the subset that actually succeeded — the set to persist as
// History.NotifiedVia. A channel's failure is logged and never blocks the
// others.
func (n *Notifier) Dispatch(ctx context.Context, h History, r Rule) []NotifyChannel {
	var notified []NotifyChannel
	for _, ch := range r.NotifyChannels {
		var ok bool
		switch ch {
		case ChannelInApp:
			ok = n.notifyInApp(ctx, h, r)
		case ChannelEmail:
			ok = n.notifyEmail(ctx, h, r)
		case ChannelWebhook:
			ok = n.notifyWebhook(ctx, h, r)
		default:
			n.logger.Warn("unrecognized notify channel", zap.String("channel", string(ch)))
			continue
		}
		if ok {
			notified = append(notified, ch)
		}
	}
	return notified
}

// notifyInApp always reports success: a failed write of the Log Sink row it
// produces is logged and does not count as a channel failure.
func (n *Notifier) notifyInApp(ctx context.Context, h History, r Rule) bool {
	if n.logs == nil {
		return true
	}
	_, err := n.logs.Write(ctx, logsink.EventLog{
		TenantID:    h.TenantID,
		Level:       logsink.LevelWarn,
		Category:    logsink.CategoryAlert,
		Action:      "alert.in_app_notified",
		Message:     fmt.Sprintf("alert rule %q triggered", r.Name),
		ResourceRef: h.RuleID,
		Metadata:    h.ConditionSnapshot,
	})
	if err != nil {
		n.logger.Warn("writing in-app alert notification failed", zap.Error(err))
	}
	return true
}

func (n *Notifier) notifyEmail(ctx context.Context, h History, r Rule) bool {
	to, _ := r.NotifyConfig["email"].(string)
	if to == "" {
		return false
	}
	subject := fmt.Sprintf("Alert: %s triggered", r.Name)
	body := fmt.Sprintf("Rule %q fired for tenant %s.\n\nCondition: %v", r.Name, r.TenantID, h.ConditionSnapshot)
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		n.logger.Warn("sending alert email failed", zap.String("rule_id", r.ID), zap.Error(err))
		return false
	}
	return true
}

func (n *Notifier) notifyWebhook(ctx context.Context, h History, r Rule) bool {
	url, _ := r.NotifyConfig["webhook_url"].(string)
	if url == "" {
		return false
	}

	body, err := json.Marshal(map[string]any{
		"rule_id":            h.RuleID,
		"rule_name":          r.Name,
		"tenant_id":          h.TenantID,
		"status":             h.Status,
		"condition_snapshot": h.ConditionSnapshot,
		"triggered_at":       h.CreatedAt,
	})
	if err != nil {
		n.logger.Warn("marshaling alert webhook payload failed", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("building alert webhook request failed", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("sending alert webhook failed", zap.String("rule_id", r.ID), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
