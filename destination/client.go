package destination

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowenginer/meta-hub/internal/hmacsig"
)

// Recorder observes the outcome of a single outbound call, for the metrics
// package's attempt-latency histogram. A nil Recorder on Client disables
// recording entirely.
type Recorder interface {
	ObserveAttempt(destinationID string, durationMs int64, success bool)
}

// Client issues the single outbound HTTP call the Delivery Worker drives
// per attempt.
type Client struct {
	httpClient *http.Client
	userAgent  string
	recorder   Recorder
}

// NewClient builds a Client around an http.Client with no Timeout of its
// own; each Call bounds its request with a context deadline taken from the
// Destination's EffectiveTimeoutMs.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		userAgent:  "meta-hub-delivery/1.0",
	}
}

// WithRecorder attaches a Recorder that observes every Call this Client
// makes from then on.
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// Call issues exactly one HTTP request to d, applying auth headers and a
// hard deadline derived from d.EffectiveTimeoutMs. It never returns a Go
// error for a failed delivery — transport failures are captured in
// AttemptResult.ErrorMessage so callers have one uniform outcome shape.
func (c *Client) Call(ctx context.Context, d Destination, eventID string, attemptNumber int, body []byte) AttemptResult {
	timeoutMs := d.EffectiveTimeoutMs()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, string(d.Method), d.URL, bytes.NewReader(body))
	if err != nil {
		return AttemptResult{
			ErrorMessage: fmt.Sprintf("building request: %v", err),
			DurationMs:   time.Since(start).Milliseconds(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-MetaHub-Event-Id", eventID)
	req.Header.Set("X-MetaHub-Attempt", fmt.Sprintf("%d", attemptNumber))
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if err := applyAuth(req, d, body); err != nil {
		return AttemptResult{
			ErrorMessage: fmt.Sprintf("applying auth: %v", err),
			DurationMs:   time.Since(start).Milliseconds(),
		}
	}

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		c.observe(d.ID, duration, false)
		msg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("Timeout after %dms", timeoutMs)
		}
		return AttemptResult{
			ErrorMessage: msg,
			DurationMs:   duration,
		}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseBytes)
	respBody, readErr := io.ReadAll(limited)
	result := AttemptResult{
		StatusCode: &resp.StatusCode,
		DurationMs: duration,
	}
	if readErr != nil {
		result.ErrorMessage = fmt.Sprintf("reading response body: %v", readErr)
	}
	result.ResponseBody = string(respBody)
	c.observe(d.ID, duration, result.Success())
	return result
}

func (c *Client) observe(destinationID string, durationMs int64, success bool) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveAttempt(destinationID, durationMs, success)
}

func applyAuth(req *http.Request, d Destination, body []byte) error {
	switch d.AuthType {
	case AuthNone, "":
		return nil
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+d.AuthConfig.Token)
		return nil
	case AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(d.AuthConfig.Username + ":" + d.AuthConfig.Password))
		req.Header.Set("Authorization", "Basic "+creds)
		return nil
	case AuthAPIKey:
		if d.AuthConfig.HeaderName == "" {
			return fmt.Errorf("api_key auth requires header_name")
		}
		req.Header.Set(d.AuthConfig.HeaderName, d.AuthConfig.APIKey)
		return nil
	case AuthHMAC:
		digest := hmacsig.HexDigest([]byte(d.AuthConfig.Secret), body)
		req.Header.Set("X-Hub-Signature-256", "sha256="+digest)
		return nil
	default:
		return fmt.Errorf("unrecognized auth_type %q", d.AuthType)
	}
}
