// Package destination models the customer HTTP endpoints events are
// forwarded to and the single-call client that delivers to them.
package destination

import "time"

// Method is the closed set of HTTP methods a Destination may use.
type Method string

const (
	MethodPOST  Method = "POST"
	MethodPUT   Method = "PUT"
	MethodPATCH Method = "PATCH"
)

// AuthType selects how the Destination Client authenticates outbound calls.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthHMAC   AuthType = "hmac"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api_key"
)

// AuthConfig holds the credentials for whichever AuthType a Destination
// uses; fields irrelevant to the active AuthType are ignored.
type AuthConfig struct {
	Token      string `json:"token,omitempty"`       // bearer
	Username   string `json:"username,omitempty"`     // basic
	Password   string `json:"password,omitempty"`     // basic
	HeaderName string `json:"header_name,omitempty"`  // api_key
	APIKey     string `json:"api_key,omitempty"`       // api_key
	Secret     string `json:"secret,omitempty"`        // hmac
}

// Destination is a target HTTP endpoint a tenant's Routes may forward to.
type Destination struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url"`
	Method      Method            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	AuthType    AuthType          `json:"auth_type"`
	AuthConfig  AuthConfig        `json:"auth_config,omitempty"`
	TimeoutMs   int               `json:"timeout_ms"`
	IsActive    bool              `json:"is_active"`
	LastUsedAt  *time.Time        `json:"last_used_at,omitempty"`
	DeletedAt   *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// AttemptResult captures the observable outcome of a single Call.
type AttemptResult struct {
	StatusCode   *int
	ResponseBody string // truncated to 2000 bytes
	ErrorMessage string
	DurationMs   int64
}

// Success reports whether the attempt landed a 2xx response.
func (r AttemptResult) Success() bool {
	return r.StatusCode != nil && *r.StatusCode >= 200 && *r.StatusCode < 300
}

const (
	defaultTimeoutMs = 10_000
	minTimeoutMs     = 1_000
	maxTimeoutMs     = 30_000
	maxResponseBytes = 2000
)

// EffectiveTimeoutMs returns d.TimeoutMs clamped to [minTimeoutMs,
// maxTimeoutMs], defaulting to defaultTimeoutMs when unset.
func (d Destination) EffectiveTimeoutMs() int {
	if d.TimeoutMs == 0 {
		return defaultTimeoutMs
	}
	if d.TimeoutMs < minTimeoutMs {
		return minTimeoutMs
	}
	if d.TimeoutMs > maxTimeoutMs {
		return maxTimeoutMs
	}
	return d.TimeoutMs
}
