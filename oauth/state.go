// Package oauth implements the signed state parameter carried through the
// Meta OAuth start/callback round trip. Token storage and the actual
// provider exchange are external collaborators; this package only signs and
// verifies the opaque state value.
package oauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowenginer/meta-hub/internal/hmacsig"
)

// maxStateAge is the freshness window Verify enforces on the embedded
// timestamp (Testable Property 8).
const maxStateAge = 10 * time.Minute

// ErrInvalidState is returned by Verify for a malformed state string, a
// signature mismatch, or a timestamp outside the freshness window.
var ErrInvalidState = errors.New("oauth: invalid state")

// Payload is the signed content of the state parameter.
type Payload struct {
	WorkspaceID string `json:"wid"`
	UserID      string `json:"uid"`
	TimestampMs int64  `json:"ts"`

	// Nonce makes two Sign calls for the same workspace/user in the same
	// millisecond produce different state strings, so a leaked state value
	// can't be distinguished from a fresh one by comparing ciphertext.
	Nonce string `json:"n"`
}

// Sign encodes p and returns the state string
// base64(payload) + "." + hex(HMAC_SHA256(secret, payload)). Nonce is
// populated here if p didn't already set one.
func Sign(secret []byte, p Payload) (string, error) {
	if p.Nonce == "" {
		p.Nonce = uuid.New().String()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("oauth: marshaling state payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	digest := hmacsig.HexDigest(secret, []byte(encoded))
	return encoded + "." + digest, nil
}

// Verify checks state's signature against secret and its timestamp against
// now, returning the embedded Payload on success. It rejects on signature
// mismatch or a ts older than maxStateAge relative to now.
func Verify(secret []byte, state string, now time.Time) (Payload, error) {
	encoded, digest, ok := splitState(state)
	if !ok {
		return Payload{}, ErrInvalidState
	}
	if !hmacsig.VerifyHex(secret, []byte(encoded), digest) {
		return Payload{}, ErrInvalidState
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrInvalidState
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, ErrInvalidState
	}

	ageMs := now.UnixMilli() - p.TimestampMs
	if ageMs < 0 || ageMs > maxStateAge.Milliseconds() {
		return Payload{}, ErrInvalidState
	}
	return p, nil
}

func splitState(state string) (encoded, digest string, ok bool) {
	for i := len(state) - 1; i >= 0; i-- {
		if state[i] == '.' {
			return state[:i], state[i+1:], true
		}
	}
	return "", "", false
}
