// Package hmacsig is the single HMAC-SHA256 primitive shared by the
// Destination Client's hmac auth mode, the Webhook Receiver's Meta
// signature check, and the OAuth state codec, so the three call sites
// cannot drift in hashing behaviour.
package hmacsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HexDigest returns the lowercase hex-encoded HMAC-SHA256 of body under key.
func HexDigest(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex reports whether providedHex matches the HMAC-SHA256 of body
// under key, using a constant-time comparison.
func VerifyHex(key, body []byte, providedHex string) bool {
	provided, err := hex.DecodeString(providedHex)
	if err != nil {
		return false
	}
	expected := hmac.New(sha256.New, key)
	expected.Write(body)
	return subtle.ConstantTimeCompare(provided, expected.Sum(nil)) == 1
}
