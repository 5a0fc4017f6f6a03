package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SIGNATURE_PREFIX names the algorithm in the signature header value
const SIGNATURE_PREFIX = "sha256="

// Sign computes the signature header value for a delivery body.
// The HMAC-SHA256 is computed over the exact body bytes with the subscription secret.
// Format: "sha256=<hex_signature>"
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return SIGNATURE_PREFIX + hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature of body and compares it in constant time.
// Receivers call this before trusting a payload.
func Verify(secret string, body []byte, signature string) bool {
	if !strings.HasPrefix(signature, SIGNATURE_PREFIX) {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateSecret returns a random 32-byte secret, hex encoded
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
