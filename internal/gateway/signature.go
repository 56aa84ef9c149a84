package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrSignatureMissing indicates the signature header was absent or empty.
	ErrSignatureMissing = errors.New("gateway: signature missing")
	// ErrSignatureInvalid indicates the signature did not match the payload.
	ErrSignatureInvalid = errors.New("gateway: signature invalid")
)

// Verifier validates webhook payload signatures against the shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier for the configured gateway secret.
func NewVerifier(secret string) (*Verifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("gateway: webhook secret is required")
	}
	return &Verifier{secret: []byte(trimmed)}, nil
}

// Verify checks the HMAC-SHA256 signature over the raw request body.
func (v *Verifier) Verify(body []byte, signature string) error {
	if v == nil || len(v.secret) == 0 {
		return errors.New("gateway: verifier not initialised")
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrSignatureMissing
	}

	provided, err := decodeSignature(signature)
	if err != nil {
		return ErrSignatureInvalid
	}

	expected := computeHMAC(v.secret, body)
	if !hmac.Equal(provided, expected) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign produces the hex-encoded signature for a payload. Used by tests and
// by local tooling that replays gateway events.
func (v *Verifier) Sign(body []byte) string {
	if v == nil {
		return ""
	}
	return hex.EncodeToString(computeHMAC(v.secret, body))
}

func decodeSignature(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("gateway: signature must be hex or base64 encoded")
}

func computeHMAC(secret []byte, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}
