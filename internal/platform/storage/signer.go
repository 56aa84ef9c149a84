package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer signs payloads for minting time-limited download URLs against the
// uploads bucket.
type Signer interface {
	// Email returns the service account email used as the GoogleAccessID
	// when signing URLs.
	Email() string
	// SignBytes signs the provided payload with the underlying private key.
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner implements Signer backed by a service account key
// loaded from a JSON credentials file.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewServiceAccountSignerFromJSON builds a signer from raw service account
// credentials. Only client_email and private_key are read, the rest of the
// key file is ignored.
func NewServiceAccountSignerFromJSON(data []byte) (*ServiceAccountSigner, error) {
	email, key, err := parseCredentials(data)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: key}, nil
}

// NewServiceAccountSignerFromFile builds a signer by reading the credentials
// file from disk.
func NewServiceAccountSignerFromFile(path string) (*ServiceAccountSigner, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read credentials file: %w", err)
	}
	return NewServiceAccountSignerFromJSON(contents)
}

// Email returns the signer service account email.
func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes applies SHA256 RSA PKCS#1 v1.5 signing over the payload. This is
// the algorithm SignedURL expects from the SignBytes callback.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer not initialised")
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: payload is empty")
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

func parseCredentials(data []byte) (string, *rsa.PrivateKey, error) {
	if len(data) == 0 {
		return "", nil, errors.New("storage: credentials are empty")
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", nil, fmt.Errorf("storage: decode credentials: %w", err)
	}

	email := strings.TrimSpace(creds.ClientEmail)
	if email == "" {
		return "", nil, errors.New("storage: credentials missing client_email")
	}
	pemKey := strings.TrimSpace(creds.PrivateKey)
	if pemKey == "" {
		return "", nil, errors.New("storage: credentials missing private_key")
	}

	key, err := decodePrivateKey(pemKey)
	if err != nil {
		return "", nil, err
	}
	return email, key, nil
}

// decodePrivateKey accepts both encodings Google issues keys in, PKCS#8
// ("PRIVATE KEY") and the older PKCS#1 ("RSA PRIVATE KEY").
func decodePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("storage: private_key is not valid PEM")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("storage: parse private key: %w", err)
		}
		return key, nil
	default:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("storage: parse private key: %w", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return key, nil
	}
}
