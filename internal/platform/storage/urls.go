package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultURLExpiry = 15 * time.Minute
	maxURLExpiry     = time.Hour
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Resolver turns stored object keys into time-limited download URLs.
type Resolver struct {
	bucket string
	signer Signer
	expiry time.Duration
	scheme storage.SigningScheme
	now    func() time.Time
}

// ResolverOption customises resolver behaviour.
type ResolverOption func(*Resolver)

// WithExpiry overrides the signed URL lifetime.
func WithExpiry(expiry time.Duration) ResolverOption {
	return func(r *Resolver) {
		if expiry > 0 {
			r.expiry = expiry
		}
	}
}

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ResolverOption {
	return func(r *Resolver) {
		if scheme != 0 {
			r.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewResolver constructs a Resolver for the given bucket.
func NewResolver(bucket string, signer Signer, opts ...ResolverOption) (*Resolver, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	resolver := &Resolver{
		bucket: bucket,
		signer: signer,
		expiry: defaultURLExpiry,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	if resolver.expiry > maxURLExpiry {
		return nil, errExpiryTooLong
	}
	return resolver, nil
}

// PublicResolver builds unsigned object URLs for buckets that allow public
// reads. It is the fallback when no signing key is configured.
type PublicResolver struct {
	bucket string
}

// NewPublicResolver constructs a resolver returning public object URLs.
func NewPublicResolver(bucket string) (*PublicResolver, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	return &PublicResolver{bucket: bucket}, nil
}

// ResolveURL returns the public download URL for the stored object key.
func (r *PublicResolver) ResolveURL(_ context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errInvalidObject
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", r.bucket, key), nil
}

// ResolveURL returns a signed GET URL for the stored object key.
func (r *Resolver) ResolveURL(ctx context.Context, key string) (string, error) {
	if r == nil {
		return "", errNoSigner
	}
	if ctx == nil {
		return "", errors.New("storage: context is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errInvalidObject
	}

	opts := storage.SignedURLOptions{
		GoogleAccessID: r.signer.Email(),
		Scheme:         r.scheme,
		Method:         "GET",
		Expires:        r.now().Add(r.expiry),
		SignBytes: func(payload []byte) ([]byte, error) {
			return r.signer.SignBytes(ctx, payload)
		},
	}

	signedURL, err := storage.SignedURL(r.bucket, key, &opts)
	if err != nil {
		return "", fmt.Errorf("storage: sign download url: %w", err)
	}
	return signedURL, nil
}
