package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultVersion      = "latest"
	defaultFallbackPath = ".secrets.local"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver resolves secret:// references through Google Secret Manager with an
// in-process cache and an optional local fallback file for development.
type Resolver struct {
	client     secretManagerClient
	ownsClient bool

	logger    *zap.Logger
	projectID string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises Resolver construction.
type Option func(*resolverConfig)

type resolverConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *resolverConfig) {
		cfg.logger = logger
	}
}

// WithProject configures the project ID used for bare secret names.
func WithProject(projectID string) Option {
	return func(cfg *resolverConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *resolverConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient injects a preconfigured Secret Manager client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *resolverConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *resolverConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewResolver builds a Resolver with caching and local fallback support.
func NewResolver(ctx context.Context, opts ...Option) (*Resolver, error) {
	cfg := resolverConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	r := &Resolver{
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}

	if cfg.client != nil {
		r.client = cfg.client
	} else {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		} else {
			r.client = client
			r.ownsClient = true
		}
	}

	return r, nil
}

// Close releases the underlying Secret Manager client when owned.
func (r *Resolver) Close() error {
	if r.ownsClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ResolveSecret retrieves the secret value for the supplied reference. It
// satisfies config.SecretResolver.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	key := parsed.Canonical + "@" + parsed.Version
	if value, ok := r.lookupCache(key); ok {
		return value, nil
	}

	projectID := parsed.Project
	if projectID == "" {
		projectID = r.projectID
	}

	if projectID != "" && r.client != nil {
		value, fetchErr := r.fetchRemote(ctx, projectID, parsed.Secret, parsed.Version)
		if fetchErr == nil {
			r.storeCache(key, value)
			return value, nil
		}
		if !isFallbackError(fetchErr) {
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.Canonical, fetchErr)
		}
		r.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.Canonical), zap.Error(fetchErr))
	}

	value, ok := r.lookupFallback(parsed)
	if !ok {
		return "", fmt.Errorf("secrets: fallback value not found for %s", parsed.Canonical)
	}
	r.storeCache(key, value)
	return value, nil
}

func (r *Resolver) fetchRemote(ctx context.Context, projectID, secretName, version string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, secretName, version)
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", resourceName)
	}
	return string(resp.Payload.GetData()), nil
}

func (r *Resolver) lookupCache(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.cache[key]
	return value, ok
}

func (r *Resolver) storeCache(key, value string) {
	r.mu.Lock()
	r.cache[key] = value
	r.mu.Unlock()
}

func (r *Resolver) lookupFallback(ref parsedReference) (string, bool) {
	r.fallbackOnce.Do(func() {
		r.fallbackVals, r.fallbackErr = loadFallbackFile(r.fallbackPath)
		if r.fallbackErr != nil {
			r.logger.Warn("secrets: fallback file unreadable", zap.String("path", r.fallbackPath), zap.Error(r.fallbackErr))
		}
	})
	if r.fallbackVals == nil {
		return "", false
	}
	if value, ok := r.fallbackVals[ref.Canonical]; ok {
		return value, true
	}
	value, ok := r.fallbackVals[ref.Secret]
	return value, ok
}

type parsedReference struct {
	Canonical string
	Project   string
	Secret    string
	Version   string
}

func parseReference(ref string) (parsedReference, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return parsedReference{}, errors.New("secrets: reference is empty")
	}
	if strings.HasPrefix(trimmed, "sm://") {
		trimmed = "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	if !strings.HasPrefix(trimmed, "secret://") {
		return parsedReference{}, fmt.Errorf("secrets: unsupported reference %q", trimmed)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: invalid reference %q: %w", trimmed, err)
	}

	version := strings.TrimSpace(parsed.Query().Get("version"))
	if version == "" {
		version = defaultVersion
	}

	project := parsed.Host
	secret := strings.Trim(parsed.Path, "/")
	if secret == "" {
		// secret://name has the name in the host position
		secret = project
		project = ""
	}
	if secret == "" {
		return parsedReference{}, fmt.Errorf("secrets: reference %q names no secret", trimmed)
	}

	canonical := "secret://" + secret
	if project != "" {
		canonical = "secret://" + project + "/" + secret
	}

	return parsedReference{
		Canonical: canonical,
		Project:   project,
		Secret:    secret,
		Version:   version,
	}, nil
}

func isFallbackError(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable:
		return true
	}
	return false
}

func loadFallbackFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
