package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultCurrency         = "INR"
	defaultTaxPercent       = 18.0
	defaultShippingFlat     = int64(5000)
	defaultSignatureHeader  = "X-Gateway-Signature"
	defaultRateLimitMax     = 3
	defaultRateLimitWindow  = time.Hour
	defaultSequenceMax      = int64(9999)
	defaultSignedURLTTL     = 15 * time.Minute
	defaultNotificationWait = 10 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firestore     FirestoreConfig
	Storage       StorageConfig
	Gateway       GatewayConfig
	Pricing       PricingConfig
	RateLimit     RateLimitConfig
	Sequence      SequenceConfig
	Notifications NotificationConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig describes the bucket holding customer uploads.
// SignerKeyFile points at a service account key used to mint signed URLs;
// when empty the API serves quotes without resolving file URLs.
type StorageConfig struct {
	UploadsBucket string
	SignedURLTTL  time.Duration
	SignerKeyFile string
}

// GatewayConfig carries payment-gateway webhook expectations. WebhookSecret
// may be an sm:// reference resolved at load time.
type GatewayConfig struct {
	WebhookSecret   string
	SignatureHeader string
}

// PricingConfig feeds the injected tax and shipping policies.
type PricingConfig struct {
	Currency        string
	TaxPercent      float64
	ShippingFlat    int64
	ShippingByMode  map[string]string
	FreeShippingMin int64
}

// RateLimitConfig bounds quote submissions per customer phone.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// SequenceConfig bounds per-day quote numbering.
type SequenceConfig struct {
	Prefix    string
	MaxPerDay int64
}

// NotificationConfig names the Pub/Sub topic receiving outbound events.
type NotificationConfig struct {
	ProjectID   string
	Topic       string
	PublishWait time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			UploadsBucket: stringWithDefault(lookup, "API_STORAGE_UPLOADS_BUCKET", ""),
			SignedURLTTL:  durationWithDefault(lookup, "API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
			SignerKeyFile: stringWithDefault(lookup, "API_STORAGE_SIGNER_KEY_FILE", ""),
		},
		Gateway: GatewayConfig{
			WebhookSecret:   stringWithDefault(lookup, "API_GATEWAY_WEBHOOK_SECRET", ""),
			SignatureHeader: stringWithDefault(lookup, "API_GATEWAY_SIGNATURE_HEADER", defaultSignatureHeader),
		},
		Pricing: PricingConfig{
			Currency:        strings.ToUpper(stringWithDefault(lookup, "API_PRICING_CURRENCY", defaultCurrency)),
			TaxPercent:      floatWithDefault(lookup, "API_PRICING_TAX_PERCENT", defaultTaxPercent),
			ShippingFlat:    int64WithDefault(lookup, "API_PRICING_SHIPPING_FLAT", defaultShippingFlat),
			ShippingByMode:  mapWithDefault(lookup, "API_PRICING_SHIPPING_BY_MODE"),
			FreeShippingMin: int64WithDefault(lookup, "API_PRICING_FREE_SHIPPING_MIN", 0),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: intWithDefault(lookup, "API_RATELIMIT_QUOTE_MAX", defaultRateLimitMax),
			Window:      durationWithDefault(lookup, "API_RATELIMIT_QUOTE_WINDOW", defaultRateLimitWindow),
		},
		Sequence: SequenceConfig{
			Prefix:    stringWithDefault(lookup, "API_SEQUENCE_PREFIX", "Q"),
			MaxPerDay: int64WithDefault(lookup, "API_SEQUENCE_MAX_PER_DAY", defaultSequenceMax),
		},
		Notifications: NotificationConfig{
			ProjectID:   stringWithDefault(lookup, "API_NOTIFICATIONS_PROJECT_ID", ""),
			Topic:       stringWithDefault(lookup, "API_NOTIFICATIONS_TOPIC", ""),
			PublishWait: durationWithDefault(lookup, "API_NOTIFICATIONS_PUBLISH_WAIT", defaultNotificationWait),
		},
	}

	if cfg.Notifications.ProjectID == "" {
		cfg.Notifications.ProjectID = cfg.Firestore.ProjectID
	}

	resolved, err := resolveSecret(ctx, cfg.Gateway.WebhookSecret, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Gateway.WebhookSecret = resolved

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		missing = append(missing, "RateLimit.MaxRequests")
	}
	if cfg.RateLimit.Window <= 0 {
		missing = append(missing, "RateLimit.Window")
	}
	if cfg.Pricing.TaxPercent < 0 {
		missing = append(missing, "Pricing.TaxPercent")
	}
	if cfg.Sequence.MaxPerDay <= 0 {
		missing = append(missing, "Sequence.MaxPerDay")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}
