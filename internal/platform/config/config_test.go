package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "printworks-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "printworks-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Pricing.Currency != "INR" {
		t.Errorf("expected default currency INR, got %s", cfg.Pricing.Currency)
	}
	if cfg.Pricing.TaxPercent != 18.0 {
		t.Errorf("unexpected default tax percent: %v", cfg.Pricing.TaxPercent)
	}
	if cfg.RateLimit.MaxRequests != 3 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.Window != time.Hour {
		t.Errorf("unexpected default rate window: %s", cfg.RateLimit.Window)
	}
	if cfg.Gateway.SignatureHeader != defaultSignatureHeader {
		t.Errorf("unexpected signature header: %s", cfg.Gateway.SignatureHeader)
	}
	if cfg.Sequence.Prefix != "Q" {
		t.Errorf("unexpected sequence prefix: %s", cfg.Sequence.Prefix)
	}
	if cfg.Sequence.MaxPerDay != 9999 {
		t.Errorf("unexpected sequence cap: %d", cfg.Sequence.MaxPerDay)
	}
	if cfg.Storage.SignedURLTTL != 15*time.Minute {
		t.Errorf("unexpected signed url ttl: %s", cfg.Storage.SignedURLTTL)
	}
	if cfg.Notifications.ProjectID != "printworks-dev" {
		t.Errorf("expected notifications project to default to firestore project, got %s", cfg.Notifications.ProjectID)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":              "9090",
		"API_SERVER_READ_TIMEOUT":      "20s",
		"API_SERVER_IDLE_TIMEOUT":      "2m",
		"API_FIRESTORE_PROJECT_ID":     "printworks-prod",
		"API_STORAGE_UPLOADS_BUCKET":   "printworks-uploads",
		"API_GATEWAY_WEBHOOK_SECRET":   "secret://gateway/webhook",
		"API_GATEWAY_SIGNATURE_HEADER": "X-Razorpay-Signature",
		"API_PRICING_CURRENCY":         "inr",
		"API_PRICING_TAX_PERCENT":      "12.5",
		"API_PRICING_SHIPPING_FLAT":    "7500",
		"API_PRICING_SHIPPING_BY_MODE": "pickup=0, courier=7500",
		"API_RATELIMIT_QUOTE_MAX":      "5",
		"API_RATELIMIT_QUOTE_WINDOW":   "30m",
		"API_SEQUENCE_PREFIX":          "QT",
		"API_NOTIFICATIONS_PROJECT_ID": "printworks-events",
		"API_NOTIFICATIONS_TOPIC":      "quote-events",
	}

	secrets := map[string]string{
		"secret://gateway/webhook": "whsec-prod",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Gateway.WebhookSecret != "whsec-prod" {
		t.Errorf("expected resolved webhook secret, got %s", cfg.Gateway.WebhookSecret)
	}
	if cfg.Gateway.SignatureHeader != "X-Razorpay-Signature" {
		t.Errorf("unexpected signature header: %s", cfg.Gateway.SignatureHeader)
	}
	if cfg.Pricing.Currency != "INR" {
		t.Errorf("expected currency upper-cased, got %s", cfg.Pricing.Currency)
	}
	if cfg.Pricing.TaxPercent != 12.5 {
		t.Errorf("unexpected tax percent: %v", cfg.Pricing.TaxPercent)
	}
	if cfg.Pricing.ShippingFlat != 7500 {
		t.Errorf("unexpected shipping flat: %d", cfg.Pricing.ShippingFlat)
	}
	if cfg.Pricing.ShippingByMode["courier"] != "7500" {
		t.Errorf("unexpected shipping mode map: %v", cfg.Pricing.ShippingByMode)
	}
	if cfg.RateLimit.MaxRequests != 5 || cfg.RateLimit.Window != 30*time.Minute {
		t.Errorf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if cfg.Sequence.Prefix != "QT" {
		t.Errorf("unexpected sequence prefix: %s", cfg.Sequence.Prefix)
	}
	if cfg.Notifications.ProjectID != "printworks-events" {
		t.Errorf("unexpected notifications project: %s", cfg.Notifications.ProjectID)
	}
	if cfg.Notifications.Topic != "quote-events" {
		t.Errorf("unexpected notifications topic: %s", cfg.Notifications.Topic)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=printworks-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "printworks-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validation.Fields()) == 0 {
		t.Fatal("expected missing fields to be reported")
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":   "printworks-dev",
		"API_GATEWAY_WEBHOOK_SECRET": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":   "printworks-dev",
		"API_GATEWAY_WEBHOOK_SECRET": "sm://gateway/webhook",
	}

	secrets := map[string]string{
		"secret://gateway/webhook": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Gateway.WebhookSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Gateway.WebhookSecret)
	}
}
