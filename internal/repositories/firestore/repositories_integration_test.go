//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/printworks/api/internal/domain"
	pconfig "github.com/printworks/api/internal/platform/config"
	pfirestore "github.com/printworks/api/internal/platform/firestore"
	"github.com/printworks/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func newIntegrationProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()

	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "printworks-test",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
}

func TestCounterRepositoryIntegration(t *testing.T) {
	provider := newIntegrationProvider(t)
	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const workers = 16
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "quotes:260831")
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		expected := int64(i + 1)
		if val != expected {
			t.Fatalf("expected sequence %d at position %d, got %d", expected, i, val)
		}
	}

	// A different scope starts from 1 again.
	value, err := repo.Next(ctx, "quotes:260901")
	if err != nil {
		t.Fatalf("next new scope: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected new scope to start at 1, got %d", value)
	}
}

func TestPaymentLedgerRepositoryIntegration(t *testing.T) {
	provider := newIntegrationProvider(t)
	ledger, err := NewPaymentLedgerRepository(provider)
	if err != nil {
		t.Fatalf("new ledger repository: %v", err)
	}
	quotes, err := NewQuoteRepository(provider)
	if err != nil {
		t.Fatalf("new quote repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	quote := domain.Quote{
		ID:     "quo_int",
		Number: "Q-260831-0001",
		Status: domain.OrderStatusPending,
		Payment: domain.Payment{
			Status: domain.PaymentStatusPending,
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := quotes.Insert(ctx, quote); err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	event := domain.PaymentEvent{
		ID:               "pay_int:payment.captured",
		EventType:        "payment.captured",
		GatewayPaymentID: "pay_int",
		OrderNumber:      quote.Number,
		AppliedAt:        time.Now().UTC(),
	}

	applied, err := ledger.Apply(ctx, event, func(txCtx context.Context) (domain.PaymentEventOutcome, error) {
		loaded, err := quotes.FindByNumber(txCtx, quote.Number)
		if err != nil {
			return "", err
		}
		loaded.Status = domain.OrderStatusConfirmed
		loaded.Payment.Status = domain.PaymentStatusPaid
		if err := quotes.Update(txCtx, loaded); err != nil {
			return "", err
		}
		return domain.PaymentEventApplied, nil
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatal("first apply reported duplicate")
	}

	// Redelivery must not run the mutation again.
	applied, err = ledger.Apply(ctx, event, func(context.Context) (domain.PaymentEventOutcome, error) {
		t.Fatal("mutate ran for an already applied event")
		return "", nil
	})
	if err != nil {
		t.Fatalf("apply redelivery: %v", err)
	}
	if applied {
		t.Fatal("redelivery reported applied")
	}

	record, found, err := ledger.Find(ctx, event.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found || record.Outcome != domain.PaymentEventApplied {
		t.Fatalf("record = %+v found=%v, want applied record", record, found)
	}

	final, err := quotes.FindByNumber(ctx, quote.Number)
	if err != nil {
		t.Fatalf("find quote: %v", err)
	}
	if final.Status != domain.OrderStatusConfirmed {
		t.Fatalf("quote status = %s, want confirmed", final.Status)
	}
}

func TestPromotionRepositoryIntegration(t *testing.T) {
	provider := newIntegrationProvider(t)
	repo, err := NewPromotionRepository(provider)
	if err != nil {
		t.Fatalf("new promotion repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	limit := int64(2)
	if _, err := client.Collection("promotions").Doc("PRINT15").Set(ctx, domain.Promotion{
		Code:         "PRINT15",
		Discount:     15,
		DiscountType: domain.DiscountPercentage,
		UsageLimit:   &limit,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("seed promotion: %v", err)
	}

	for i := int64(1); i <= limit; i++ {
		promo, err := repo.RedeemUsage(ctx, "PRINT15")
		if err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
		if promo.UsedCount != i {
			t.Fatalf("used count = %d, want %d", promo.UsedCount, i)
		}
	}

	_, err = repo.RedeemUsage(ctx, "PRINT15")
	if !errors.Is(err, repositories.ErrPromotionUsageExhausted) {
		t.Fatalf("error = %v, want ErrPromotionUsageExhausted", err)
	}
}

func TestRateWindowRepositoryIntegration(t *testing.T) {
	provider := newIntegrationProvider(t)
	repo, err := NewRateWindowRepository(provider)
	if err != nil {
		t.Fatalf("new rate window repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		recorded, _, err := repo.CountAndRecord(ctx, "hash_abc", now.Add(time.Duration(i)*time.Minute), time.Hour, 2)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !recorded {
			t.Fatalf("attempt %d refused, want recorded", i)
		}
	}

	recorded, oldest, err := repo.CountAndRecord(ctx, "hash_abc", now.Add(2*time.Minute), time.Hour, 2)
	if err != nil {
		t.Fatalf("record over limit: %v", err)
	}
	if recorded {
		t.Fatal("over-limit attempt recorded")
	}
	if !oldest.Equal(now) {
		t.Fatalf("oldest = %s, want %s", oldest, now)
	}

	// After the window passes the identity is admitted again.
	recorded, _, err = repo.CountAndRecord(ctx, "hash_abc", now.Add(2*time.Hour), time.Hour, 2)
	if err != nil {
		t.Fatalf("record after window: %v", err)
	}
	if !recorded {
		t.Fatal("post-window attempt refused")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}
