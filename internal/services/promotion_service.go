package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/repositories"
)

// PromotionServiceDeps wires the promotion repository.
type PromotionServiceDeps struct {
	Promotions repositories.PromotionRepository
}

type promotionService struct {
	promotions repositories.PromotionRepository
}

// NewPromotionService validates dependencies and constructs the service.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promotions == nil {
		return nil, errors.New("promotion service: repository is required")
	}
	return &promotionService{promotions: deps.Promotions}, nil
}

// Evaluate gates a promotion against a subtotal at a point in time. It is
// pure: ineligibility is a reason code, never an error, and nothing is
// redeemed here.
func (s *promotionService) Evaluate(promo domain.Promotion, subtotal int64, now time.Time) Evaluation {
	if !promo.IsActive {
		return Evaluation{Reason: domain.PromotionInactive}
	}
	if !promo.StartsAt.IsZero() && now.Before(promo.StartsAt) {
		return Evaluation{Reason: domain.PromotionNotStarted}
	}
	if !promo.EndsAt.IsZero() && now.After(promo.EndsAt) {
		return Evaluation{Reason: domain.PromotionExpired}
	}
	if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
		return Evaluation{Reason: domain.PromotionUsageExhausted}
	}
	if promo.MinOrderAmount != nil && subtotal < *promo.MinOrderAmount {
		return Evaluation{Reason: domain.PromotionMinOrderNotMet}
	}

	var discount int64
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		discount = domain.PercentOf(subtotal, promo.Discount)
	case domain.DiscountFixed:
		discount = domain.RoundHalfUp(promo.Discount)
	default:
		return Evaluation{Reason: domain.PromotionInactive}
	}

	if promo.MaxDiscountAmount != nil && discount > *promo.MaxDiscountAmount {
		discount = *promo.MaxDiscountAmount
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}

	return Evaluation{Eligible: true, Discount: discount, Reason: domain.PromotionApplied}
}

// Redeem consumes one usage of the promotion. The repository performs the
// UsedCount guard and increment in a single transaction.
func (s *promotionService) Redeem(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("promotion service: code is required")
	}
	if _, err := s.promotions.RedeemUsage(ctx, code); err != nil {
		if errors.Is(err, repositories.ErrPromotionUsageExhausted) {
			return err
		}
		return fmt.Errorf("redeem promotion %s: %w", code, err)
	}
	return nil
}
