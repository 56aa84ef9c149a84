package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/printworks/api/internal/domain"
	pfirestore "github.com/printworks/api/internal/platform/firestore"
	"github.com/printworks/api/internal/repositories"
)

const promotionsCollection = "promotions"

// PromotionRepository implements repositories.PromotionRepository. Documents
// are keyed by promotion code.
type PromotionRepository struct {
	provider   *pfirestore.Provider
	promotions *pfirestore.BaseRepository[domain.Promotion]
}

// NewPromotionRepository constructs a Firestore-backed promotion repository.
func NewPromotionRepository(provider *pfirestore.Provider) (*PromotionRepository, error) {
	if provider == nil {
		return nil, errors.New("promotion repository requires firestore provider")
	}
	return &PromotionRepository{
		provider:   provider,
		promotions: pfirestore.NewBaseRepository[domain.Promotion](provider, promotionsCollection, nil, nil),
	}, nil
}

// FindByCode loads one promotion document.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (domain.Promotion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Promotion{}, errors.New("promotion repository: code is required")
	}

	doc, err := r.promotions.Get(ctx, code)
	if err != nil {
		return domain.Promotion{}, err
	}
	return doc.Data, nil
}

// RedeemUsage increments usedCount while it stays within the usage limit.
// The guard and the increment run in one transaction, so the counter can
// never pass the limit regardless of concurrent redemptions.
func (r *PromotionRepository) RedeemUsage(ctx context.Context, code string) (domain.Promotion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Promotion{}, errors.New("promotion repository: code is required")
	}

	var redeemed domain.Promotion
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.promotions.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var promo domain.Promotion
		if err := snapshot.DataTo(&promo); err != nil {
			return err
		}
		if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
			return repositories.ErrPromotionUsageExhausted
		}

		promo.UsedCount++
		if err := tx.Set(ref, promo); err != nil {
			return err
		}
		redeemed = promo
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrPromotionUsageExhausted) {
			return domain.Promotion{}, repositories.ErrPromotionUsageExhausted
		}
		return domain.Promotion{}, pfirestore.WrapError("promotions.redeem", err)
	}
	return redeemed, nil
}
