package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/printworks/api/internal/domain"
	pfirestore "github.com/printworks/api/internal/platform/firestore"
)

const productsCollection = "products"

// CatalogRepository implements repositories.CatalogRepository over the
// products collection. Products are treated as immutable inputs; catalog
// management writes them through a separate admin surface.
type CatalogRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.Product]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[domain.Product](provider, productsCollection, nil, nil),
	}, nil
}

// GetProduct loads and validates one product definition. Malformed catalog
// data is rejected here rather than priced inconsistently downstream.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	product := doc.Data
	if product.ID == "" {
		product.ID = doc.ID
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, fmt.Errorf("catalog repository: product %s: %w", id, err)
	}
	return product, nil
}

func validateProduct(product domain.Product) error {
	switch product.Method {
	case domain.PricingMethodFlat:
	case domain.PricingMethodTier:
		seen := make(map[int]bool, len(product.Tiers))
		for _, tier := range product.Tiers {
			if tier.MinQty < 0 {
				return fmt.Errorf("tier minQty %d is negative", tier.MinQty)
			}
			if seen[tier.MinQty] {
				return fmt.Errorf("duplicate tier minQty %d", tier.MinQty)
			}
			seen[tier.MinQty] = true
		}
	case domain.PricingMethodArea:
		if product.Area == nil {
			return errors.New("area pricing configuration missing")
		}
		if product.Area.SqFtPerUnit <= 0 {
			return errors.New("area sqFtPerUnit must be positive")
		}
	default:
		return fmt.Errorf("unknown pricing method %q", product.Method)
	}
	return nil
}
