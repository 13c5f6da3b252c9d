// Package catalog owns the canonical merchant/product/sku/offer store and
// the reconciliation of normalized feed records into it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricehound/internal/feed"
	"pricehound/internal/model"
	"pricehound/internal/pkg/slug"
)

// ErrNotFound is returned by Store lookups when no row matches.
var ErrNotFound = errors.New("catalog: not found")

// Store is the catalog surface the reconciler writes through. Identity
// resolution is read-then-write on purpose: each entity upsert is its own
// atomic unit so a partial run leaves a consistent prefix of writes.
type Store interface {
	MerchantBySlug(ctx context.Context, slug string) (*model.Merchant, error)
	CreateMerchant(ctx context.Context, m *model.Merchant) error
	RenameMerchant(ctx context.Context, id uint, name string) error

	ProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	// UpdateProductInfo refreshes the mutable descriptive fields; the slug
	// is identity and is never rewritten.
	UpdateProductInfo(ctx context.Context, id uint, brand, mdl, season, category string) error

	SkuByIdentity(ctx context.Context, productID uint, gtin string) (*model.Sku, error)
	CreateSku(ctx context.Context, s *model.Sku) error

	OfferByPair(ctx context.Context, merchantID, skuID uint) (*model.Offer, error)
	CreateOffer(ctx context.Context, o *model.Offer) error
	UpdateOffer(ctx context.Context, o *model.Offer) error
}

// Reconciler resolves normalized records into catalog rows and applies
// idempotent updates: the same input reconciled twice creates nothing the
// second time, it only advances lastSeen.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time // injectable clock for tests
}

// NewReconciler creates a reconciler writing through the given store.
func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile resolves/creates the Merchant, Product, Sku and Offer rows for
// one record. An error applies to this record only; the caller counts it as
// not kept and moves on.
func (r *Reconciler) Reconcile(ctx context.Context, rec *feed.Record) error {
	merchant, err := r.resolveMerchant(ctx, rec)
	if err != nil {
		return fmt.Errorf("resolve merchant: %w", err)
	}

	product, err := r.resolveProduct(ctx, rec)
	if err != nil {
		return fmt.Errorf("resolve product: %w", err)
	}

	sku, err := r.resolveSku(ctx, product.ID, rec.GTIN)
	if err != nil {
		return fmt.Errorf("resolve sku: %w", err)
	}

	if err := r.upsertOffer(ctx, merchant.ID, sku.ID, rec); err != nil {
		return fmt.Errorf("upsert offer: %w", err)
	}
	return nil
}

// resolveMerchant looks the merchant up by the slug of its display name,
// creating it on first sighting and keeping the display name current.
func (r *Reconciler) resolveMerchant(ctx context.Context, rec *feed.Record) (*model.Merchant, error) {
	s := slug.Make(rec.Merchant)
	m, err := r.store.MerchantBySlug(ctx, s)
	if errors.Is(err, ErrNotFound) {
		m = &model.Merchant{Name: rec.Merchant, Slug: s}
		if err := r.store.CreateMerchant(ctx, m); err != nil {
			return nil, err
		}
		r.logger.Info("merchant created", slog.String("slug", s))
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if m.Name != rec.Merchant {
		if err := r.store.RenameMerchant(ctx, m.ID, rec.Merchant); err != nil {
			return nil, err
		}
		m.Name = rec.Merchant
	}
	return m, nil
}

// resolveProduct looks the product up by its identity slug, creating it on
// first sighting and refreshing descriptive fields otherwise.
func (r *Reconciler) resolveProduct(ctx context.Context, rec *feed.Record) (*model.Product, error) {
	s := slug.ForProduct(rec.Brand, rec.Model, rec.Season)
	p, err := r.store.ProductBySlug(ctx, s)
	if errors.Is(err, ErrNotFound) {
		p = &model.Product{
			Slug:     s,
			Brand:    rec.Brand,
			Model:    rec.Model,
			Season:   rec.Season,
			Category: rec.Category,
		}
		if err := r.store.CreateProduct(ctx, p); err != nil {
			return nil, err
		}
		r.logger.Info("product created", slog.String("slug", s))
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Brand != rec.Brand || p.Model != rec.Model || p.Season != rec.Season || p.Category != rec.Category {
		if err := r.store.UpdateProductInfo(ctx, p.ID, rec.Brand, rec.Model, rec.Season, rec.Category); err != nil {
			return nil, err
		}
		p.Brand, p.Model, p.Season, p.Category = rec.Brand, rec.Model, rec.Season, rec.Category
	}
	return p, nil
}

// resolveSku finds the variant within the product's sku set: by GTIN when
// the record carries one, by the synthetic "default" variant otherwise.
func (r *Reconciler) resolveSku(ctx context.Context, productID uint, gtin string) (*model.Sku, error) {
	s, err := r.store.SkuByIdentity(ctx, productID, gtin)
	if errors.Is(err, ErrNotFound) {
		variant := ""
		if gtin == "" {
			variant = "default"
		}
		s = &model.Sku{ProductID: productID, GTIN: gtin, Variant: variant}
		if err := r.store.CreateSku(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// upsertOffer keys the offer on (merchant, sku). Every resighting overwrites
// price/shipping/currency/stock/URL and bumps lastSeen to now, which is what
// keeps the offer out of the end-of-run staleness sweep.
func (r *Reconciler) upsertOffer(ctx context.Context, merchantID, skuID uint, rec *feed.Record) error {
	now := r.now()
	o, err := r.store.OfferByPair(ctx, merchantID, skuID)
	if errors.Is(err, ErrNotFound) {
		return r.store.CreateOffer(ctx, &model.Offer{
			MerchantID:    merchantID,
			SkuID:         skuID,
			PriceCents:    rec.PriceCents,
			ShippingCents: rec.ShippingCents,
			Currency:      rec.Currency,
			InStock:       rec.InStock,
			AffiliateURL:  rec.AffiliateURL,
			LastSeen:      now,
		})
	}
	if err != nil {
		return err
	}

	o.PriceCents = rec.PriceCents
	o.ShippingCents = rec.ShippingCents
	o.Currency = rec.Currency
	o.InStock = rec.InStock
	o.AffiliateURL = rec.AffiliateURL
	if now.After(o.LastSeen) {
		o.LastSeen = now
	}
	return r.store.UpdateOffer(ctx, o)
}
