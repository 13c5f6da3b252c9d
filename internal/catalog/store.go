package catalog

import (
	"context"
	"errors"
	"time"

	"pricehound/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open connects to MySQL and migrates the catalog schema. Both binaries go
// through here so they agree on the schema; the handle's lifecycle is owned
// by the caller.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.Merchant{},
		&model.Product{},
		&model.Sku{},
		&model.Offer{},
		&model.Click{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// GormStore is the MySQL-backed catalog store. It implements the
// reconciler's Store plus the read queries the API serves.
type GormStore struct {
	db *gorm.DB
}

// NewStore wraps an open database handle.
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) MerchantBySlug(ctx context.Context, slug string) (*model.Merchant, error) {
	var m model.Merchant
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) CreateMerchant(ctx context.Context, m *model.Merchant) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *GormStore) RenameMerchant(ctx context.Context, id uint, name string) error {
	return s.db.WithContext(ctx).Model(&model.Merchant{}).Where("id = ?", id).Update("name", name).Error
}

func (s *GormStore) ProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) CreateProduct(ctx context.Context, p *model.Product) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) UpdateProductInfo(ctx context.Context, id uint, brand, mdl, season, category string) error {
	return s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"brand":    brand,
		"model":    mdl,
		"season":   season,
		"category": category,
	}).Error
}

func (s *GormStore) SkuByIdentity(ctx context.Context, productID uint, gtin string) (*model.Sku, error) {
	var sku model.Sku
	// The no-GTIN identity is the product's single empty-gtin sku; matching
	// on variant alone would also catch skus that do carry a GTIN.
	q := s.db.WithContext(ctx).Where("product_id = ? AND gtin = ?", productID, gtin)
	if err := q.First(&sku).Error; err != nil {
		return nil, translate(err)
	}
	return &sku, nil
}

func (s *GormStore) CreateSku(ctx context.Context, sku *model.Sku) error {
	return s.db.WithContext(ctx).Create(sku).Error
}

func (s *GormStore) OfferByPair(ctx context.Context, merchantID, skuID uint) (*model.Offer, error) {
	var o model.Offer
	if err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND sku_id = ?", merchantID, skuID).
		First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *GormStore) CreateOffer(ctx context.Context, o *model.Offer) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *GormStore) UpdateOffer(ctx context.Context, o *model.Offer) error {
	return s.db.WithContext(ctx).Model(&model.Offer{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
		"price_cents":    o.PriceCents,
		"shipping_cents": o.ShippingCents,
		"currency":       o.Currency,
		"in_stock":       o.InStock,
		"affiliate_url":  o.AffiliateURL,
		"last_seen":      o.LastSeen,
	}).Error
}

// DemoteStaleOffers flips every in-stock offer whose lastSeen is strictly
// older than the run watermark to out-of-stock. Offers are never deleted;
// the next run that resights the pair promotes them again.
func (s *GormStore) DemoteStaleOffers(ctx context.Context, watermark time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Offer{}).
		Where("in_stock = ? AND last_seen < ?", true, watermark).
		Update("in_stock", false)
	return res.RowsAffected, res.Error
}
