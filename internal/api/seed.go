package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pricehound/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedProduct struct {
	Brand    string
	Model    string
	Season   string
	Category string
	Slug     string
}

var seedMerchants = []model.Merchant{
	{Name: "Ekosport", Slug: "ekosport", Network: "kwanko", Status: "active"},
	{Name: "Snowleader", Slug: "snowleader", Network: "sovrn", Status: "active"},
	{Name: "Glisshop", Slug: "glisshop", Network: "kwanko", Status: "active"},
}

var seedProducts = []seedProduct{
	{"Atomic", "Bent 100", "2025/26", "skis-all-mountain", "atomic-bent-100-2025-26"},
	{"Salomon", "QST 98", "2025/26", "skis-all-mountain", "salomon-qst-98-2025-26"},
	{"Rossignol", "Experience 82 Ti", "2025/26", "skis-all-mountain", "rossignol-experience-82-ti-2025-26"},
	{"Dynastar", "M-Pro 90", "2025/26", "skis-all-mountain", "dynastar-m-pro-90-2025-26"},
	{"Black Crows", "Camox", "2025/26", "skis-all-mountain", "black-crows-camox-2025-26"},
	{"Elan", "Ripstick 96", "2025/26", "skis-all-mountain", "elan-ripstick-96-2025-26"},
	{"Head", "Kore 93", "2025/26", "skis-all-mountain", "head-kore-93-2025-26"},
	{"Faction", "Dancer 2", "2025/26", "skis-all-mountain", "faction-dancer-2-2025-26"},
	{"K2", "Mindbender 99 Ti", "2025/26", "skis-all-mountain", "k2-mindbender-99-ti-2025-26"},
	{"Nordica", "Enforcer 94", "2025/26", "skis-all-mountain", "nordica-enforcer-94-2025-26"},
}

// SeedDemoData populates a demo catalog: three merchants, ten ski
// products with two length variants each and one offer per merchant.
// Prices are deterministic so reruns leave the catalog unchanged.
func SeedDemoData(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	now := time.Now()

	merchants := make(map[string]*model.Merchant, len(seedMerchants))
	for i := range seedMerchants {
		m := seedMerchants[i]
		if err := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&m).Error; err != nil {
			return fmt.Errorf("seed merchant %s: %w", m.Slug, err)
		}
		if m.ID == 0 {
			if err := db.WithContext(ctx).Where("slug = ?", m.Slug).First(&m).Error; err != nil {
				return fmt.Errorf("load merchant %s: %w", m.Slug, err)
			}
		}
		merchants[m.Slug] = &m
	}

	for i, sp := range seedProducts {
		p := model.Product{
			Slug:     sp.Slug,
			Brand:    sp.Brand,
			Model:    sp.Model,
			Season:   sp.Season,
			Category: sp.Category,
		}
		if err := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&p).Error; err != nil {
			return fmt.Errorf("seed product %s: %w", sp.Slug, err)
		}
		if p.ID == 0 {
			if err := db.WithContext(ctx).Where("slug = ?", sp.Slug).First(&p).Error; err != nil {
				return fmt.Errorf("load product %s: %w", sp.Slug, err)
			}
		}

		base := int64(399 + (i*25)%250)

		for _, variant := range []string{"172 cm", "180 cm"} {
			length := strings.Fields(variant)[0]
			sku := model.Sku{
				ProductID: p.ID,
				Variant:   variant,
				GTIN:      fmt.Sprintf("%s-%s", sp.Slug, length),
			}
			if err := db.WithContext(ctx).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&sku).Error; err != nil {
				return fmt.Errorf("seed sku %s: %w", sku.GTIN, err)
			}
			if sku.ID == 0 {
				if err := db.WithContext(ctx).
					Where("product_id = ? AND gtin = ?", p.ID, sku.GTIN).
					First(&sku).Error; err != nil {
					return fmt.Errorf("load sku %s: %w", sku.GTIN, err)
				}
			}

			for _, o := range []struct {
				merchant string
				price    int64
				shipping int64
			}{
				{"ekosport", base, 0},
				{"snowleader", base + 10, 1500},
				{"glisshop", base - 5, 990},
			} {
				m := merchants[o.merchant]
				shipping := o.shipping
				offer := model.Offer{
					MerchantID:    m.ID,
					SkuID:         sku.ID,
					PriceCents:    o.price * 100,
					ShippingCents: &shipping,
					Currency:      "EUR",
					InStock:       true,
					AffiliateURL:  fmt.Sprintf("https://example.com/%s/%s", o.merchant, sp.Slug),
					LastSeen:      now,
				}
				if err := db.WithContext(ctx).
					Clauses(clause.OnConflict{
						DoUpdates: clause.AssignmentColumns([]string{"price_cents", "shipping_cents", "affiliate_url", "in_stock", "last_seen"}),
					}).
					Create(&offer).Error; err != nil {
					return fmt.Errorf("seed offer %s/%s: %w", o.merchant, sku.GTIN, err)
				}
			}
		}
	}

	logger.Info("demo catalog seeded",
		slog.Int("merchants", len(seedMerchants)),
		slog.Int("products", len(seedProducts)),
	)
	return nil
}
