package model

import (
	"time"
)

// Merchant is a selling partner whose feed we ingest.
//
// The slug is derived deterministically from the display name and acts as the
// natural key: re-ingesting the same merchant always resolves to the same row.
type Merchant struct {
	ID        uint      `gorm:"primaryKey"` // internal ID
	CreatedAt time.Time // first sighting
	UpdatedAt time.Time // last update

	Name    string `gorm:"not null"`                               // display name (mutable)
	Slug    string `gorm:"type:varchar(191);uniqueIndex;not null"` // natural key
	Network string // affiliate network tag (e.g. "kwanko")
	Status  string `gorm:"default:active"` // "active" / "paused"
}

// Product is one sellable item (one model/season).
//
// The slug is derived from brand + model + season and is stable across runs:
// identity never changes after creation, only the descriptive fields do.
type Product struct {
	ID        uint      `gorm:"primaryKey"` // internal ID
	CreatedAt time.Time // first sighting
	UpdatedAt time.Time // last update

	Slug     string `gorm:"type:varchar(191);uniqueIndex;not null"` // natural key
	Brand    string // brand display name
	Model    string // model display name
	Season   string // e.g. "2025/26", empty when the feed carries none
	Category string `gorm:"index"` // category slug

	Skus []Sku // owned variants
}

// Sku is a purchasable variant of a Product.
//
// Identity within a product is the GTIN when the feed carries one, otherwise
// the synthetic "default" variant. A Sku always belongs to exactly one
// Product.
type Sku struct {
	ID        uint      `gorm:"primaryKey"` // internal ID
	CreatedAt time.Time // first sighting
	UpdatedAt time.Time // last update

	ProductID uint    `gorm:"not null;uniqueIndex:idx_skus_product_gtin"` // owning product
	Product   Product `gorm:"foreignKey:ProductID"`
	Variant   string  // variant label; "default" for the catch-all sku, empty when the GTIN identifies it
	GTIN      string  `gorm:"type:varchar(191);uniqueIndex:idx_skus_product_gtin;column:gtin"` // barcode, empty when absent
}

// Offer is one merchant's price/availability for one Sku.
//
// At most one live offer exists per (merchant, sku) pair; the pipeline only
// ever inserts or mutates offers in place, it never deletes them. LastSeen is
// bumped every time the pair is reconfirmed and is what the staleness sweep
// compares against the run watermark.
type Offer struct {
	ID        uint      `gorm:"primaryKey"` // internal ID
	CreatedAt time.Time // first sighting
	UpdatedAt time.Time // last update

	MerchantID uint     `gorm:"not null;uniqueIndex:idx_offers_merchant_sku"` // selling merchant
	Merchant   Merchant `gorm:"foreignKey:MerchantID"`
	SkuID      uint     `gorm:"not null;uniqueIndex:idx_offers_merchant_sku"` // offered variant
	Sku        Sku      `gorm:"foreignKey:SkuID"`

	PriceCents    int64     `gorm:"not null"` // price in minor currency units
	ShippingCents *int64    // shipping in minor units, nil when the feed carried none
	Currency      string    `gorm:"type:varchar(3);default:EUR"` // ISO currency code
	InStock       bool      `gorm:"default:true"`                // stock flag, demoted by the sweep
	AffiliateURL  string    `gorm:"type:text;not null"`          // outbound deeplink
	LastSeen      time.Time `gorm:"index"`                       // last reconfirmation
}

// Click records one redirect through /go/:merchant/:offerID.
//
// Price and currency are snapshotted at click time so the history stays
// meaningful after later price updates.
type Click struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	OfferID uint  `gorm:"not null;index"`
	Offer   Offer `gorm:"foreignKey:OfferID"`

	PriceCentsAtClick int64  // offer price when the click happened
	CurrencyAtClick   string `gorm:"type:varchar(3)"`
	IP                string `gorm:"type:varchar(64)"`
	UserAgent         string `gorm:"type:varchar(512)"`
}
