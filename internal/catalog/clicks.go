package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pricehound/internal/model"
)

// ClickRow is one exported click with its joined context, newest first.
type ClickRow struct {
	CreatedAt         time.Time
	Merchant          string
	Product           string
	ProductSlug       string
	PriceCentsAtClick int64
	Currency          string
	IP                string
	UserAgent         string
}

// RecordClick verifies the offer belongs to the named merchant, snapshots
// price and currency, stores the click and returns the affiliate URL to
// forward to.
func (s *GormStore) RecordClick(ctx context.Context, merchantSlug string, offerID uint, ip, userAgent string) (string, error) {
	var offer model.Offer
	if err := s.db.WithContext(ctx).Preload("Merchant").First(&offer, offerID).Error; err != nil {
		return "", translate(err)
	}
	if offer.Merchant.Slug != merchantSlug {
		return "", ErrNotFound
	}

	click := model.Click{
		OfferID:           offer.ID,
		PriceCentsAtClick: offer.PriceCents,
		CurrencyAtClick:   offer.Currency,
		IP:                ip,
		UserAgent:         userAgent,
	}
	if err := s.db.WithContext(ctx).Create(&click).Error; err != nil {
		return "", fmt.Errorf("record click: %w", err)
	}
	return offer.AffiliateURL, nil
}

// RecentClicks returns up to limit clicks, newest first, with merchant and
// product context resolved for the export.
func (s *GormStore) RecentClicks(ctx context.Context, limit int) ([]ClickRow, error) {
	if limit <= 0 {
		limit = 5000
	}
	if limit > 10000 {
		limit = 10000
	}

	var clicks []model.Click
	err := s.db.WithContext(ctx).
		Preload("Offer.Merchant").
		Preload("Offer.Sku.Product").
		Order("created_at DESC").
		Limit(limit).
		Find(&clicks).Error
	if err != nil {
		return nil, fmt.Errorf("load clicks: %w", err)
	}

	rows := make([]ClickRow, 0, len(clicks))
	for _, c := range clicks {
		p := c.Offer.Sku.Product
		currency := c.CurrencyAtClick
		if currency == "" {
			currency = "EUR"
		}
		rows = append(rows, ClickRow{
			CreatedAt:         c.CreatedAt,
			Merchant:          c.Offer.Merchant.Name,
			Product:           productLabel(p),
			ProductSlug:       p.Slug,
			PriceCentsAtClick: c.PriceCentsAtClick,
			Currency:          currency,
			IP:                c.IP,
			UserAgent:         c.UserAgent,
		})
	}
	return rows, nil
}

func productLabel(p model.Product) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Brand, p.Model, p.Season} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
