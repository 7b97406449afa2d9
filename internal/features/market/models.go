// Package market реализует рынок группы: обзор цен, лоты участников,
// ежедневные системные лоты и покупку.
package market

import (
	"time"

	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
)

// SystemSeller — продавец системных лотов.
const SystemSeller = "system"

// SystemListingsPerDay — сколько системных лотов выставляется в группе за день.
const SystemListingsPerDay = 3

// MaxListingPrice — верхняя граница цены лота за штуку (CHECK в market_listings).
const MaxListingPrice int64 = 1_000_000_000

// Listing — лот на рынке группы.
type Listing struct {
	ID           int64     `db:"id"`
	GroupID      string    `db:"group_id"`
	CategoryID   string    `db:"category_id"`
	ItemID       string    `db:"item_id"`
	ItemName     string    `db:"item_name"`
	Price        int64     `db:"price"`    // Цена за штуку, > 0
	Quantity     int       `db:"quantity"` // Лоты с нулём удаляются
	SellerUserID string    `db:"seller_user_id"`
	IsSystem     bool      `db:"is_system"`
	DayKey       string    `db:"day_key"` // День UTC+8 для системных лотов
	CreatedAt    time.Time `db:"created_at"`
}

// CategorySummary — строка обзора рынка.
type CategorySummary struct {
	Category  *catalog.Category
	Remaining int
	MinPrice  int64 // 0, если ни одна цена не определена
	MaxPrice  int64
}

// Overview — обзор рынка группы.
type Overview struct {
	Categories  []CategorySummary
	SystemCount int
}

// ItemQuote — цена одного приза в обзоре категории.
type ItemQuote struct {
	Item  *catalog.Item
	Quote pricing.Quote
	Drawn bool // Приз уже открыт в текущем цикле
}

// CategoryView — подробный обзор категории.
type CategoryView struct {
	Category  *catalog.Category
	Remaining int
	Items     []ItemQuote
	Listings  []Listing
}

// Purchase — итог покупки.
type Purchase struct {
	Listing  Listing
	Quantity int
	Cost     int64
	Balance  int64
}
