package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
)

const listingColumns = `id, group_id, category_id, item_id, item_name, price, quantity, seller_user_id, is_system, day_key, created_at`

// Repository работает с таблицей market_listings.
type Repository struct {
	db postgres.Querier
}

// NewRepository создаёт репозиторий рынка.
func NewRepository(db postgres.Querier) *Repository {
	return &Repository{db: db}
}

// List возвращает активные лоты группы.
// С категорией: системные первыми, затем по цене и ID. Без категории сначала сортировка по категории.
func (r *Repository) List(ctx context.Context, groupID, categoryID string) ([]Listing, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if categoryID != "" {
		rows, err = r.db.Query(ctx, `
			SELECT `+listingColumns+`
			FROM market_listings
			WHERE group_id = $1 AND category_id = $2 AND quantity > 0
			ORDER BY is_system DESC, price ASC, id ASC
		`, groupID, categoryID)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+listingColumns+`
			FROM market_listings
			WHERE group_id = $1 AND quantity > 0
			ORDER BY category_id, is_system DESC, price ASC, id ASC
		`, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения лотов: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// UserListingPrices возвращает цены активных лотов участников.
// Пустой itemID — все лоты категории.
func (r *Repository) UserListingPrices(ctx context.Context, groupID, categoryID, itemID string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT price FROM market_listings
		WHERE group_id = $1 AND category_id = $2 AND NOT is_system AND quantity > 0
			AND ($3 = '' OR item_id = $3)
		ORDER BY id
	`, groupID, categoryID, itemID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения цен лотов: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("ошибка сканирования цены: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountSystem возвращает количество системных лотов группы за день.
func (r *Repository) CountSystem(ctx context.Context, groupID, day string) (int, error) {
	return countSystem(ctx, r.db, groupID, day)
}

// PurgeExpiredSystem удаляет системные лоты прошлых дней во всех группах.
func (r *Repository) PurgeExpiredSystem(ctx context.Context, day string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM market_listings WHERE is_system AND day_key <> $1`, day)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки системных лотов: %w", err)
	}
	return tag.RowsAffected(), nil
}

func insertListing(ctx context.Context, q postgres.Querier, l *Listing) error {
	err := q.QueryRow(ctx, `
		INSERT INTO market_listings (group_id, category_id, item_id, item_name, price, quantity, seller_user_id, is_system, day_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, l.GroupID, l.CategoryID, l.ItemID, l.ItemName, l.Price, l.Quantity, l.SellerUserID, l.IsSystem, l.DayKey).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания лота: %w", err)
	}
	return nil
}

// pickForUpdate берёт первый подходящий лот в порядке рынка и блокирует его.
func pickForUpdate(ctx context.Context, q postgres.Querier, groupID, categoryID, itemName string) (*Listing, error) {
	l, err := scanListing(q.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM market_listings
		WHERE group_id = $1 AND category_id = $2 AND item_name = $3 AND quantity > 0
		ORDER BY is_system DESC, price ASC, id ASC
		LIMIT 1
		FOR UPDATE
	`, groupID, categoryID, itemName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return l, err
}

// consumeListing уменьшает количество лота, только если его хватает. Лот с нулём удаляется.
func consumeListing(ctx context.Context, q postgres.Querier, id int64, quantity int) error {
	var left int
	err := q.QueryRow(ctx, `
		UPDATE market_listings SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity
	`, id, quantity).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrInsufficientQuantity
	}
	if err != nil {
		return fmt.Errorf("ошибка списания лота: %w", err)
	}
	if left == 0 {
		if _, err := q.Exec(ctx, `DELETE FROM market_listings WHERE id = $1 AND quantity = 0`, id); err != nil {
			return fmt.Errorf("ошибка удаления лота: %w", err)
		}
	}
	return nil
}

func deleteExpiredSystem(ctx context.Context, q postgres.Querier, groupID, day string) error {
	_, err := q.Exec(ctx, `
		DELETE FROM market_listings WHERE group_id = $1 AND is_system AND day_key <> $2
	`, groupID, day)
	if err != nil {
		return fmt.Errorf("ошибка удаления устаревших системных лотов: %w", err)
	}
	return nil
}

func countSystem(ctx context.Context, q postgres.Querier, groupID, day string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM market_listings WHERE group_id = $1 AND is_system AND day_key = $2
	`, groupID, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта системных лотов: %w", err)
	}
	return n, nil
}

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.GroupID, &l.CategoryID, &l.ItemID, &l.ItemName, &l.Price,
		&l.Quantity, &l.SellerUserID, &l.IsSystem, &l.DayKey, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования лота: %w", err)
	}
	return &l, nil
}
