package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
)

// Repository читает инвентарь.
type Repository struct {
	db postgres.Querier
}

// NewRepository создаёт репозиторий инвентаря.
func NewRepository(db postgres.Querier) *Repository {
	return &Repository{db: db}
}

// List возвращает инвентарь участника, упорядоченный по категории и имени.
func (r *Repository) List(ctx context.Context, groupID, userID string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT group_id, user_id, category_id, item_name, count
		FROM inventory
		WHERE group_id = $1 AND user_id = $2 AND count > 0
		ORDER BY category_id, item_name
	`, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.GroupID, &e.UserID, &e.CategoryID, &e.ItemName, &e.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования инвентаря: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Add увеличивает количество приза. Вызывается внутри транзакции открытия или покупки.
func Add(ctx context.Context, q postgres.Querier, groupID, userID, categoryID, itemName string, count int) error {
	if count <= 0 {
		return common.ErrInvalidInput
	}
	_, err := q.Exec(ctx, `
		INSERT INTO inventory (group_id, user_id, category_id, item_name, count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, user_id, category_id, item_name)
		DO UPDATE SET count = inventory.count + EXCLUDED.count
	`, groupID, userID, categoryID, itemName, count)
	if err != nil {
		return fmt.Errorf("ошибка пополнения инвентаря: %w", err)
	}
	return nil
}

// Consume списывает count штук, только если их хватает. Строка с нулём удаляется.
func Consume(ctx context.Context, q postgres.Querier, groupID, userID, categoryID, itemName string, count int) error {
	if count <= 0 {
		return common.ErrInvalidInput
	}

	var left int
	err := q.QueryRow(ctx, `
		UPDATE inventory SET count = count - $5
		WHERE group_id = $1 AND user_id = $2 AND category_id = $3 AND item_name = $4 AND count >= $5
		RETURNING count
	`, groupID, userID, categoryID, itemName, count).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrInsufficientQuantity
	}
	if err != nil {
		return fmt.Errorf("ошибка списания из инвентаря: %w", err)
	}

	if left == 0 {
		if _, err := q.Exec(ctx, `
			DELETE FROM inventory
			WHERE group_id = $1 AND user_id = $2 AND category_id = $3 AND item_name = $4 AND count = 0
		`, groupID, userID, categoryID, itemName); err != nil {
			return fmt.Errorf("ошибка удаления строки инвентаря: %w", err)
		}
	}
	return nil
}
