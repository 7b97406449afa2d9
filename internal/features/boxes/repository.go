package boxes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
)

// Repository хранит состояние категорий в category_states.
type Repository struct {
	db postgres.DB
}

// NewRepository создаёт репозиторий состояний.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// EnsureState создаёт состояние категории или сбрасывает его, если сигнатура изменилась.
func (r *Repository) EnsureState(ctx context.Context, cat *catalog.Category) error {
	full := FullState(cat)
	items, slots, err := encodeState(full)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO category_states (category_id, signature, remaining_items, remaining_slots)
		VALUES ($1, $2, $3::jsonb, $4::jsonb)
		ON CONFLICT (category_id) DO UPDATE
		SET signature = EXCLUDED.signature,
			remaining_items = EXCLUDED.remaining_items,
			remaining_slots = EXCLUDED.remaining_slots,
			updated_at = NOW()
		WHERE category_states.signature IS DISTINCT FROM EXCLUDED.signature
	`, full.CategoryID, full.Signature, items, slots)
	if err != nil {
		return fmt.Errorf("ошибка синхронизации состояния %s: %w", cat.ID, err)
	}
	return nil
}

// Reset возвращает категории полный набор призов и слотов.
func (r *Repository) Reset(ctx context.Context, cat *catalog.Category) (*State, error) {
	full := FullState(cat)
	if err := saveState(ctx, r.db, full); err != nil {
		return nil, err
	}
	return full, nil
}

// Get возвращает состояние категории. Отсутствующее состояние — пустой пул.
func (r *Repository) Get(ctx context.Context, categoryID string) (*State, error) {
	return scanState(r.db.QueryRow(ctx, `
		SELECT category_id, signature, remaining_items, remaining_slots
		FROM category_states
		WHERE category_id = $1
	`, categoryID), categoryID)
}

// RemainingCount возвращает количество оставшихся призов.
func (r *Repository) RemainingCount(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT jsonb_array_length(remaining_items) FROM category_states WHERE category_id = $1
	`, categoryID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения остатка %s: %w", categoryID, err)
	}
	return n, nil
}

// lock читает состояние с блокировкой строки.
func lock(ctx context.Context, q postgres.Querier, categoryID string) (*State, error) {
	st, err := scanState(q.QueryRow(ctx, `
		SELECT category_id, signature, remaining_items, remaining_slots
		FROM category_states
		WHERE category_id = $1
		FOR UPDATE
	`, categoryID), categoryID)
	if err != nil {
		return nil, err
	}
	if st.Signature == "" {
		return nil, common.ErrNotFound
	}
	return st, nil
}

// saveState записывает состояние целиком (upsert).
func saveState(ctx context.Context, q postgres.Querier, st *State) error {
	items, slots, err := encodeState(st)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO category_states (category_id, signature, remaining_items, remaining_slots)
		VALUES ($1, $2, $3::jsonb, $4::jsonb)
		ON CONFLICT (category_id) DO UPDATE
		SET signature = EXCLUDED.signature,
			remaining_items = EXCLUDED.remaining_items,
			remaining_slots = EXCLUDED.remaining_slots,
			updated_at = NOW()
	`, st.CategoryID, st.Signature, items, slots)
	if err != nil {
		return fmt.Errorf("ошибка сохранения состояния %s: %w", st.CategoryID, err)
	}
	return nil
}

func encodeState(st *State) (string, string, error) {
	items := st.Items
	if items == nil {
		items = []string{}
	}
	slots := st.Slots
	if slots == nil {
		slots = []int{}
	}
	rawItems, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("ошибка сериализации призов: %w", err)
	}
	rawSlots, err := json.Marshal(slots)
	if err != nil {
		return "", "", fmt.Errorf("ошибка сериализации слотов: %w", err)
	}
	return string(rawItems), string(rawSlots), nil
}

func scanState(row pgx.Row, categoryID string) (*State, error) {
	var (
		st                 State
		rawItems, rawSlots []byte
	)
	err := row.Scan(&st.CategoryID, &st.Signature, &rawItems, &rawSlots)
	if errors.Is(err, pgx.ErrNoRows) {
		return &State{CategoryID: categoryID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения состояния %s: %w", categoryID, err)
	}
	if err := json.Unmarshal(rawItems, &st.Items); err != nil {
		return nil, fmt.Errorf("ошибка разбора призов %s: %w", categoryID, err)
	}
	if err := json.Unmarshal(rawSlots, &st.Slots); err != nil {
		return nil, fmt.Errorf("ошибка разбора слотов %s: %w", categoryID, err)
	}
	return &st, nil
}

// RemainingItems возвращает неоткрытые призы категории.
func (r *Repository) RemainingItems(ctx context.Context, categoryID string) ([]string, error) {
	st, err := r.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return st.Items, nil
}
