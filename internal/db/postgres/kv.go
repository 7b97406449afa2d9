package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// KV — строковое хранилище ключ-значение поверх таблицы system_kv.
// Здесь живут дневные множители рынка, отметки кулдауна и дата последнего подарка.
type KV struct {
	db Querier
}

// NewKV создаёт хранилище поверх пула или транзакции.
func NewKV(db Querier) *KV {
	return &KV{db: db}
}

// Get возвращает значение и признак его наличия.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	return GetKV(ctx, k.db, key)
}

// Set записывает значение (upsert).
func (k *KV) Set(ctx context.Context, key, value string) error {
	return SetKV(ctx, k.db, key, value)
}

// GetOrCreate записывает value, только если ключа ещё нет, и возвращает сохранённое значение.
// Одновременные вызовы получают одно и то же значение: выигрывает первая запись.
func (k *KV) GetOrCreate(ctx context.Context, key, value string) (string, error) {
	query := `
		INSERT INTO system_kv (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET k = EXCLUDED.k
		RETURNING v
	`
	var stored string
	if err := k.db.QueryRow(ctx, query, key, value).Scan(&stored); err != nil {
		return "", fmt.Errorf("ошибка записи ключа %s: %w", key, err)
	}
	return stored, nil
}

// GetKV читает ключ через произвольный Querier (например, внутри транзакции).
func GetKV(ctx context.Context, q Querier, key string) (string, bool, error) {
	var v string
	err := q.QueryRow(ctx, `SELECT v FROM system_kv WHERE k = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return v, true, nil
}

// SetKV записывает ключ через произвольный Querier.
func SetKV(ctx context.Context, q Querier, key, value string) error {
	query := `
		INSERT INTO system_kv (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("ошибка записи ключа %s: %w", key, err)
	}
	return nil
}

// SwapKV записывает value, только если текущее значение отличается.
// Возвращает true, если запись произошла: так ежедневные действия выполняются не больше раза.
func SwapKV(ctx context.Context, q Querier, key, value string) (bool, error) {
	query := `
		INSERT INTO system_kv (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = NOW()
		WHERE system_kv.v IS DISTINCT FROM EXCLUDED.v
	`
	tag, err := q.Exec(ctx, query, key, value)
	if err != nil {
		return false, fmt.Errorf("ошибка обновления ключа %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}
