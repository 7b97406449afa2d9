// Package wallet — repository.go выполняет операции с таблицами wallets и wallet_transactions.
// Все денежные операции выполняются в транзакциях БД вместе с записью в журнал.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы с кошельками и журналом.
type Repository struct {
	db postgres.DB
}

// NewRepository создаёт новый репозиторий кошельков.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Create создаёт кошелёк с начальным балансом.
// Если кошелёк уже есть, возвращает его без изменений и created=false.
func (r *Repository) Create(ctx context.Context, groupID, userID string, initial int64) (*Wallet, bool, error) {
	var (
		w       = Wallet{GroupID: groupID, UserID: userID}
		created bool
	)

	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO wallets (group_id, user_id, balance)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_id, user_id) DO NOTHING
			RETURNING balance, registered_at
		`, groupID, userID, initial).Scan(&w.Balance, &w.RegisteredAt)
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := Lock(ctx, tx, groupID, userID)
			if getErr != nil {
				return getErr
			}
			w = *existing
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка создания кошелька: %w", err)
		}
		created = true
		return appendLedger(ctx, tx, groupID, userID, initial, KindRegister, "初始余额")
	})
	if err != nil {
		return nil, false, err
	}
	return &w, created, nil
}

// Get возвращает кошелёк или common.ErrNotRegistered.
func (r *Repository) Get(ctx context.Context, groupID, userID string) (*Wallet, error) {
	return scanWallet(r.db.QueryRow(ctx, `
		SELECT group_id, user_id, balance, registered_at
		FROM wallets
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID))
}

// SetBalance принудительно устанавливает баланс и пишет разницу в журнал.
func (r *Repository) SetBalance(ctx context.Context, groupID, userID string, amount int64) (int64, error) {
	var previous int64
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		w, err := Lock(ctx, tx, groupID, userID)
		if err != nil {
			return err
		}
		previous = w.Balance

		if _, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = $3, updated_at = NOW()
			WHERE group_id = $1 AND user_id = $2
		`, groupID, userID, amount); err != nil {
			return fmt.Errorf("ошибка установки баланса: %w", err)
		}
		return appendLedger(ctx, tx, groupID, userID, amount-previous, KindAdminSet, fmt.Sprintf("%d → %d", previous, amount))
	})
	return previous, err
}

// GrantDaily начисляет amount всем кошелькам, если за день day подарок ещё не выдавался.
// Отметка даты и начисление выполняются в одной транзакции.
func (r *Repository) GrantDaily(ctx context.Context, day string, amount int64) (bool, int64, error) {
	var (
		granted  bool
		affected int64
	)
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		claimed, err := postgres.SwapKV(ctx, tx, DailyGiftKey, day)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		tag, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $1, updated_at = NOW()`, amount)
		if err != nil {
			return fmt.Errorf("ошибка начисления подарка: %w", err)
		}
		affected = tag.RowsAffected()

		if _, err := tx.Exec(ctx, `
			INSERT INTO wallet_transactions (group_id, user_id, amount, kind, description)
			SELECT group_id, user_id, $1, $2, $3 FROM wallets
		`, amount, KindDailyGift, day); err != nil {
			return fmt.Errorf("ошибка записи журнала подарка: %w", err)
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return granted, affected, nil
}

// ListTransactions возвращает последние limit операций кошелька.
func (r *Repository) ListTransactions(ctx context.Context, groupID, userID string, limit int) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, group_id, user_id, amount, kind, description, created_at
		FROM wallet_transactions
		WHERE group_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, groupID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения операций: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.GroupID, &t.UserID, &t.Amount, &t.Kind, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования операции: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Lock читает кошелёк с блокировкой строки (SELECT ... FOR UPDATE).
// Используется другими модулями внутри их транзакций.
func Lock(ctx context.Context, q postgres.Querier, groupID, userID string) (*Wallet, error) {
	return scanWallet(q.QueryRow(ctx, `
		SELECT group_id, user_id, balance, registered_at
		FROM wallets
		WHERE group_id = $1 AND user_id = $2
		FOR UPDATE
	`, groupID, userID))
}

// Debit списывает amount, только если баланса хватает, и пишет журнал.
// Возвращает новый баланс.
func Debit(ctx context.Context, q postgres.Querier, groupID, userID string, amount int64, kind, description string) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE wallets SET balance = balance - $3, updated_at = NOW()
		WHERE group_id = $1 AND user_id = $2 AND balance >= $3
		RETURNING balance
	`, groupID, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}
	if err := appendLedger(ctx, q, groupID, userID, -amount, kind, description); err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit начисляет amount на существующий кошелёк и пишет журнал.
func Credit(ctx context.Context, q postgres.Querier, groupID, userID string, amount int64, kind, description string) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE wallets SET balance = balance + $3, updated_at = NOW()
		WHERE group_id = $1 AND user_id = $2
		RETURNING balance
	`, groupID, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrNotRegistered
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}
	if err := appendLedger(ctx, q, groupID, userID, amount, kind, description); err != nil {
		return 0, err
	}
	return balance, nil
}

func appendLedger(ctx context.Context, q postgres.Querier, groupID, userID string, amount int64, kind, description string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO wallet_transactions (group_id, user_id, amount, kind, description)
		VALUES ($1, $2, $3, $4, $5)
	`, groupID, userID, amount, kind, description)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала: %w", err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.GroupID, &w.UserID, &w.Balance, &w.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения кошелька: %w", err)
	}
	return &w, nil
}
