// Package postgres — queries.go содержит общие интерфейсы доступа к БД
// и помощник для выполнения кода в транзакции.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// Querier — общее подмножество *pgxpool.Pool и pgx.Tx.
// Репозитории принимают его, чтобы одни и те же запросы работали и в транзакции, и без неё.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB — пул соединений с возможностью открыть транзакцию.
// Реализуется *pgxpool.Pool и pgxmock.PgxPoolIface.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx выполняет fn в транзакции.
// Ошибка fn откатывает транзакцию; успех фиксирует её.
func WithTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.WithError(rbErr).Warn("Ошибка отката транзакции")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}
