package testutil

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/blindbox-bot/internal/db/postgres"
)

// TxTracker оборачивает пул и отмечает, открыта ли сейчас транзакция.
// Заглушки зависимостей проверяют InTx, чтобы поймать обращение к пулу изнутри транзакции.
type TxTracker struct {
	postgres.DB
	open atomic.Int32
}

// NewTxTracker оборачивает db.
func NewTxTracker(db postgres.DB) *TxTracker {
	return &TxTracker{DB: db}
}

// InTx сообщает, есть ли незавершённая транзакция.
func (t *TxTracker) InTx() bool { return t.open.Load() > 0 }

// Begin открывает транзакцию и помечает её до Commit или Rollback.
func (t *TxTracker) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	t.open.Add(1)
	return &trackedTx{Tx: tx, owner: t}, nil
}

type trackedTx struct {
	pgx.Tx
	owner *TxTracker
	done  atomic.Bool
}

func (tx *trackedTx) Commit(ctx context.Context) error {
	tx.finish()
	return tx.Tx.Commit(ctx)
}

func (tx *trackedTx) Rollback(ctx context.Context) error {
	tx.finish()
	return tx.Tx.Rollback(ctx)
}

func (tx *trackedTx) finish() {
	if tx.done.CompareAndSwap(false, true) {
		tx.owner.open.Add(-1)
	}
}
