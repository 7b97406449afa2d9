package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// AdvisoryXactLock берёт транзакционную advisory-блокировку по строковому ключу.
// Блокировка снимается при фиксации или откате транзакции.
func AdvisoryXactLock(ctx context.Context, q Querier, key string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, LockID(key)); err != nil {
		return fmt.Errorf("ошибка advisory-блокировки %s: %w", key, err)
	}
	return nil
}

// LockID превращает ключ в положительный int64 (первые 8 байт SHA-256).
func LockID(key string) int64 {
	h := sha256.Sum256([]byte(key))
	return int64(binary.BigEndian.Uint64(h[:8]) & 0x7FFFFFFFFFFFFFFF)
}
