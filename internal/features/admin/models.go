// Package admin реализует команды администратора: список админов,
// особые цены, установку баланса и чёрный список.
// models.go описывает попытки входа и ограничения пароля первичной настройки.
package admin

import (
	"errors"
	"time"
)

// LoginAttempt — попытка ввода пароля (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      string    `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// Лимит неудачных попыток
const (
	MaxFailedAttempts = 3
	AttemptWindow     = time.Hour
)

// ErrNotSpecialBox — особую цену можно задать только особой категории.
var ErrNotSpecialBox = errors.New("категория не является особой")
