// Package common — errors.go определяет ошибки предметной области,
// которые используются во всех модулях бота.
// Обработчики различают эти ошибки через errors.Is и отвечают
// пользователю понятным текстом.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Таксономия ошибок
var (
	// ErrIdentityUnresolvable — не удалось определить группу или пользователя
	ErrIdentityUnresolvable = errors.New("не удалось определить отправителя")
	// ErrNotRegistered — у пользователя нет кошелька в этой группе
	ErrNotRegistered = errors.New("пользователь не зарегистрирован")
	// ErrNotFound — неизвестная категория, предмет или лот
	ErrNotFound = errors.New("не найдено")
	// ErrInsufficientBalance — недостаточно средств
	ErrInsufficientBalance = errors.New("недостаточно средств")
	// ErrInsufficientQuantity — недостаточно предметов в инвентаре или в лоте
	ErrInsufficientQuantity = errors.New("недостаточное количество")
	// ErrInvalidInput — нечисловой или неположительный аргумент
	ErrInvalidInput = errors.New("некорректные данные")
	// ErrPoolExhausted — в категории не осталось предметов или слотов
	ErrPoolExhausted = errors.New("пул категории исчерпан")
	// ErrCooldownActive — повторное открытие раньше окончания кулдауна
	ErrCooldownActive = errors.New("кулдаун ещё не прошёл")
	// ErrUnauthorized — действие доступно только администраторам
	ErrUnauthorized = errors.New("нет прав администратора")
	// ErrBlacklisted — пользователь в чёрном списке
	ErrBlacklisted = errors.New("пользователь в чёрном списке")
	// ErrPriceUndetermined — базовая цена не задана (0)
	ErrPriceUndetermined = errors.New("цена не определена")
)

// Ошибки админки
var (
	// ErrWrongPassword — неверный пароль первичной настройки
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrFeatureDisabled — функция выключена в конфигурации
	ErrFeatureDisabled = errors.New("функция отключена")
)

// CooldownError сообщает, сколько ещё ждать до следующего открытия.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: осталось %s", ErrCooldownActive, e.Remaining)
}

// Is позволяет сравнивать через errors.Is(err, ErrCooldownActive).
func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }

// WaitSeconds — оставшееся время, округлённое вверх до секунд.
func (e *CooldownError) WaitSeconds() int64 {
	secs := int64(e.Remaining / time.Second)
	if e.Remaining%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// BalanceError — нехватка средств с суммами для ответа.
type BalanceError struct {
	Need    int64
	Balance int64
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s: нужно %d, есть %d", ErrInsufficientBalance, e.Need, e.Balance)
}

func (e *BalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// QuantityError — в лоте или инвентаре меньше, чем запрошено.
type QuantityError struct {
	Available int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("%s: доступно %d", ErrInsufficientQuantity, e.Available)
}

func (e *QuantityError) Is(target error) bool { return target == ErrInsufficientQuantity }
