// Package wallet — service.go содержит бизнес-логику кошельков:
// регистрация, баланс, история, установка баланса и ежедневный подарок.
package wallet

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
	"serotonyl.ru/blindbox-bot/internal/metrics"
)

// historyLimit — сколько операций показывать в истории.
const historyLimit = 10

// Service управляет кошельками.
type Service struct {
	repo    *Repository
	kv      *postgres.KV
	runtime config.RuntimeSource
	now     func() time.Time
}

// NewService создаёт сервис кошельков.
func NewService(repo *Repository, kv *postgres.KV, runtime config.RuntimeSource) *Service {
	return &Service{
		repo:    repo,
		kv:      kv,
		runtime: runtime,
		now:     time.Now,
	}
}

// Register создаёт кошелёк с initial_balance.
// Повторная регистрация ничего не меняет и возвращает created=false.
func (s *Service) Register(ctx context.Context, id common.Identity) (*Wallet, bool, error) {
	initial := s.runtime.Settings().InitialBalance
	w, created, err := s.repo.Create(ctx, id.GroupID, id.UserID, initial)
	if err != nil {
		return nil, false, err
	}
	if created {
		log.WithFields(log.Fields{
			"group_id": id.GroupID,
			"user_id":  id.UserID,
			"balance":  w.Balance,
		}).Info("Кошелёк зарегистрирован")
	}
	return w, created, nil
}

// Get возвращает кошелёк или common.ErrNotRegistered.
func (s *Service) Get(ctx context.Context, groupID, userID string) (*Wallet, error) {
	return s.repo.Get(ctx, groupID, userID)
}

// Balance возвращает текущий баланс.
func (s *Service) Balance(ctx context.Context, id common.Identity) (int64, error) {
	w, err := s.repo.Get(ctx, id.GroupID, id.UserID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// EnsureRegistered возвращает common.ErrNotRegistered, если кошелька нет.
func (s *Service) EnsureRegistered(ctx context.Context, id common.Identity) error {
	_, err := s.repo.Get(ctx, id.GroupID, id.UserID)
	return err
}

// History возвращает последние операции кошелька.
func (s *Service) History(ctx context.Context, id common.Identity) ([]*Transaction, error) {
	if err := s.EnsureRegistered(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, id.GroupID, id.UserID, historyLimit)
}

// SetBalance принудительно устанавливает баланс зарегистрированного участника.
func (s *Service) SetBalance(ctx context.Context, groupID, userID string, amount int64) error {
	if amount < 0 {
		return common.ErrInvalidInput
	}
	previous, err := s.repo.SetBalance(ctx, groupID, userID, amount)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"group_id": groupID,
		"user_id":  userID,
		"from":     previous,
		"to":       amount,
	}).Info("Баланс установлен администратором")
	return nil
}

// GrantDailyIfDue начисляет ежедневный подарок всем кошелькам,
// если наступил час выдачи (UTC+8) и сегодня подарок ещё не выдавался.
func (s *Service) GrantDailyIfDue(ctx context.Context) (bool, error) {
	settings := s.runtime.Settings()
	amount := settings.DailyGiftAmount
	if amount <= 0 {
		return false, nil
	}

	now := s.now()
	if common.BeijingHour(now) < settings.GiftHour() {
		return false, nil
	}
	day := common.DayKey(now)

	// Быстрая проверка без транзакции; окончательное решение принимает GrantDaily
	last, _, err := s.kv.Get(ctx, DailyGiftKey)
	if err != nil {
		return false, err
	}
	if last == day {
		return false, nil
	}

	granted, affected, err := s.repo.GrantDaily(ctx, day, amount)
	if err != nil {
		return false, fmt.Errorf("ошибка ежедневного подарка: %w", err)
	}
	if granted {
		metrics.DailyGrantsTotal.Inc()
		log.WithFields(log.Fields{
			"date":    day,
			"amount":  amount,
			"wallets": affected,
		}).Info("Ежедневный подарок выдан")
	}
	return granted, nil
}
