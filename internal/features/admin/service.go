// Package admin — service.go содержит проверки прав и изменения runtime_config.
package admin

import (
	"context"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
)

// SettingsStore — источник и хранилище игровых параметров.
type SettingsStore interface {
	Settings() config.RuntimeSettings
	Update(fn func(*config.RuntimeSettings)) error
}

// Registry — реестр категорий.
type Registry interface {
	Get(id string) (*catalog.Category, bool)
}

// BalanceSetter устанавливает баланс зарегистрированного участника.
type BalanceSetter interface {
	SetBalance(ctx context.Context, groupID, userID string, amount int64) error
}

// Service выполняет административные действия.
type Service struct {
	store        SettingsStore
	registry     Registry
	wallets      BalanceSetter
	repo         *Repository
	passwordHash string

	now func() time.Time
}

// NewService создаёт сервис администрирования.
// Пустой passwordHash — первого администратора можно назначить без пароля.
func NewService(store SettingsStore, registry Registry, wallets BalanceSetter, repo *Repository, passwordHash string) *Service {
	return &Service{
		store:        store,
		registry:     registry,
		wallets:      wallets,
		repo:         repo,
		passwordHash: passwordHash,
		now:          time.Now,
	}
}

// IsAdmin проверяет, входит ли userID в admin_ids.
func (s *Service) IsAdmin(userID string) bool {
	return s.store.Settings().IsAdmin(userID)
}

// Admins возвращает список администраторов.
func (s *Service) Admins() config.IDList {
	return s.store.Settings().AdminIDs
}

// Blacklist возвращает чёрный список.
func (s *Service) Blacklist() config.IDList {
	return s.store.Settings().BlacklistUserIDs
}

// NeedsPassword сообщает, что назначение первого администратора требует пароль.
func (s *Service) NeedsPassword() bool {
	return s.passwordHash != "" && len(s.Admins()) == 0
}

// AddAdmin добавляет администратора.
// Пока список пуст, добавить может любой (с паролем, если он настроен).
func (s *Service) AddAdmin(ctx context.Context, actor, target, password string) error {
	admins := s.Admins()
	switch {
	case len(admins) == 0 && s.passwordHash != "":
		if err := s.checkPassword(ctx, actor, password); err != nil {
			return err
		}
	case len(admins) > 0 && !admins.Contains(actor):
		return common.ErrUnauthorized
	}

	err := s.store.Update(func(rs *config.RuntimeSettings) {
		if !rs.AdminIDs.Contains(target) {
			rs.AdminIDs = append(rs.AdminIDs, target)
		}
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"actor": actor, "target": target}).Info("Администратор добавлен")
	return nil
}

// RemoveAdmin удаляет администратора.
func (s *Service) RemoveAdmin(actor, target string) error {
	if !s.IsAdmin(actor) {
		return common.ErrUnauthorized
	}
	err := s.store.Update(func(rs *config.RuntimeSettings) {
		rs.AdminIDs = rs.AdminIDs.Without(target)
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"actor": actor, "target": target}).Info("Администратор удалён")
	return nil
}

// SetSpecialPrice задаёт цену особой категории.
func (s *Service) SetSpecialPrice(actor, categoryID string, amount int64) error {
	if !s.IsAdmin(actor) {
		return common.ErrUnauthorized
	}
	cat, ok := s.registry.Get(categoryID)
	if !ok {
		return common.ErrNotFound
	}
	if cat.Type != catalog.TypeSpecial {
		return ErrNotSpecialBox
	}
	if amount < 0 {
		return common.ErrInvalidInput
	}

	err := s.store.Update(func(rs *config.RuntimeSettings) {
		if rs.SpecialBoxPrices == nil {
			rs.SpecialBoxPrices = map[string]int64{}
		}
		rs.SpecialBoxPrices[categoryID] = amount
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"actor": actor, "category": categoryID, "price": amount}).Info("Особая цена установлена")
	return nil
}

// SetBalance устанавливает баланс участника группы.
func (s *Service) SetBalance(ctx context.Context, actor, groupID, userID string, amount int64) error {
	if !s.IsAdmin(actor) {
		return common.ErrUnauthorized
	}
	if !s.store.Settings().AdminBalanceSetEnabled {
		return common.ErrFeatureDisabled
	}
	if amount < 0 {
		return common.ErrInvalidInput
	}
	return s.wallets.SetBalance(ctx, groupID, userID, amount)
}

// BlacklistAdd добавляет пользователя в чёрный список.
func (s *Service) BlacklistAdd(actor, target string) error {
	return s.updateBlacklist(actor, func(ids config.IDList) config.IDList {
		if ids.Contains(target) {
			return ids
		}
		return append(ids, target)
	})
}

// BlacklistRemove убирает пользователя из чёрного списка.
func (s *Service) BlacklistRemove(actor, target string) error {
	return s.updateBlacklist(actor, func(ids config.IDList) config.IDList {
		return ids.Without(target)
	})
}

func (s *Service) updateBlacklist(actor string, fn func(config.IDList) config.IDList) error {
	if !s.IsAdmin(actor) {
		return common.ErrUnauthorized
	}
	before := slices.Clone(s.Blacklist())
	err := s.store.Update(func(rs *config.RuntimeSettings) {
		rs.BlacklistUserIDs = fn(rs.BlacklistUserIDs)
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"actor":  actor,
		"before": len(before),
		"after":  len(s.Blacklist()),
	}).Info("Чёрный список изменён")
	return nil
}

// checkPassword проверяет пароль первичной настройки.
// Не больше MaxFailedAttempts неудачных попыток за AttemptWindow.
func (s *Service) checkPassword(ctx context.Context, userID, password string) error {
	failures, err := s.repo.RecentFailures(ctx, userID, s.now().Add(-AttemptWindow))
	if err != nil {
		return err
	}
	if failures >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := password != "" && VerifyPassword(password, s.passwordHash)
	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}
	return nil
}
