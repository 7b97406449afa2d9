package boxes

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/inventory"
	"serotonyl.ru/blindbox-bot/internal/features/wallet"
	"serotonyl.ru/blindbox-bot/internal/metrics"
)

// Registry — реестр категорий.
type Registry interface {
	Get(id string) (*catalog.Category, bool)
	List() []*catalog.Category
	Suggest(id string) string
}

// Pricer отдаёт цену открытия: базовую цену категории из игровых параметров.
// Рыночные множители и лоты на неё не влияют, поэтому внутри транзакции
// открытия не нужны дополнительные запросы к БД.
type Pricer interface {
	BasePrice(categoryID string) int64
}

// Wallets отдаёт баланс участника.
type Wallets interface {
	Balance(ctx context.Context, id common.Identity) (int64, error)
}

// Service управляет открытием боксов.
type Service struct {
	db       postgres.DB
	repo     *Repository
	registry Registry
	pricing  Pricer
	wallets  Wallets
	sessions *SessionStore
	cooldown *Cooldown
	runtime  config.RuntimeSource

	locks common.KeyedMutex
	now   func() time.Time
	intn  func(n int) int
}

// NewService создаёт сервис боксов.
func NewService(
	db postgres.DB,
	repo *Repository,
	registry Registry,
	pricing Pricer,
	wallets Wallets,
	sessions *SessionStore,
	cooldown *Cooldown,
	runtime config.RuntimeSource,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		registry: registry,
		pricing:  pricing,
		wallets:  wallets,
		sessions: sessions,
		cooldown: cooldown,
		runtime:  runtime,
		now:      time.Now,
		intn:     rand.IntN,
	}
}

// Pools возвращает все категории с состоянием и ценой открытия.
func (s *Service) Pools(ctx context.Context) ([]PoolView, error) {
	cats := s.registry.List()
	out := make([]PoolView, 0, len(cats))
	for _, cat := range cats {
		view, err := s.view(ctx, cat)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// Select запоминает выбранную категорию участника.
func (s *Service) Select(ctx context.Context, id common.Identity, categoryID string) (*PoolView, error) {
	if _, err := s.wallets.Balance(ctx, id); err != nil {
		return nil, err
	}
	cat, ok := s.registry.Get(categoryID)
	if !ok {
		return nil, common.ErrNotFound
	}
	if err := s.sessions.Set(id.SessionKey(), cat.ID); err != nil {
		log.WithError(err).WithField("session", id.SessionKey()).Warn("Не удалось сохранить сессию")
	}
	return s.view(ctx, cat)
}

// Selected возвращает выбранную категорию, если она ещё существует.
func (s *Service) Selected(id common.Identity) (*catalog.Category, bool) {
	categoryID, ok := s.sessions.Get(id.SessionKey())
	if !ok {
		return nil, false
	}
	return s.registry.Get(categoryID)
}

// Draw открывает слот в выбранной категории.
// Проверки идут по порядку: категория, слот, кошелёк, цена, баланс, кулдаун.
// Состояние пула, списание, журнал, инвентарь и отметка кулдауна фиксируются одной транзакцией.
func (s *Service) Draw(ctx context.Context, id common.Identity, slot int) (*DrawResult, error) {
	cat, ok := s.Selected(id)
	if !ok {
		return nil, ErrNoSelection
	}

	unlock := s.locks.Lock(id.SessionKey())
	defer unlock()

	var (
		now      = s.now()
		key      = CooldownKey(id.GroupID, id.UserID)
		settings = s.runtime.Settings()
		result   = &DrawResult{Category: cat, Slot: slot}
	)

	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		state, err := lock(ctx, tx, cat.ID)
		if err != nil {
			return err
		}
		if !state.Available() {
			return common.ErrPoolExhausted
		}
		if !state.HasSlot(slot) {
			return &SlotUnavailableError{Slot: slot, Remaining: state.Slots}
		}

		w, err := wallet.Lock(ctx, tx, id.GroupID, id.UserID)
		if err != nil {
			return err
		}

		price := s.pricing.BasePrice(cat.ID)
		if price <= 0 {
			return common.ErrPriceUndetermined
		}
		if w.Balance < price {
			return &common.BalanceError{Need: price, Balance: w.Balance}
		}

		last, err := s.cooldown.LastOpen(ctx, tx, key)
		if err != nil {
			return err
		}
		if left := Remaining(last, now, settings.OpenCooldown()); left > 0 {
			return &common.CooldownError{Remaining: left}
		}

		itemID := state.take(s.intn(len(state.Items)), slot)
		if err := saveState(ctx, tx, state); err != nil {
			return err
		}

		item, ok := cat.Items[itemID]
		if !ok {
			item = &catalog.Item{ID: itemID, Name: itemID, Slot: slot}
		}

		balance, err := wallet.Debit(ctx, tx, id.GroupID, id.UserID, price, wallet.KindDraw,
			fmt.Sprintf("%s #%d %s", cat.ID, slot, item.Name))
		if err != nil {
			return err
		}
		if err := inventory.Add(ctx, tx, id.GroupID, id.UserID, cat.ID, item.Name, 1); err != nil {
			return err
		}
		if err := s.cooldown.Store(ctx, tx, key, now); err != nil {
			return err
		}

		result.Item = item
		result.Price = price
		result.Balance = balance
		result.State = state
		return nil
	})
	if err != nil {
		metrics.DrawsTotal.WithLabelValues(drawResultLabel(err)).Inc()
		return nil, err
	}

	s.cooldown.Remember(key, now)
	metrics.DrawsTotal.WithLabelValues("ok").Inc()
	metrics.CoinsSpentOnDraws.Add(float64(result.Price))
	log.WithFields(log.Fields{
		"group_id":    id.GroupID,
		"user_id":     id.UserID,
		"category_id": cat.ID,
		"slot":        slot,
		"item":        result.Item.Name,
		"price":       result.Price,
	}).Info("Бокс открыт")
	return result, nil
}

// Refresh сбрасывает категорию. Пустой categoryID — выбранная категория.
func (s *Service) Refresh(ctx context.Context, id common.Identity, categoryID string) (*State, *catalog.Category, error) {
	cat, err := s.resolve(ctx, id, categoryID)
	if err != nil {
		return nil, nil, err
	}
	state, err := s.repo.Reset(ctx, cat)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{
		"category_id": cat.ID,
		"user_id":     id.UserID,
	}).Info("Категория сброшена")
	return state, cat, nil
}

// Status возвращает состояние категории и баланс участника.
func (s *Service) Status(ctx context.Context, id common.Identity, categoryID string) (*PoolView, int64, error) {
	cat, err := s.resolve(ctx, id, categoryID)
	if err != nil {
		return nil, 0, err
	}
	view, err := s.view(ctx, cat)
	if err != nil {
		return nil, 0, err
	}
	balance, err := s.wallets.Balance(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return view, balance, nil
}

// Suggest подбирает похожий ID категории.
func (s *Service) Suggest(categoryID string) string {
	return s.registry.Suggest(categoryID)
}

func (s *Service) resolve(ctx context.Context, id common.Identity, categoryID string) (*catalog.Category, error) {
	if _, err := s.wallets.Balance(ctx, id); err != nil {
		return nil, err
	}
	if categoryID == "" {
		cat, ok := s.Selected(id)
		if !ok {
			return nil, ErrNoSelection
		}
		return cat, nil
	}
	cat, ok := s.registry.Get(categoryID)
	if !ok {
		return nil, common.ErrNotFound
	}
	return cat, nil
}

func (s *Service) view(ctx context.Context, cat *catalog.Category) (*PoolView, error) {
	state, err := s.repo.Get(ctx, cat.ID)
	if err != nil {
		return nil, err
	}
	return &PoolView{Category: cat, State: state, Price: s.pricing.BasePrice(cat.ID)}, nil
}

func drawResultLabel(err error) string {
	var slotErr *SlotUnavailableError
	switch {
	case errors.Is(err, common.ErrPoolExhausted):
		return "exhausted"
	case errors.As(err, &slotErr):
		return "slot_unavailable"
	case errors.Is(err, common.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, common.ErrPriceUndetermined):
		return "price_undetermined"
	case errors.Is(err, common.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, common.ErrCooldownActive):
		return "cooldown"
	default:
		return "error"
	}
}
