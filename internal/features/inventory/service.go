package inventory

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
)

// Registration проверяет, что у участника есть кошелёк.
type Registration interface {
	EnsureRegistered(ctx context.Context, id common.Identity) error
}

// ItemResolver находит ID приза по имени для расчёта цены.
type ItemResolver interface {
	ItemID(categoryID, itemName string) string
}

// Quoter рассчитывает рыночную цену приза.
type Quoter interface {
	Quote(ctx context.Context, groupID, categoryID, itemID string) (pricing.Quote, error)
}

// Service показывает инвентарь с оценкой.
type Service struct {
	repo    *Repository
	wallets Registration
	items   ItemResolver
	pricing Quoter
}

// NewService создаёт сервис инвентаря.
func NewService(repo *Repository, wallets Registration, items ItemResolver, pricing Quoter) *Service {
	return &Service{repo: repo, wallets: wallets, items: items, pricing: pricing}
}

// List возвращает инвентарь участника с ценой за штуку.
// Ошибка расчёта цены не прерывает вывод: цена считается неопределённой.
func (s *Service) List(ctx context.Context, id common.Identity) ([]ValuedEntry, error) {
	if err := s.wallets.EnsureRegistered(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, id.GroupID, id.UserID)
	if err != nil {
		return nil, err
	}

	out := make([]ValuedEntry, 0, len(entries))
	for _, e := range entries {
		v := ValuedEntry{Entry: e}
		itemID := s.items.ItemID(e.CategoryID, e.ItemName)
		q, err := s.pricing.Quote(ctx, id.GroupID, e.CategoryID, itemID)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"category_id": e.CategoryID,
				"item":        e.ItemName,
			}).Warn("Не удалось оценить приз")
		} else {
			v.UnitPrice = q.Price
		}
		out = append(out, v)
	}
	return out, nil
}
