package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/inventory"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
	"serotonyl.ru/blindbox-bot/internal/features/wallet"
	"serotonyl.ru/blindbox-bot/internal/metrics"
)

// Registry — реестр категорий.
type Registry interface {
	Get(id string) (*catalog.Category, bool)
	List() []*catalog.Category
}

// Quoter рассчитывает рыночную цену.
type Quoter interface {
	Quote(ctx context.Context, groupID, categoryID, itemID string) (pricing.Quote, error)
}

// PoolReader возвращает неоткрытые призы категории.
type PoolReader interface {
	RemainingItems(ctx context.Context, categoryID string) ([]string, error)
}

// Registration проверяет, что у участника есть кошелёк.
type Registration interface {
	EnsureRegistered(ctx context.Context, id common.Identity) error
}

// Service управляет рынком.
type Service struct {
	db       postgres.DB
	repo     *Repository
	registry Registry
	pricing  Quoter
	pool     PoolReader
	wallets  Registration

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// NewService создаёт сервис рынка.
func NewService(db postgres.DB, repo *Repository, registry Registry, pricing Quoter, pool PoolReader, wallets Registration) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		registry: registry,
		pricing:  pricing,
		pool:     pool,
		wallets:  wallets,
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
}

// Overview строит обзор рынка группы.
func (s *Service) Overview(ctx context.Context, groupID string) (*Overview, error) {
	out := &Overview{}
	for _, cat := range s.registry.List() {
		remaining, err := s.pool.RemainingItems(ctx, cat.ID)
		if err != nil {
			return nil, err
		}
		summary := CategorySummary{Category: cat, Remaining: len(remaining)}
		for _, item := range cat.SortedItems() {
			q, err := s.pricing.Quote(ctx, groupID, cat.ID, item.ID)
			if err != nil {
				return nil, err
			}
			if q.Price <= 0 {
				continue
			}
			if summary.MinPrice == 0 || q.Price < summary.MinPrice {
				summary.MinPrice = q.Price
			}
			summary.MaxPrice = max(summary.MaxPrice, q.Price)
		}
		out.Categories = append(out.Categories, summary)
	}

	count, err := s.repo.CountSystem(ctx, groupID, common.DayKey(s.now()))
	if err != nil {
		return nil, err
	}
	out.SystemCount = count
	return out, nil
}

// CategoryView строит подробный обзор категории с ценой каждого приза и лотами.
func (s *Service) CategoryView(ctx context.Context, groupID, categoryID string) (*CategoryView, error) {
	cat, ok := s.registry.Get(categoryID)
	if !ok {
		return nil, common.ErrNotFound
	}
	remaining, err := s.pool.RemainingItems(ctx, cat.ID)
	if err != nil {
		return nil, err
	}

	view := &CategoryView{Category: cat, Remaining: len(remaining)}
	for _, item := range cat.SortedItems() {
		q, err := s.pricing.Quote(ctx, groupID, cat.ID, item.ID)
		if err != nil {
			return nil, err
		}
		view.Items = append(view.Items, ItemQuote{
			Item:  item,
			Quote: q,
			Drawn: !slices.Contains(remaining, item.ID),
		})
	}

	listings, err := s.repo.List(ctx, groupID, cat.ID)
	if err != nil {
		return nil, err
	}
	view.Listings = listings
	return view, nil
}

// Listings возвращает активные лоты группы; пустая категория — все лоты.
func (s *Service) Listings(ctx context.Context, groupID, categoryID string) ([]Listing, error) {
	return s.repo.List(ctx, groupID, categoryID)
}

// Sell выставляет призы из инвентаря на продажу.
// Списание из инвентаря и создание лота выполняются одной транзакцией.
func (s *Service) Sell(ctx context.Context, id common.Identity, categoryID, itemName string, price int64, quantity int) (*Listing, error) {
	if price <= 0 || price > MaxListingPrice || quantity <= 0 {
		return nil, common.ErrInvalidInput
	}
	if err := s.wallets.EnsureRegistered(ctx, id); err != nil {
		return nil, err
	}
	cat, ok := s.registry.Get(categoryID)
	if !ok {
		return nil, common.ErrNotFound
	}
	item, ok := cat.ItemByName(itemName)
	if !ok {
		return nil, common.ErrNotFound
	}

	listing := &Listing{
		GroupID:      id.GroupID,
		CategoryID:   cat.ID,
		ItemID:       item.ID,
		ItemName:     item.Name,
		Price:        price,
		Quantity:     quantity,
		SellerUserID: id.UserID,
	}
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := inventory.Consume(ctx, tx, id.GroupID, id.UserID, cat.ID, item.Name, quantity); err != nil {
			return err
		}
		return insertListing(ctx, tx, listing)
	})
	if err != nil {
		return nil, err
	}

	metrics.MarketListingsTotal.WithLabelValues("user").Inc()
	log.WithFields(log.Fields{
		"group_id":   id.GroupID,
		"user_id":    id.UserID,
		"listing_id": listing.ID,
		"item":       item.Name,
		"price":      price,
		"quantity":   quantity,
	}).Info("Лот выставлен")
	return listing, nil
}

// Buy покупает quantity штук у первого подходящего лота.
// Лот, баланс покупателя, выручка продавца и инвентарь меняются одной транзакцией.
func (s *Service) Buy(ctx context.Context, id common.Identity, categoryID, itemName string, quantity int) (*Purchase, error) {
	if quantity <= 0 {
		return nil, common.ErrInvalidInput
	}

	var p Purchase
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		l, err := pickForUpdate(ctx, tx, id.GroupID, categoryID, itemName)
		if err != nil {
			return err
		}
		if l.Quantity < quantity {
			return &common.QuantityError{Available: l.Quantity}
		}

		buyer, err := wallet.Lock(ctx, tx, id.GroupID, id.UserID)
		if err != nil {
			return err
		}
		// старые лоты могли появиться до ограничения цены
		if l.Price > math.MaxInt64/int64(quantity) {
			return &common.BalanceError{Need: math.MaxInt64, Balance: buyer.Balance}
		}
		cost := l.Price * int64(quantity)
		if buyer.Balance < cost {
			return &common.BalanceError{Need: cost, Balance: buyer.Balance}
		}

		if err := consumeListing(ctx, tx, l.ID, quantity); err != nil {
			return err
		}
		balance, err := wallet.Debit(ctx, tx, id.GroupID, id.UserID, cost, wallet.KindMarketBuy,
			fmt.Sprintf("%s x%d #%d", l.ItemName, quantity, l.ID))
		if err != nil {
			return err
		}

		if !l.IsSystem {
			_, err := wallet.Credit(ctx, tx, id.GroupID, l.SellerUserID, cost, wallet.KindMarketSale,
				fmt.Sprintf("%s x%d #%d", l.ItemName, quantity, l.ID))
			if errors.Is(err, common.ErrNotRegistered) {
				log.WithField("seller", l.SellerUserID).Warn("У продавца нет кошелька, выручка не начислена")
			} else if err != nil {
				return err
			}
		}

		if err := inventory.Add(ctx, tx, id.GroupID, id.UserID, l.CategoryID, l.ItemName, quantity); err != nil {
			return err
		}

		p = Purchase{Listing: *l, Quantity: quantity, Cost: cost, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MarketPurchasesTotal.Inc()
	log.WithFields(log.Fields{
		"group_id":   id.GroupID,
		"user_id":    id.UserID,
		"listing_id": p.Listing.ID,
		"quantity":   quantity,
		"cost":       p.Cost,
	}).Info("Покупка на рынке")
	return &p, nil
}

// RefreshSystem выставляет системные лоты на сегодня, если их ещё нет.
// Кандидаты и их цены считаются до транзакции: движок цен читает пул и KV
// своими соединениями. Под advisory-блокировкой группы удаляются лоты прошлых
// дней и, если сегодняшних всё ещё нет, вставляются выбранные.
func (s *Service) RefreshSystem(ctx context.Context, groupID string) error {
	day := common.DayKey(s.now())

	count, err := s.repo.CountSystem(ctx, groupID, day)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	picks, err := s.pickSystem(ctx, groupID, day)
	if err != nil {
		return err
	}

	created := 0
	err = postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := postgres.AdvisoryXactLock(ctx, tx, "market_system:"+groupID); err != nil {
			return err
		}
		if err := deleteExpiredSystem(ctx, tx, groupID, day); err != nil {
			return err
		}
		count, err := countSystem(ctx, tx, groupID, day)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for i := range picks {
			if err := insertListing(ctx, tx, &picks[i]); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if created > 0 {
		metrics.MarketListingsTotal.WithLabelValues("system").Add(float64(created))
		log.WithFields(log.Fields{
			"group_id": groupID,
			"date":     day,
			"count":    created,
		}).Info("Системные лоты выставлены")
	}
	return nil
}

// pickSystem случайно выбирает до SystemListingsPerDay неоткрытых призов
// с определённой ценой.
func (s *Service) pickSystem(ctx context.Context, groupID, day string) ([]Listing, error) {
	candidates, err := s.remainingItems(ctx)
	if err != nil {
		return nil, err
	}
	s.shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	var picks []Listing
	for _, c := range candidates {
		if len(picks) >= SystemListingsPerDay {
			break
		}
		q, err := s.pricing.Quote(ctx, groupID, c.category.ID, c.item.ID)
		if err != nil {
			return nil, err
		}
		if q.Price <= 0 || q.Price > MaxListingPrice {
			continue
		}
		picks = append(picks, Listing{
			GroupID:      groupID,
			CategoryID:   c.category.ID,
			ItemID:       c.item.ID,
			ItemName:     c.item.Name,
			Price:        q.Price,
			Quantity:     1,
			SellerUserID: SystemSeller,
			IsSystem:     true,
			DayKey:       day,
		})
	}
	return picks, nil
}

// PurgeExpired удаляет системные лоты прошлых дней во всех группах.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredSystem(ctx, common.DayKey(s.now()))
}

type candidate struct {
	category *catalog.Category
	item     *catalog.Item
}

func (s *Service) remainingItems(ctx context.Context) ([]candidate, error) {
	var out []candidate
	for _, cat := range s.registry.List() {
		ids, err := s.pool.RemainingItems(ctx, cat.ID)
		if err != nil {
			return nil, err
		}
		for _, itemID := range ids {
			if item, ok := cat.Items[itemID]; ok {
				out = append(out, candidate{category: cat, item: item})
			}
		}
	}
	return out, nil
}

// Prepare проверяет регистрацию и обновляет системные лоты группы перед командой рынка.
// Ошибка обновления лотов не мешает просмотру рынка.
func (s *Service) Prepare(ctx context.Context, id common.Identity) error {
	if err := s.wallets.EnsureRegistered(ctx, id); err != nil {
		return err
	}
	if err := s.RefreshSystem(ctx, id.GroupID); err != nil {
		log.WithError(err).WithField("group_id", id.GroupID).Warn("Не удалось обновить системные лоты")
	}
	return nil
}
