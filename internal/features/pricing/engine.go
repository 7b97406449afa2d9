package pricing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
)

// Категорийный ключ множителя, когда приз не указан.
const categoryDefaultItem = "_category_default_"

var (
	blendOwn  = decimal.RequireFromString("0.7")
	blendUser = decimal.RequireFromString("0.3")
)

// MultiplierStore хранит дневные множители. Реализуется postgres.KV.
type MultiplierStore interface {
	GetOrCreate(ctx context.Context, key, value string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// CategoryLookup ищет категорию в реестре.
type CategoryLookup interface {
	Get(id string) (*catalog.Category, bool)
}

// PoolReader сообщает, сколько призов осталось в категории.
type PoolReader interface {
	RemainingCount(ctx context.Context, categoryID string) (int, error)
}

// ListingReader возвращает цены активных пользовательских лотов.
// Пустой itemID означает все лоты категории.
type ListingReader interface {
	UserListingPrices(ctx context.Context, groupID, categoryID, itemID string) ([]int64, error)
}

// Quote — рассчитанная цена с пояснением.
type Quote struct {
	Price    int64
	Base     int64
	Market   decimal.Decimal
	Scarcity decimal.Decimal
	Blended  bool
	Detail   string
}

// Engine рассчитывает цены.
type Engine struct {
	categories  CategoryLookup
	pool        PoolReader
	listings    ListingReader
	multipliers MultiplierStore
	params      func() Params
	cache       *expirable.LRU[string, decimal.Decimal]

	now   func() time.Time
	float func() float64
}

// NewEngine создаёт движок цен. listings может быть nil: тогда поправка на лоты не применяется.
func NewEngine(
	categories CategoryLookup,
	pool PoolReader,
	listings ListingReader,
	multipliers MultiplierStore,
	params func() Params,
	cacheSize int,
	cacheTTL time.Duration,
) *Engine {
	return &Engine{
		categories:  categories,
		pool:        pool,
		listings:    listings,
		multipliers: multipliers,
		params:      params,
		cache:       expirable.NewLRU[string, decimal.Decimal](cacheSize, nil, cacheTTL),
		now:         time.Now,
		float:       rand.Float64,
	}
}

// BasePrice возвращает базовую цену категории по текущим параметрам.
func (e *Engine) BasePrice(categoryID string) int64 {
	cat, _ := e.categories.Get(categoryID)
	return e.params().BasePrice(categoryID, cat)
}

// Quote рассчитывает цену категории (itemID пуст) или конкретного приза.
func (e *Engine) Quote(ctx context.Context, groupID, categoryID, itemID string) (Quote, error) {
	remaining := 0
	if _, ok := e.categories.Get(categoryID); ok {
		n, err := e.pool.RemainingCount(ctx, categoryID)
		if err != nil {
			return Quote{}, err
		}
		remaining = n
	}
	return e.QuoteWithRemaining(ctx, groupID, categoryID, itemID, remaining)
}

// QuoteWithRemaining рассчитывает цену при известном остатке пула.
// Используется внутри транзакции открытия, где остаток уже прочитан под блокировкой.
func (e *Engine) QuoteWithRemaining(ctx context.Context, groupID, categoryID, itemID string, remaining int) (Quote, error) {
	params := e.params()
	cat, ok := e.categories.Get(categoryID)
	base := params.BasePrice(categoryID, cat)

	if base <= 0 {
		return Quote{Detail: "基准价待定"}, nil
	}
	if !ok {
		return Quote{Price: base, Base: base, Detail: fmt.Sprintf("基准价 %d", base)}, nil
	}

	market, err := e.dailyMultiplier(ctx, categoryID, itemID, params.Volatility)
	if err != nil {
		return Quote{}, err
	}
	scarcity := ScarcityMultiplier(remaining, len(cat.Items), params.ScarcityWeight)

	q := Quote{
		Base:     base,
		Market:   market,
		Scarcity: scarcity,
		Price:    roundPrice(decimal.NewFromInt(base).Mul(market).Mul(scarcity)),
		Detail: fmt.Sprintf("基准价 %d × 市场系数 %s × 稀缺系数 %s",
			base, market.StringFixedBank(3), scarcity.StringFixedBank(3)),
	}

	if e.listings != nil {
		prices, err := e.listings.UserListingPrices(ctx, groupID, categoryID, itemID)
		if err != nil {
			return Quote{}, err
		}
		if len(prices) > 0 {
			q.Price = Blend(q.Price, prices)
			q.Blended = true
			q.Detail = fmt.Sprintf("%s；用户上架均价影响后=%d", q.Detail, q.Price)
		}
	}
	return q, nil
}

// ScarcityMultiplier = 1 + weight × (1 − remaining/total), 1 при пустой категории.
func ScarcityMultiplier(remaining, total int, weight float64) decimal.Decimal {
	if total <= 0 {
		return decimal.NewFromInt(1)
	}
	remaining = min(max(remaining, 0), total)
	drawn := decimal.NewFromInt(int64(total - remaining)).Div(decimal.NewFromInt(int64(total)))
	return decimal.NewFromInt(1).Add(decimal.NewFromFloat(weight).Mul(drawn))
}

// Blend смешивает цену со средней ценой пользовательских лотов: 0.7 × цена + 0.3 × среднее.
func Blend(price int64, userPrices []int64) int64 {
	if len(userPrices) == 0 {
		return price
	}
	sum := decimal.Zero
	for _, p := range userPrices {
		sum = sum.Add(decimal.NewFromInt(p))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(userPrices))))
	return roundPrice(blendOwn.Mul(decimal.NewFromInt(price)).Add(blendUser.Mul(avg)))
}

// roundPrice округляет банковским способом и не опускает цену ниже 1.
func roundPrice(raw decimal.Decimal) int64 {
	return max(1, raw.RoundBank(0).IntPart())
}

// MultiplierKey — ключ дневного множителя в system_kv.
func MultiplierKey(day, categoryID, itemID string) string {
	if itemID == "" {
		itemID = categoryDefaultItem
	}
	return fmt.Sprintf("market_multiplier:%s:%s:%s", day, categoryID, itemID)
}

// dailyMultiplier возвращает множитель на сегодня (UTC+8).
// Первое значение, записанное в хранилище, действует весь день.
func (e *Engine) dailyMultiplier(ctx context.Context, categoryID, itemID string, volatility float64) (decimal.Decimal, error) {
	key := MultiplierKey(common.DayKey(e.now()), categoryID, itemID)
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	candidate := e.randomMultiplier(volatility)
	stored, err := e.multipliers.GetOrCreate(ctx, key, candidate)
	if err != nil {
		return decimal.Decimal{}, err
	}

	value, err := decimal.NewFromString(stored)
	if err != nil || !value.IsPositive() {
		log.WithFields(log.Fields{
			"key":    key,
			"stored": stored,
		}).Warn("Некорректный множитель рынка, генерируем заново")
		if err := e.multipliers.Set(ctx, key, candidate); err != nil {
			return decimal.Decimal{}, err
		}
		value = decimal.RequireFromString(candidate)
	}

	e.cache.Add(key, value)
	return value, nil
}

// randomMultiplier возвращает случайное значение из [max(0.01, 1−vol), 1+vol] с 6 знаками.
func (e *Engine) randomMultiplier(volatility float64) string {
	if volatility < 0 {
		volatility = 0
	}
	low := max(0.01, 1-volatility)
	high := 1 + volatility
	value := low + (high-low)*e.float()
	return decimal.NewFromFloat(value).StringFixed(6)
}
