package pricing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) GetOrCreate(_ context.Context, key, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	m.data[key] = value
	return value, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

type fakeCatalog map[string]*catalog.Category

func (f fakeCatalog) Get(id string) (*catalog.Category, bool) {
	c, ok := f[id]
	return c, ok
}

type fakePool map[string]int

func (f fakePool) RemainingCount(_ context.Context, id string) (int, error) { return f[id], nil }

type fakeListings map[string][]int64

func (f fakeListings) UserListingPrices(_ context.Context, _, categoryID, itemID string) ([]int64, error) {
	return f[categoryID+"/"+itemID], nil
}

func category(id string, typ catalog.BoxType, n int) *catalog.Category {
	items := map[string]*catalog.Item{}
	for i := 1; i <= n; i++ {
		itemID := string(rune('a'+i-1)) + ".png"
		items[itemID] = &catalog.Item{ID: itemID, Name: itemID, Slot: i}
	}
	return &catalog.Category{ID: id, Type: typ, Items: items}
}

func newTestEngine(params Params, pool fakePool, listings ListingReader) (*Engine, *memStore) {
	cats := fakeCatalog{
		"num_c": category("num_c", catalog.TypeNumber, 3),
		"sp_x":  category("sp_x", catalog.TypeSpecial, 4),
	}
	store := newMemStore()
	e := NewEngine(cats, pool, listings, store, func() Params { return params }, 100, time.Hour)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e, store
}

func flatParams() Params {
	return Params{
		NumberBoxPrice:   25,
		SpecialBoxPrices: map[string]int64{},
		Volatility:       0,
		ScarcityWeight:   0,
	}
}

func TestQuoteFlatMarketCostsBase(t *testing.T) {
	pool := fakePool{"num_c": 3}
	e, _ := newTestEngine(flatParams(), pool, nil)

	for remaining := 3; remaining >= 1; remaining-- {
		pool["num_c"] = remaining
		q, err := e.Quote(context.Background(), "g", "num_c", "")
		require.NoError(t, err)
		assert.Equal(t, int64(25), q.Price)
		assert.Equal(t, "基准价 25 × 市场系数 1.000 × 稀缺系数 1.000", q.Detail)
	}
}

func TestQuoteZeroBaseIsUndetermined(t *testing.T) {
	e, _ := newTestEngine(flatParams(), fakePool{"sp_x": 4}, nil)

	q, err := e.Quote(context.Background(), "g", "sp_x", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.Price)
	assert.Equal(t, "基准价待定", q.Detail)
}

func TestQuoteSpecialPrice(t *testing.T) {
	params := flatParams()
	params.SpecialBoxPrices["sp_x"] = 50
	e, _ := newTestEngine(params, fakePool{"sp_x": 4}, nil)

	q, err := e.Quote(context.Background(), "g", "sp_x", "")
	require.NoError(t, err)
	assert.Equal(t, int64(50), q.Base)
	assert.Equal(t, int64(50), q.Price)
}

func TestQuoteUnknownCategoryFallsBackByPrefix(t *testing.T) {
	params := flatParams()
	params.SpecialBoxDefaultPrice = 40
	e, _ := newTestEngine(params, fakePool{}, nil)

	q, err := e.Quote(context.Background(), "g", "num_missing", "")
	require.NoError(t, err)
	assert.Equal(t, int64(25), q.Price)
	assert.Equal(t, "基准价 25", q.Detail)

	q, err = e.Quote(context.Background(), "g", "special_missing", "")
	require.NoError(t, err)
	assert.Equal(t, int64(40), q.Price)
}

func TestDailyMultiplierIsStablePerKey(t *testing.T) {
	params := flatParams()
	params.Volatility = 0.5
	e, store := newTestEngine(params, fakePool{"num_c": 3}, nil)

	draws := []float64{0.1, 0.9, 0.5}
	e.float = func() float64 {
		v := draws[0]
		draws = append(draws[1:], v)
		return v
	}

	first, err := e.Quote(context.Background(), "g", "num_c", "a.png")
	require.NoError(t, err)

	// Кэш сброшен: значение должно прийти из хранилища, а не сгенерироваться заново
	e.cache.Purge()
	second, err := e.Quote(context.Background(), "g", "num_c", "a.png")
	require.NoError(t, err)
	assert.True(t, first.Market.Equal(second.Market))
	assert.Equal(t, "0.600000", store.data["market_multiplier:2024-05-01:num_c:a.png"])

	other, err := e.Quote(context.Background(), "g", "num_c", "")
	require.NoError(t, err)
	assert.Contains(t, store.data, "market_multiplier:2024-05-01:num_c:_category_default_")
	assert.False(t, other.Market.Equal(first.Market))
}

func TestDailyMultiplierRollsOverAtMidnightUTC8(t *testing.T) {
	params := flatParams()
	params.Volatility = 0.5
	e, store := newTestEngine(params, fakePool{"num_c": 3}, nil)

	clock := time.Date(2024, 5, 1, 15, 59, 59, 0, time.UTC) // 23:59:59 UTC+8
	e.now = func() time.Time { return clock }
	e.float = func() float64 { return 0.1 }

	today, err := e.Quote(context.Background(), "g", "num_c", "a.png")
	require.NoError(t, err)
	assert.Equal(t, "0.6", today.Market.String())

	// Полночь по UTC+8: новый ключ, значение генерируется заново, кэш не мешает
	clock = clock.Add(time.Second)
	e.float = func() float64 { return 0.9 }
	tomorrow, err := e.Quote(context.Background(), "g", "num_c", "a.png")
	require.NoError(t, err)
	assert.Equal(t, "1.4", tomorrow.Market.String())

	assert.Equal(t, "0.600000", store.data["market_multiplier:2024-05-01:num_c:a.png"])
	assert.Equal(t, "1.400000", store.data["market_multiplier:2024-05-02:num_c:a.png"])
}

func TestDailyMultiplierRegeneratesInvalidValue(t *testing.T) {
	params := flatParams()
	params.Volatility = 0.2
	e, store := newTestEngine(params, fakePool{"num_c": 3}, nil)
	e.float = func() float64 { return 0.5 }
	store.data["market_multiplier:2024-05-01:num_c:_category_default_"] = "-3"

	q, err := e.Quote(context.Background(), "g", "num_c", "")
	require.NoError(t, err)
	assert.Equal(t, "1", q.Market.String())
	assert.Equal(t, 1, store.sets)
	assert.Equal(t, "1.000000", store.data["market_multiplier:2024-05-01:num_c:_category_default_"])
}

func TestMultiplierRange(t *testing.T) {
	e, _ := newTestEngine(flatParams(), fakePool{}, nil)

	e.float = func() float64 { return 0 }
	assert.Equal(t, "0.800000", e.randomMultiplier(0.2))
	e.float = func() float64 { return 0.999999999 }
	assert.Equal(t, "1.200000", e.randomMultiplier(0.2))
	e.float = func() float64 { return 0 }
	assert.Equal(t, "0.010000", e.randomMultiplier(1.5))
}

func TestScarcityMultiplier(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		total     int
		weight    float64
		want      string
	}{
		{"full pool", 4, 4, 0.8, "1"},
		{"half drawn", 2, 4, 0.8, "1.4"},
		{"empty pool", 0, 4, 0.8, "1.8"},
		{"over total clamps", 9, 4, 0.8, "1"},
		{"negative clamps", -1, 4, 0.8, "1.8"},
		{"no items", 0, 0, 0.8, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScarcityMultiplier(tt.remaining, tt.total, tt.weight)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestQuoteScarcityRaisesPrice(t *testing.T) {
	params := flatParams()
	params.ScarcityWeight = 0.8
	pool := fakePool{"num_c": 3}
	e, _ := newTestEngine(params, pool, nil)

	full, err := e.Quote(context.Background(), "g", "num_c", "")
	require.NoError(t, err)
	pool["num_c"] = 0
	empty, err := e.Quote(context.Background(), "g", "num_c", "")
	require.NoError(t, err)

	assert.Equal(t, int64(25), full.Price)
	assert.Equal(t, int64(45), empty.Price)
}

func TestBlend(t *testing.T) {
	assert.Equal(t, int64(25), Blend(25, nil))
	// 0.7×25 + 0.3×10 = 20.5 → 20 (банковское округление)
	assert.Equal(t, int64(20), Blend(25, []int64{10}))
	// 0.7×25 + 0.3×15 = 22
	assert.Equal(t, int64(22), Blend(25, []int64{10, 20}))
	assert.Equal(t, int64(1), Blend(1, []int64{1}))
}

func TestQuoteBlendsUserListings(t *testing.T) {
	listings := fakeListings{"num_c/a.png": {10}}
	e, _ := newTestEngine(flatParams(), fakePool{"num_c": 3}, listings)

	q, err := e.Quote(context.Background(), "g", "num_c", "a.png")
	require.NoError(t, err)
	assert.True(t, q.Blended)
	assert.Equal(t, int64(20), q.Price)
	assert.Equal(t, "基准价 25 × 市场系数 1.000 × 稀缺系数 1.000；用户上架均价影响后=20", q.Detail)

	q, err = e.Quote(context.Background(), "g", "num_c", "b.png")
	require.NoError(t, err)
	assert.False(t, q.Blended)
	assert.Equal(t, int64(25), q.Price)
}

func TestParamsFromSettingsClamps(t *testing.T) {
	s := config.DefaultRuntimeSettings()
	s.MarketVolatility = 0
	s.MarketScarcityWeight = -1
	p := ParamsFromSettings(s)
	assert.Equal(t, 0.1, p.Volatility)
	assert.Equal(t, 0.0, p.ScarcityWeight)
}
