package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/market"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
	"serotonyl.ru/blindbox-bot/internal/features/wallet"
)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeCatalog map[string]*catalog.Category

func (f fakeCatalog) Get(id string) (*catalog.Category, bool) {
	c, ok := f[id]
	return c, ok
}

func (f fakeCatalog) List() []*catalog.Category {
	return []*catalog.Category{f["num_a"]}
}

type fakePricing struct{}

func (fakePricing) Quote(_ context.Context, groupID, categoryID, itemID string) (pricing.Quote, error) {
	if groupID == "broken" {
		return pricing.Quote{}, errors.New("db down")
	}
	return pricing.Quote{
		Price:    30,
		Base:     25,
		Market:   decimal.RequireFromString("1.2"),
		Scarcity: decimal.NewFromInt(1),
		Detail:   categoryID + "/" + itemID,
	}, nil
}

func (fakePricing) BasePrice(string) int64 { return 25 }

type fakeMarket struct{}

func (fakeMarket) Listings(_ context.Context, groupID, categoryID string) ([]market.Listing, error) {
	return []market.Listing{{ID: 4, GroupID: groupID, CategoryID: "num_a", ItemName: "X", Price: 12, Quantity: 2, SellerUserID: "u1"}}, nil
}

type fakeWallets struct{}

func (fakeWallets) Get(_ context.Context, groupID, userID string) (*wallet.Wallet, error) {
	if userID != "u1" {
		return nil, common.ErrNotRegistered
	}
	return &wallet.Wallet{GroupID: groupID, UserID: userID, Balance: 175, RegisteredAt: time.Unix(0, 0).UTC()}, nil
}

func newTestRouter(dbErr error) http.Handler {
	return NewRouter(Deps{
		DB: fakeDB{err: dbErr},
		Catalog: fakeCatalog{"num_a": {
			ID:    "num_a",
			Type:  catalog.TypeNumber,
			Items: map[string]*catalog.Item{"01-X.png": {ID: "01-X.png", Name: "X", Slot: 1}},
			Slots: []int{1, 2},
		}},
		Pricing: fakePricing{},
		Market:  fakeMarket{},
		Wallets: fakeWallets{},
	})
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestRoutesStatus(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		url    string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/categories", http.StatusOK},
		{"/api/v1/categories/num_a/price", http.StatusOK},
		{"/api/v1/categories/missing/price", http.StatusNotFound},
		{"/api/v1/categories/num_a/price?item=Nope", http.StatusNotFound},
		{"/api/v1/categories/num_a/price?group=broken", http.StatusInternalServerError},
		{"/api/v1/groups/g1/market", http.StatusOK},
		{"/api/v1/groups/g1/wallets/u1", http.StatusOK},
		{"/api/v1/groups/g1/wallets/u2", http.StatusNotFound},
		{"/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.status, get(t, router, tt.url).Code)
		})
	}
}

func TestHealthzDatabaseDown(t *testing.T) {
	rec := get(t, newTestRouter(errors.New("refused")), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCategoryPriceByItemName(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/api/v1/categories/num_a/price?group=g1&item=X")
	require.Equal(t, http.StatusOK, rec.Code)

	var body priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "01-X.png", body.ItemID)
	assert.Equal(t, int64(30), body.Price)
	assert.Equal(t, "1.2", body.Market)
	assert.Equal(t, "num_a/01-X.png", body.Detail)
}

func TestCategoriesBody(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/api/v1/categories")

	var body []categoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, categoryResponse{ID: "num_a", Type: string(catalog.TypeNumber), Items: 1, Slots: 2, BasePrice: 25}, body[0])
}

func TestWalletBody(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/api/v1/groups/g1/wallets/u1")

	var body walletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(175), body.Balance)
	assert.Equal(t, "g1", body.GroupID)
}
