package boxes

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
	"serotonyl.ru/blindbox-bot/internal/testutil"
)

const (
	lockStateSQL  = "FROM category_states WHERE category_id = $1 FOR UPDATE"
	lockWalletSQL = "FROM wallets WHERE group_id = $1 AND user_id = $2 FOR UPDATE"
)

var identity = common.Identity{GroupID: "g1", UserID: "u1", ChatID: 42}

type fakeRegistry map[string]*catalog.Category

func (f fakeRegistry) Get(id string) (*catalog.Category, bool) {
	c, ok := f[id]
	return c, ok
}

func (f fakeRegistry) List() []*catalog.Category {
	out := make([]*catalog.Category, 0, len(f))
	for _, c := range f {
		out = append(out, c)
	}
	return out
}

func (f fakeRegistry) Suggest(string) string { return "" }

type fixedPrice int64

func (f fixedPrice) BasePrice(string) int64 { return int64(f) }

// forbiddenStores падает при любом обращении: цена открытия не должна ходить в БД.
type forbiddenStores struct{ t *testing.T }

func (f forbiddenStores) RemainingCount(context.Context, string) (int, error) {
	f.t.Error("unexpected RemainingCount during draw")
	return 0, errors.New("unexpected call")
}

func (f forbiddenStores) UserListingPrices(context.Context, string, string, string) ([]int64, error) {
	f.t.Error("unexpected UserListingPrices during draw")
	return nil, errors.New("unexpected call")
}

func (f forbiddenStores) GetOrCreate(context.Context, string, string) (string, error) {
	f.t.Error("unexpected GetOrCreate during draw")
	return "", errors.New("unexpected call")
}

func (f forbiddenStores) Set(context.Context, string, string) error {
	f.t.Error("unexpected Set during draw")
	return errors.New("unexpected call")
}

type fixedBalance int64

func (f fixedBalance) Balance(context.Context, common.Identity) (int64, error) { return int64(f), nil }

func testCategory() *catalog.Category {
	return &catalog.Category{
		ID:   "num_c",
		Type: catalog.TypeNumber,
		Items: map[string]*catalog.Item{
			"a.png": {ID: "a.png", Name: "a", Slot: 1},
			"b.png": {ID: "b.png", Name: "b", Slot: 2},
			"c.png": {ID: "c.png", Name: "c", Slot: 3},
		},
		Slots:     []int{1, 2, 3},
		Signature: "a.png|b.png|c.png::1,2,3",
	}
}

func newTestService(t *testing.T, price int64) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	sessions := NewSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, sessions.Set(identity.SessionKey(), "num_c"))

	runtime := config.RuntimeFunc(config.DefaultRuntimeSettings)
	svc := NewService(mock, NewRepository(mock), fakeRegistry{"num_c": testCategory()},
		fixedPrice(price), fixedBalance(200), sessions, NewCooldown(16, time.Hour), runtime)
	svc.intn = func(int) int { return 0 }
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc, mock
}

func stateRows(items, slots string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"category_id", "signature", "remaining_items", "remaining_slots"}).
		AddRow("num_c", "a.png|b.png|c.png::1,2,3", []byte(items), []byte(slots))
}

func walletRows(balance int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"group_id", "user_id", "balance", "registered_at"}).
		AddRow("g1", "u1", balance, time.Unix(0, 0))
}

func expectSuccessfulDraw(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockStateSQL)).
		WithArgs("num_c").
		WillReturnRows(stateRows(`["a.png","b.png","c.png"]`, `[1,2,3]`))
	mock.ExpectQuery(regexp.QuoteMeta(lockWalletSQL)).
		WithArgs("g1", "u1").
		WillReturnRows(walletRows(200))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT v FROM system_kv")).
		WithArgs("last_open_ts:g1:u1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO category_states")).
		WithArgs("num_c", "a.png|b.png|c.png::1,2,3", `["b.png","c.png"]`, `[1,3]`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta("AND balance >= $3")).
		WithArgs("g1", "u1", int64(25)).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(175)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_transactions")).
		WithArgs("g1", "u1", int64(-25), "draw", "num_c #2 a").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory")).
		WithArgs("g1", "u1", "num_c", "a", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_kv")).
		WithArgs("last_open_ts:g1:u1", "1700000000.000").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestDrawDebitsAndShrinksPool(t *testing.T) {
	svc, mock := newTestService(t, 25)
	expectSuccessfulDraw(mock)

	res, err := svc.Draw(context.Background(), identity, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(175), res.Balance)
	assert.Equal(t, int64(25), res.Price)
	assert.Equal(t, "a", res.Item.Name)
	assert.Len(t, res.State.Items, 2)
	assert.Equal(t, []int{1, 3}, res.State.Slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawCooldownFromMemory(t *testing.T) {
	svc, mock := newTestService(t, 25)
	expectSuccessfulDraw(mock)
	_, err := svc.Draw(context.Background(), identity, 2)
	require.NoError(t, err)

	// Через 4 секунды кулдаун (10 с) ещё действует; отметка берётся из памяти
	svc.now = func() time.Time { return time.Unix(1_700_000_004, 0) }
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockStateSQL)).
		WithArgs("num_c").
		WillReturnRows(stateRows(`["b.png","c.png"]`, `[1,3]`))
	mock.ExpectQuery(regexp.QuoteMeta(lockWalletSQL)).
		WithArgs("g1", "u1").
		WillReturnRows(walletRows(175))
	mock.ExpectRollback()

	_, err = svc.Draw(context.Background(), identity, 1)
	var cdErr *common.CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, int64(6), cdErr.WaitSeconds())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawCooldownFromDurableStore(t *testing.T) {
	svc, mock := newTestService(t, 25)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockStateSQL)).
		WithArgs("num_c").
		WillReturnRows(stateRows(`["a.png"]`, `[1]`))
	mock.ExpectQuery(regexp.QuoteMeta(lockWalletSQL)).
		WithArgs("g1", "u1").
		WillReturnRows(walletRows(200))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT v FROM system_kv")).
		WithArgs("last_open_ts:g1:u1").
		WillReturnRows(pgxmock.NewRows([]string{"v"}).AddRow("1699999999.500"))
	mock.ExpectRollback()

	_, err := svc.Draw(context.Background(), identity, 1)
	assert.ErrorIs(t, err, common.ErrCooldownActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawFailuresDoNotMutate(t *testing.T) {
	tests := []struct {
		name    string
		price   int64
		slot    int
		items   string
		slots   string
		balance int64
		wallet  bool
		check   func(t *testing.T, err error)
	}{
		{
			name: "exhausted pool", price: 25, slot: 1, items: `[]`, slots: `[1]`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrPoolExhausted) },
		},
		{
			name: "slot already opened", price: 25, slot: 2, items: `["a.png"]`, slots: `[1,3]`,
			check: func(t *testing.T, err error) {
				var slotErr *SlotUnavailableError
				require.ErrorAs(t, err, &slotErr)
				assert.Equal(t, []int{1, 3}, slotErr.Remaining)
				assert.ErrorIs(t, err, common.ErrInvalidInput)
			},
		},
		{
			name: "price undetermined", price: 0, slot: 1, items: `["a.png"]`, slots: `[1]`,
			wallet: true, balance: 200,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrPriceUndetermined) },
		},
		{
			name: "insufficient balance", price: 25, slot: 1, items: `["a.png"]`, slots: `[1]`,
			wallet: true, balance: 10,
			check: func(t *testing.T, err error) {
				var balErr *common.BalanceError
				require.ErrorAs(t, err, &balErr)
				assert.Equal(t, int64(10), balErr.Balance)
				assert.Equal(t, int64(25), balErr.Need)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newTestService(t, tt.price)
			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(lockStateSQL)).
				WithArgs("num_c").
				WillReturnRows(stateRows(tt.items, tt.slots))
			if tt.wallet {
				mock.ExpectQuery(regexp.QuoteMeta(lockWalletSQL)).
					WithArgs("g1", "u1").
					WillReturnRows(walletRows(tt.balance))
			}
			mock.ExpectRollback()

			_, err := svc.Draw(context.Background(), identity, tt.slot)
			tt.check(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDrawWithoutSelection(t *testing.T) {
	svc, mock := newTestService(t, 25)
	other := common.Identity{GroupID: "g1", UserID: "u2", ChatID: 1}

	_, err := svc.Draw(context.Background(), other, 1)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureStateResetsOnlyOnSignatureChange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("WHERE category_states.signature IS DISTINCT FROM EXCLUDED.signature")).
		WithArgs("num_c", "a.png|b.png|c.png::1,2,3", `["a.png","b.png","c.png"]`, `[1,2,3]`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, NewRepository(mock).EnsureState(context.Background(), testCategory()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleOpen(t *testing.T) {
	svc, mock := newTestService(t, 25)
	expectSuccessfulDraw(mock)
	replier := &testutil.Replier{}
	h := NewHandler(svc, replier)

	h.HandleOpen(context.Background(), identity, []string{"x"})
	assert.Equal(t, "请提供数字序号，例如：/方舟盲盒 开 3", replier.Last())

	h.HandleOpen(context.Background(), identity, []string{"2"})
	assert.Equal(t, "你选择了第 2 号盲盒，开启结果：\n"+
		"所属种类：num_c\n"+
		"奖品名称：a\n"+
		"当前卡池剩余：2\n"+
		"当前可选序号：1, 3\n"+
		"本次花费：25 元，当前余额：175 元\n"+
		"当前群：g1", replier.Last())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleStatus(t *testing.T) {
	svc, mock := newTestService(t, 25)
	replier := &testutil.Replier{}

	mock.ExpectQuery(regexp.QuoteMeta("FROM category_states WHERE category_id = $1")).
		WithArgs("num_c").
		WillReturnRows(stateRows(`["a.png","b.png"]`, `[1,2]`))

	NewHandler(svc, replier).HandleStatus(context.Background(), identity, nil)
	assert.Equal(t, "【num_c】\n卡池状态：2/3\n序号状态：2/3\n单抽价格：25 元\n你的余额：200\n当前群：g1", replier.Last())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	s := NewSessionStore(path)
	require.NoError(t, s.Set("g:u", "num_c"))

	reloaded := NewSessionStore(path)
	v, ok := reloaded.Get("g:u")
	assert.True(t, ok)
	assert.Equal(t, "num_c", v)
}

func TestRemaining(t *testing.T) {
	now := time.Unix(100, 0)
	assert.Equal(t, time.Duration(0), Remaining(time.Time{}, now, 10*time.Second))
	assert.Equal(t, time.Duration(0), Remaining(now.Add(-20*time.Second), now, 10*time.Second))
	assert.Equal(t, 3*time.Second, Remaining(now.Add(-7*time.Second), now, 10*time.Second))
	assert.Equal(t, time.Duration(0), Remaining(now, now, 0))
}

func TestHandleRefresh(t *testing.T) {
	svc, mock := newTestService(t, 25)
	replier := &testutil.Replier{}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO category_states")).
		WithArgs("num_c", "a.png|b.png|c.png::1,2,3", `["a.png","b.png","c.png"]`, `[1,2,3]`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	NewHandler(svc, replier).HandleRefresh(context.Background(), identity, nil)
	assert.Equal(t, "【num_c】已刷新。\n卡池剩余：3\n可选序号：1, 2, 3", replier.Last())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSelectUnknownCategory(t *testing.T) {
	svc, mock := newTestService(t, 25)
	replier := &testutil.Replier{}

	mock.ExpectQuery(regexp.QuoteMeta("FROM category_states WHERE category_id = $1")).
		WithArgs("num_c").
		WillReturnRows(stateRows(`["a.png"]`, `[1]`))

	NewHandler(svc, replier).HandleSelect(context.Background(), identity, []string{"num_x"})
	assert.Contains(t, replier.Last(), "不存在种类 `num_x`。")
	assert.Contains(t, replier.Last(), "num_c")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawPricesWithBaseOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	registry := fakeRegistry{"num_c": testCategory()}
	stores := forbiddenStores{t: t}
	// Лоты и множители есть у движка, но на цену открытия не влияют
	engine := pricing.NewEngine(registry, stores, stores, stores, func() pricing.Params {
		return pricing.Params{NumberBoxPrice: 25, Volatility: 0.5, ScarcityWeight: 0.8}
	}, 16, time.Hour)

	sessions := NewSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, sessions.Set(identity.SessionKey(), "num_c"))
	svc := NewService(mock, NewRepository(mock), registry, engine, fixedBalance(200), sessions,
		NewCooldown(16, time.Hour), config.RuntimeFunc(config.DefaultRuntimeSettings))
	svc.intn = func(int) int { return 0 }
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	expectSuccessfulDraw(mock)
	res, err := svc.Draw(context.Background(), identity, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}
