package inventory

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
	"serotonyl.ru/blindbox-bot/internal/testutil"
)

var identity = common.Identity{GroupID: "g1", UserID: "u1", ChatID: 7}

func TestConsume(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		count   int
		wantErr error
	}{
		{
			name: "partial consume keeps row",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE inventory SET count = count - $5")).
					WithArgs("g1", "u1", "num_a", "X", 1).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
			},
			count: 1,
		},
		{
			name: "last unit deletes row",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE inventory SET count = count - $5")).
					WithArgs("g1", "u1", "num_a", "X", 2).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inventory")).
					WithArgs("g1", "u1", "num_a", "X").
					WillReturnResult(pgxmock.NewResult("DELETE", 1))
			},
			count: 2,
		},
		{
			name: "not enough",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE inventory SET count = count - $5")).
					WithArgs("g1", "u1", "num_a", "X", 3).
					WillReturnError(pgx.ErrNoRows)
			},
			count:   3,
			wantErr: common.ErrInsufficientQuantity,
		},
		{
			name:    "non-positive count",
			setup:   func(pgxmock.PgxPoolIface) {},
			count:   0,
			wantErr: common.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setup(mock)
			err = Consume(context.Background(), mock, "g1", "u1", "num_a", "X", tt.count)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdd(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("DO UPDATE SET count = inventory.count + EXCLUDED.count")).
		WithArgs("g1", "u1", "num_a", "X", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, Add(context.Background(), mock, "g1", "u1", "num_a", "X", 1))
	assert.ErrorIs(t, Add(context.Background(), mock, "g1", "u1", "num_a", "X", -1), common.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type registered struct{ err error }

func (r registered) EnsureRegistered(context.Context, common.Identity) error { return r.err }

type nameResolver struct{}

func (nameResolver) ItemID(_, name string) string { return name + ".png" }

type fixedQuoter map[string]int64

func (f fixedQuoter) Quote(_ context.Context, _, _, itemID string) (pricing.Quote, error) {
	return pricing.Quote{Price: f[itemID]}, nil
}

func TestHandleInventory(t *testing.T) {
	t.Run("lists entries with prices", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM inventory")).
			WithArgs("g1", "u1").
			WillReturnRows(pgxmock.NewRows([]string{"group_id", "user_id", "category_id", "item_name", "count"}).
				AddRow("g1", "u1", "num_a", "X", 2).
				AddRow("g1", "u1", "sp_b", "Y", 1))

		replier := &testutil.Replier{}
		svc := NewService(NewRepository(mock), registered{}, nameResolver{}, fixedQuoter{"X.png": 30})
		NewHandler(svc, replier).HandleInventory(context.Background(), identity)

		assert.Equal(t, "当前库存：\n"+
			"- [num_a] X x2 | 通行证单价：30 元 | 数量总价：60 元\n"+
			"- [sp_b] Y x1 | 通行证单价：待定 | 数量总价：待定\n"+
			"\n当前群：g1", replier.Last())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not registered", func(t *testing.T) {
		replier := &testutil.Replier{}
		svc := NewService(nil, registered{err: common.ErrNotRegistered}, nameResolver{}, fixedQuoter{})
		NewHandler(svc, replier).HandleInventory(context.Background(), identity)
		assert.Equal(t, common.MsgNotRegistered, replier.Last())
	})
}
