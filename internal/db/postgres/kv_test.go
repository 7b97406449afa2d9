package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVGet(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantValue string
		wantFound bool
		wantErr   bool
	}{
		{
			name: "found",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT v FROM system_kv WHERE k = $1")).
					WithArgs("a").
					WillReturnRows(pgxmock.NewRows([]string{"v"}).AddRow("1.050000"))
			},
			wantValue: "1.050000",
			wantFound: true,
		},
		{
			name: "missing",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT v FROM system_kv WHERE k = $1")).
					WithArgs("a").
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name: "db error",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT v FROM system_kv WHERE k = $1")).
					WithArgs("a").
					WillReturnError(errors.New("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.mockSetup(mock)

			v, found, err := NewKV(mock).Get(context.Background(), "a")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantValue, v)
				assert.Equal(t, tt.wantFound, found)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestKVGetOrCreateReturnsStoredValue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (k) DO UPDATE SET k = EXCLUDED.k RETURNING v")).
		WithArgs("market_multiplier:2024-01-01:c:_category_default_", "1.100000").
		WillReturnRows(pgxmock.NewRows([]string{"v"}).AddRow("0.950000"))

	v, err := NewKV(mock).GetOrCreate(context.Background(), "market_multiplier:2024-01-01:c:_category_default_", "1.100000")
	require.NoError(t, err)
	assert.Equal(t, "0.950000", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapKV(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("WHERE system_kv.v IS DISTINCT FROM EXCLUDED.v")).
		WithArgs("last_daily_gift_date", "2024-01-01").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE system_kv.v IS DISTINCT FROM EXCLUDED.v")).
		WithArgs("last_daily_gift_date", "2024-01-01").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	swapped, err := SwapKV(context.Background(), mock, "last_daily_gift_date", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = SwapKV(context.Background(), mock, "last_daily_gift_date", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	t.Run("commit on success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_kv")).
			WithArgs("k", "v").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
			return SetKV(context.Background(), tx, "k", "v")
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("stop")
		err = WithTx(context.Background(), mock, func(tx pgx.Tx) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
