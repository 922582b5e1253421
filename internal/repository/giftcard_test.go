package repository

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastbox/checkout-api/internal/domain/discount"
)

func TestGiftCardRepository_FindByCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, code, balance, status").
		WithArgs("GC-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "code", "balance", "status"}).
			AddRow("g1", "GC-1", decimal.RequireFromString("25.00"), "active"))

	repo := NewGiftCardRepository(mock)
	gc, err := repo.FindByCode(context.Background(), "GC-1")
	require.NoError(t, err)

	assert.Equal(t, "GC-1", gc.Code)
	assert.True(t, gc.Balance.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, discount.GiftCardActive, gc.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGiftCardRepository_FindByCode_Unknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, code, balance, status").
		WithArgs("NOPE").
		WillReturnRows(pgxmock.NewRows([]string{"id", "code", "balance", "status"}))

	repo := NewGiftCardRepository(mock)
	_, err = repo.FindByCode(context.Background(), "NOPE")
	require.ErrorIs(t, err, discount.ErrInvalidGiftCard)
	require.NoError(t, mock.ExpectationsWereMet())
}
