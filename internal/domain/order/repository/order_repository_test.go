package repository

import (
	"context"
	"regexp"
	"testing"
	"ustp_things/internal/domain/order/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestFindByExternalID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "user_id", "seller_id", "status", "external_id", "subtotal"}).
			AddRow("o-1", "b-1", "s-1", model.StatusProcessing, "order_1_b-1", "500.00")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE external_id = $1`)).
			WillReturnRows(rows)

		o, err := repo.FindByExternalID(ctx, "order_1_b-1")
		require.NoError(t, err)
		require.NotNil(t, o)
		assert.Equal(t, "o-1", o.ID)
		assert.Equal(t, "500", o.Subtotal.String())
	})

	t.Run("absent returns nil", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE external_id = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		o, err := repo.FindByExternalID(ctx, "order_2_b-1")
		require.NoError(t, err)
		assert.Nil(t, o)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_Conditional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET "status"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.UpdateStatus(ctx, "o-1", model.StatusProcessing, model.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET "status"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.UpdateStatus(ctx, "o-1", model.StatusProcessing, model.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}
