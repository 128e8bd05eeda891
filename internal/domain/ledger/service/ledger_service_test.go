package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"ustp_things/internal/domain/ledger/model"
	"ustp_things/internal/domain/ledger/repository"
	orderModel "ustp_things/internal/domain/order/model"
	"ustp_things/internal/pkg/events"
	"ustp_things/internal/pkg/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, r *model.TransactionRecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*model.TransactionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*model.TransactionRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.TransactionRecord, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, f repository.Filter, offset, limit int) ([]model.TransactionRecord, int64, error) {
	args := m.Called(ctx, f, offset, limit)
	return args.Get(0).([]model.TransactionRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) Summary(ctx context.Context, f repository.Filter) (*model.Summary, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

// memoryRepository 内存实现，用于并发幂等测试
type memoryRepository struct {
	MockTransactionRepository
	mu      sync.Mutex
	records map[string]*model.TransactionRecord
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: map[string]*model.TransactionRecord{}}
}

func (r *memoryRepository) Create(ctx context.Context, rec *model.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.OrderID]; ok {
		return gorm.ErrDuplicatedKey
	}
	rec.ID = "tx-" + rec.OrderID
	cp := *rec
	r.records[rec.OrderID] = &cp
	return nil
}

func (r *memoryRepository) FindByOrderID(ctx context.Context, orderID string) (*model.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orderID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.PaymentID != nil && *rec.PaymentID == paymentID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func strPtr(s string) *string { return &s }

func sampleInput() RecordInput {
	return RecordInput{
		OrderID:          "order-1",
		BuyerID:          "buyer-1",
		SellerID:         "seller-1",
		ProductID:        "product-1",
		Subtotal:         decimal.RequireFromString("500"),
		ServiceFeeAmount: decimal.RequireFromString("15"),
		TotalAmount:      decimal.RequireFromString("515"),
		PaymentMethod:    "gcash",
		PaymentID:        strPtr("ewc_123"),
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("creates completed record with revenue split", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		repo.On("FindByOrderID", ctx, "order-1").Return(nil, nil)
		repo.On("FindByPaymentID", ctx, "ewc_123").Return(nil, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(r *model.TransactionRecord) bool {
			return r.Status == model.StatusCompleted &&
				r.PlatformRevenue.Equal(decimal.RequireFromString("15")) &&
				r.SellerRevenue.Equal(decimal.RequireFromString("500")) &&
				r.TotalAmount.Equal(decimal.RequireFromString("515"))
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*model.TransactionRecord).ID = "tx-1"
		}).Return(nil)

		id, err := svc.Record(ctx, sampleInput())
		require.NoError(t, err)
		assert.Equal(t, "tx-1", id)
		repo.AssertExpectations(t)
	})

	t.Run("existing order returns existing id", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		repo.On("FindByOrderID", ctx, "order-1").Return(&model.TransactionRecord{ID: "tx-old"}, nil)

		id, err := svc.Record(ctx, sampleInput())
		require.NoError(t, err)
		assert.Equal(t, "tx-old", id)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("existing payment id returns existing id", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		repo.On("FindByOrderID", ctx, "order-1").Return(nil, nil)
		repo.On("FindByPaymentID", ctx, "ewc_123").Return(&model.TransactionRecord{ID: "tx-pay"}, nil)

		id, err := svc.Record(ctx, sampleInput())
		require.NoError(t, err)
		assert.Equal(t, "tx-pay", id)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("empty payment id is stored as null", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		in := sampleInput()
		in.PaymentID = strPtr("")
		repo.On("FindByOrderID", ctx, "order-1").Return(nil, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(r *model.TransactionRecord) bool {
			return r.PaymentID == nil
		})).Return(nil)

		_, err := svc.Record(ctx, in)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FindByPaymentID", mock.Anything, mock.Anything)
	})

	t.Run("duplicate key re-reads winner", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		repo.On("FindByOrderID", ctx, "order-1").Return(nil, nil).Once()
		repo.On("FindByPaymentID", ctx, "ewc_123").Return(nil, nil).Once()
		repo.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey)
		repo.On("FindByOrderID", ctx, "order-1").Return(&model.TransactionRecord{ID: "tx-winner"}, nil).Once()

		id, err := svc.Record(ctx, sampleInput())
		require.NoError(t, err)
		assert.Equal(t, "tx-winner", id)
	})

	t.Run("missing order id", func(t *testing.T) {
		svc := NewLedgerService(new(MockTransactionRepository))
		_, err := svc.Record(ctx, RecordInput{})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		repo.On("FindByOrderID", ctx, "order-1").Return(nil, nil)
		repo.On("FindByPaymentID", ctx, "ewc_123").Return(nil, nil)
		repo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))

		_, err := svc.Record(ctx, sampleInput())
		assert.Error(t, err)
	})
}

func TestRecordConcurrent(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewLedgerService(repo)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.Record(context.Background(), sampleInput())
			if assert.NoError(t, err) {
				ids[i] = id
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, repo.records, 1)
	for _, id := range ids {
		assert.Equal(t, "tx-order-1", id)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	admin := session.Session{UserID: "admin-1", Role: session.RoleAdmin}

	t.Run("admin refunds completed record", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)

		repo.On("GetByID", ctx, "tx-1").Return(&model.TransactionRecord{ID: "tx-1", Status: model.StatusCompleted}, nil)
		repo.On("UpdateStatus", ctx, "tx-1", model.StatusCompleted, model.StatusRefunded).Return(true, nil)

		rec, err := svc.UpdateStatus(ctx, admin, "tx-1", model.StatusRefunded)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRefunded, rec.Status)
	})

	t.Run("non admin rejected", func(t *testing.T) {
		svc := NewLedgerService(new(MockTransactionRepository))
		_, err := svc.UpdateStatus(ctx, session.Session{UserID: "u", Role: session.RoleUser}, "tx-1", model.StatusRefunded)
		assert.ErrorIs(t, err, ErrNoPermission)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)
		repo.On("GetByID", ctx, "missing").Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.UpdateStatus(ctx, admin, "missing", model.StatusRefunded)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("refunded cannot change again", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)
		repo.On("GetByID", ctx, "tx-1").Return(&model.TransactionRecord{ID: "tx-1", Status: model.StatusRefunded}, nil)

		_, err := svc.UpdateStatus(ctx, admin, "tx-1", model.StatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("lost race", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewLedgerService(repo)
		repo.On("GetByID", ctx, "tx-1").Return(&model.TransactionRecord{ID: "tx-1", Status: model.StatusCompleted}, nil)
		repo.On("UpdateStatus", ctx, "tx-1", model.StatusCompleted, model.StatusFailed).Return(false, nil)

		_, err := svc.UpdateStatus(ctx, admin, "tx-1", model.StatusFailed)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestOrderStatusSubscriber(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelled order cancels record", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		sub := NewOrderStatusSubscriber(NewLedgerService(repo))

		repo.On("FindByOrderID", ctx, "order-1").Return(&model.TransactionRecord{ID: "tx-1", Status: model.StatusCompleted}, nil)
		repo.On("UpdateStatus", ctx, "tx-1", model.StatusCompleted, model.StatusCancelled).Return(true, nil)

		err := sub.Handle(ctx, events.NewEvent(events.OrderStatusChanged, events.OrderPayload{OrderID: "order-1", Status: orderModel.StatusCancelled}))
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("other transitions ignored", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		sub := NewOrderStatusSubscriber(NewLedgerService(repo))

		err := sub.Handle(ctx, events.NewEvent(events.OrderStatusChanged, events.OrderPayload{OrderID: "order-1", Status: orderModel.StatusCompleted}))
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FindByOrderID", mock.Anything, mock.Anything)
	})

	t.Run("ledger status names are not order statuses", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		sub := NewOrderStatusSubscriber(NewLedgerService(repo))

		err := sub.Handle(ctx, events.NewEvent(events.OrderStatusChanged, events.OrderPayload{OrderID: "order-1", Status: model.StatusCancelled}))
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FindByOrderID", mock.Anything, mock.Anything)
	})

	t.Run("order without record", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		sub := NewOrderStatusSubscriber(NewLedgerService(repo))
		repo.On("FindByOrderID", ctx, "order-2").Return(nil, nil)

		err := sub.Handle(ctx, events.NewEvent(events.OrderStatusChanged, events.OrderPayload{OrderID: "order-2", Status: orderModel.StatusCancelled}))
		assert.NoError(t, err)
	})
}
