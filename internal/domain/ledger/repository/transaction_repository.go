package repository

import (
	"context"
	"time"
	"ustp_things/internal/domain/ledger/model"
	basemodel "ustp_things/pkg/model"

	"gorm.io/gorm"
)

type Filter struct {
	Status   string
	BuyerID  string
	SellerID string
	From     *time.Time
	To       *time.Time
}

type TransactionRepository interface {
	// Create 唯一索引冲突时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, r *model.TransactionRecord) error
	GetByID(ctx context.Context, id string) (*model.TransactionRecord, error)
	// FindByOrderID / FindByPaymentID 不存在时返回 nil, nil
	FindByOrderID(ctx context.Context, orderID string) (*model.TransactionRecord, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.TransactionRecord, error)
	List(ctx context.Context, f Filter, offset, limit int) ([]model.TransactionRecord, int64, error)
	UpdateStatus(ctx context.Context, id, from, to string) (bool, error)
	Summary(ctx context.Context, f Filter) (*model.Summary, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, rec *model.TransactionRecord) error {
	if rec.ID == "" {
		rec.ID = basemodel.NewID()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*model.TransactionRecord, error) {
	var rec model.TransactionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *transactionRepository) findOne(ctx context.Context, column, value string) (*model.TransactionRecord, error) {
	var list []model.TransactionRecord
	err := r.db.WithContext(ctx).Where(column+" = ?", value).Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *transactionRepository) FindByOrderID(ctx context.Context, orderID string) (*model.TransactionRecord, error) {
	return r.findOne(ctx, "order_id", orderID)
}

func (r *transactionRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.TransactionRecord, error) {
	return r.findOne(ctx, "payment_id", paymentID)
}

func (r *transactionRepository) scoped(ctx context.Context, f Filter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&model.TransactionRecord{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.BuyerID != "" {
		db = db.Where("buyer_id = ?", f.BuyerID)
	}
	if f.SellerID != "" {
		db = db.Where("seller_id = ?", f.SellerID)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at < ?", *f.To)
	}
	return db
}

func (r *transactionRepository) List(ctx context.Context, f Filter, offset, limit int) ([]model.TransactionRecord, int64, error) {
	var list []model.TransactionRecord
	var total int64

	if err := r.scoped(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.scoped(ctx, f).Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TransactionRecord{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *transactionRepository) Summary(ctx context.Context, f Filter) (*model.Summary, error) {
	f.Status = model.StatusCompleted

	var s model.Summary
	err := r.scoped(ctx, f).Select(
		"COUNT(*) AS count, " +
			"COALESCE(SUM(total_amount), 0) AS gross_volume, " +
			"COALESCE(SUM(platform_revenue), 0) AS platform_revenue, " +
			"COALESCE(SUM(seller_revenue), 0) AS seller_revenue",
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
