package repository

import (
	"context"
	"ustp_things/internal/domain/order/model"

	"gorm.io/gorm"
)

type Filter struct {
	BuyerID  string
	SellerID string
	Status   string
}

type OrderRepository interface {
	// Create 唯一索引冲突时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// FindByExternalID 不存在时返回 nil, nil
	FindByExternalID(ctx context.Context, externalID string) (*model.Order, error)
	List(ctx context.Context, f Filter, offset, limit int) ([]model.Order, int64, error)
	// UpdateStatus 仅当当前状态为 from 时更新，返回是否更新成功
	UpdateStatus(ctx context.Context, id, from, to string) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	var list []model.Order
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *orderRepository) List(ctx context.Context, f Filter, offset, limit int) ([]model.Order, int64, error) {
	var list []model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{})
	if f.BuyerID != "" {
		db = db.Where("user_id = ?", f.BuyerID)
	}
	if f.SellerID != "" {
		db = db.Where("seller_id = ?", f.SellerID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}
