package repository

import (
	"context"
	"ustp_things/internal/domain/product/model"

	"gorm.io/gorm"
)

// Filter 列表筛选条件，零值表示不过滤
type Filter struct {
	SellerID string
	Status   string
	Keyword  string
}

type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, f Filter, offset, limit int) ([]model.Product, int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) List(ctx context.Context, f Filter, offset, limit int) ([]model.Product, int64, error) {
	var list []model.Product
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Product{})
	if f.SellerID != "" {
		db = db.Where("seller_id = ?", f.SellerID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Keyword != "" {
		db = db.Where("name ILIKE ?", "%"+f.Keyword+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *productRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Update("status", status).Error
}
