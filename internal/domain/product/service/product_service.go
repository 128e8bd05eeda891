package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"ustp_things/internal/domain/product/model"
	"ustp_things/internal/domain/product/repository"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrNoPermission    = errors.New("no permission")
)

// CreateInput 创建商品参数
type CreateInput struct {
	Name           string          `json:"name" binding:"required,max=128"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	ImageURLs      []string        `json:"image_urls"`
	PaymentMethods []string        `json:"payment_methods" binding:"required,min=1"`
	Slots          []model.Slot    `json:"slots" binding:"required,min=1"`
}

type ProductService interface {
	Create(ctx context.Context, sess session.Session, in CreateInput) (*model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, f repository.Filter, page, limit int) ([]model.Product, int64, error)
	Archive(ctx context.Context, sess session.Session, id string) error
}

type productService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func (s *productService) Create(ctx context.Context, sess session.Session, in CreateInput) (*model.Product, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	p := &model.Product{
		SellerID:       sess.UserID,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price.Round(2),
		ImageURLs:      in.ImageURLs,
		PaymentMethods: in.PaymentMethods,
		Slots:          in.Slots,
		Status:         model.StatusActive,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func validate(in CreateInput) error {
	if !in.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	}
	if len(in.PaymentMethods) == 0 {
		return fmt.Errorf("%w: at least one payment method", ErrInvalidProduct)
	}
	seen := make(map[string]bool, len(in.PaymentMethods))
	for _, m := range in.PaymentMethods {
		if !model.KnownPaymentMethod(m) {
			return fmt.Errorf("%w: unknown payment method %q", ErrInvalidProduct, m)
		}
		if seen[m] {
			return fmt.Errorf("%w: duplicate payment method %q", ErrInvalidProduct, m)
		}
		seen[m] = true
	}
	if len(in.Slots) == 0 {
		return fmt.Errorf("%w: at least one pickup slot", ErrInvalidProduct)
	}
	for _, slot := range in.Slots {
		if _, err := time.Parse("2006-01-02", slot.Date); err != nil {
			return fmt.Errorf("%w: bad slot date %q", ErrInvalidProduct, slot.Date)
		}
		if len(slot.Times) == 0 {
			return fmt.Errorf("%w: slot %s has no times", ErrInvalidProduct, slot.Date)
		}
	}
	return nil
}

func (s *productService) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *productService) List(ctx context.Context, f repository.Filter, page, limit int) ([]model.Product, int64, error) {
	p := utils.Pagination{Page: page, Limit: limit}
	offset, size := p.GetPageOffset()
	return s.repo.List(ctx, f, offset, size)
}

// Archive 下架商品，只有卖家本人或管理员可以操作
func (s *productService) Archive(ctx context.Context, sess session.Session, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.SellerID != sess.UserID && !sess.IsAdmin() {
		return ErrNoPermission
	}
	if p.Status == model.StatusArchived {
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, model.StatusArchived)
}
