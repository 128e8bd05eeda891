package service

import (
	"context"
	"errors"
	"time"
	"ustp_things/internal/domain/order/model"
	"ustp_things/internal/domain/order/repository"
	"ustp_things/internal/pkg/events"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"
	"ustp_things/pkg/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNoPermission  = errors.New("no permission")
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrCancelWindow  = errors.New("order can only be cancelled within 1 hour while processing")
)

// Publisher 事件发布
type Publisher interface {
	Publish(event events.Event)
}

type OrderService interface {
	// Create 按 ExternalID 幂等，已存在时返回已有订单且 existed=true
	Create(ctx context.Context, o *model.Order) (order *model.Order, existed bool, err error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Order, error)
	Get(ctx context.Context, sess session.Session, id string) (*model.Order, error)
	ListForBuyer(ctx context.Context, sess session.Session, status string, page, limit int) ([]model.Order, int64, error)
	ListForSeller(ctx context.Context, sess session.Session, status string, page, limit int) ([]model.Order, int64, error)
	ListAll(ctx context.Context, f repository.Filter, page, limit int) ([]model.Order, int64, error)
	// AdvanceStatus 卖家推进: Processing -> Ready for pickup -> Completed
	AdvanceStatus(ctx context.Context, sess session.Session, id, to string) (*model.Order, error)
	// Cancel 买家取消，受一小时窗口限制
	Cancel(ctx context.Context, sess session.Session, id string) (*model.Order, error)
}

type orderService struct {
	repo   repository.OrderRepository
	events Publisher
	now    func() time.Time
}

func NewOrderService(repo repository.OrderRepository, pub Publisher) OrderService {
	return &orderService{repo: repo, events: pub, now: time.Now}
}

// Payload 订单事件载荷
func Payload(o *model.Order) events.OrderPayload {
	return events.OrderPayload{
		OrderID:       o.ID,
		ExternalID:    o.ExternalID,
		BuyerID:       o.UserID,
		SellerID:      o.SellerID,
		ProductID:     o.ProductID,
		Status:        o.Status,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		PaymentMethod: o.PaymentMethod,
	}
}

func (s *orderService) publish(t events.Type, p events.OrderPayload) {
	if s.events != nil {
		s.events.Publish(events.NewEvent(t, p))
	}
}

func (s *orderService) Create(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	if o.Status == "" {
		o.Status = model.StatusProcessing
	}

	err := s.repo.Create(ctx, o)
	if err == nil {
		s.publish(events.OrderCreated, Payload(o))
		return o, false, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	// 并发回调已经写入同一 ExternalID 的订单
	existing, findErr := s.repo.FindByExternalID(ctx, o.ExternalID)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		return nil, false, err
	}
	metrics.GetGlobalCollector().RecordDuplicateSuppressed("order")
	logger.Log.Info("duplicate order suppressed", zap.String("external_id", o.ExternalID))
	return existing, true, nil
}

func (s *orderService) FindByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

func (s *orderService) load(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// Get 买家、卖家和管理员可见
func (s *orderService) Get(ctx context.Context, sess session.Session, id string) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != sess.UserID && o.SellerID != sess.UserID && !sess.IsAdmin() {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *orderService) ListForBuyer(ctx context.Context, sess session.Session, status string, page, limit int) ([]model.Order, int64, error) {
	return s.ListAll(ctx, repository.Filter{BuyerID: sess.UserID, Status: status}, page, limit)
}

func (s *orderService) ListForSeller(ctx context.Context, sess session.Session, status string, page, limit int) ([]model.Order, int64, error) {
	return s.ListAll(ctx, repository.Filter{SellerID: sess.UserID, Status: status}, page, limit)
}

func (s *orderService) ListAll(ctx context.Context, f repository.Filter, page, limit int) ([]model.Order, int64, error) {
	p := utils.Pagination{Page: page, Limit: limit}
	offset, size := p.GetPageOffset()
	return s.repo.List(ctx, f, offset, size)
}

func (s *orderService) AdvanceStatus(ctx context.Context, sess session.Session, id, to string) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sess.UserID && !sess.IsAdmin() {
		return nil, ErrNoPermission
	}
	if to == model.StatusCancelled || !model.CanTransition(o.Status, to) {
		return nil, ErrInvalidStatus
	}
	return s.transition(ctx, o, to)
}

func (s *orderService) Cancel(ctx context.Context, sess session.Session, id string) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != sess.UserID {
		return nil, ErrNoPermission
	}
	if !o.CanCancel(s.now()) {
		return nil, ErrCancelWindow
	}
	return s.transition(ctx, o, model.StatusCancelled)
}

func (s *orderService) transition(ctx context.Context, o *model.Order, to string) (*model.Order, error) {
	from := o.Status
	ok, err := s.repo.UpdateStatus(ctx, o.ID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 状态已被并发修改
		return nil, ErrInvalidStatus
	}

	o.Status = to
	p := Payload(o)
	p.PreviousStatus = from
	s.publish(events.OrderStatusChanged, p)
	return o, nil
}
