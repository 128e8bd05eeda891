package service

import (
	"context"
	"errors"
	"fmt"
	"ustp_things/internal/domain/ledger/model"
	"ustp_things/internal/domain/ledger/repository"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"
	"ustp_things/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction record not found")
	ErrInvalidStatus       = errors.New("invalid transaction status change")
	ErrInvalidRecord       = errors.New("invalid transaction record")
	ErrNoPermission        = errors.New("no permission")
)

// RecordInput 写流水所需的订单信息
type RecordInput struct {
	OrderID          string
	BuyerID          string
	SellerID         string
	ProductID        string
	Subtotal         decimal.Decimal
	ServiceFeeAmount decimal.Decimal
	TotalAmount      decimal.Decimal
	PaymentMethod    string
	PaymentID        *string
}

type LedgerService interface {
	// Record 幂等写入，按 OrderID 和 PaymentID 去重，已存在时返回已有记录 ID
	Record(ctx context.Context, in RecordInput) (string, error)
	UpdateStatus(ctx context.Context, sess session.Session, id, status string) (*model.TransactionRecord, error)
	// MarkOrderStatus 订单状态变化联动流水状态，流水不存在时忽略
	MarkOrderStatus(ctx context.Context, orderID, status string) error
	List(ctx context.Context, f repository.Filter, page, limit int) ([]model.TransactionRecord, int64, error)
	Summary(ctx context.Context, f repository.Filter) (*model.Summary, error)
}

type ledgerService struct {
	repo repository.TransactionRepository
}

func NewLedgerService(repo repository.TransactionRepository) LedgerService {
	return &ledgerService{repo: repo}
}

func (s *ledgerService) existing(ctx context.Context, in RecordInput) (*model.TransactionRecord, error) {
	rec, err := s.repo.FindByOrderID(ctx, in.OrderID)
	if err != nil || rec != nil {
		return rec, err
	}
	if in.PaymentID == nil || *in.PaymentID == "" {
		return nil, nil
	}
	return s.repo.FindByPaymentID(ctx, *in.PaymentID)
}

func (s *ledgerService) Record(ctx context.Context, in RecordInput) (string, error) {
	if in.OrderID == "" {
		return "", fmt.Errorf("%w: order id is required", ErrInvalidRecord)
	}

	rec, err := s.existing(ctx, in)
	if err != nil {
		return "", fmt.Errorf("lookup transaction record: %w", err)
	}
	if rec != nil {
		metrics.GetGlobalCollector().RecordDuplicateSuppressed("ledger")
		return rec.ID, nil
	}

	paymentID := in.PaymentID
	if paymentID != nil && *paymentID == "" {
		paymentID = nil
	}
	rec = &model.TransactionRecord{
		OrderID:          in.OrderID,
		BuyerID:          in.BuyerID,
		SellerID:         in.SellerID,
		ProductID:        in.ProductID,
		Subtotal:         in.Subtotal,
		ServiceFeeAmount: in.ServiceFeeAmount,
		TotalAmount:      in.TotalAmount,
		PlatformRevenue:  in.ServiceFeeAmount,
		SellerRevenue:    in.Subtotal,
		PaymentMethod:    in.PaymentMethod,
		PaymentID:        paymentID,
		Status:           model.StatusCompleted,
	}

	err = s.repo.Create(ctx, rec)
	if err == nil {
		logger.Log.Info("transaction record created",
			zap.String("transaction_id", rec.ID),
			zap.String("order_id", rec.OrderID),
		)
		return rec.ID, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", fmt.Errorf("create transaction record: %w", err)
	}

	// 并发写入撞上唯一索引，读回已有记录
	found, findErr := s.existing(ctx, in)
	if findErr != nil {
		return "", fmt.Errorf("lookup transaction record: %w", findErr)
	}
	if found == nil {
		return "", fmt.Errorf("create transaction record: %w", err)
	}
	metrics.GetGlobalCollector().RecordDuplicateSuppressed("ledger")
	return found.ID, nil
}

func (s *ledgerService) UpdateStatus(ctx context.Context, sess session.Session, id, status string) (*model.TransactionRecord, error) {
	if !sess.IsAdmin() {
		return nil, ErrNoPermission
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if !model.CanMoveTo(rec.Status, status) {
		return nil, ErrInvalidStatus
	}

	ok, err := s.repo.UpdateStatus(ctx, id, rec.Status, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidStatus
	}

	logger.Log.Info("transaction status updated",
		zap.String("transaction_id", id),
		zap.String("from", rec.Status),
		zap.String("to", status),
		zap.String("admin_id", sess.UserID),
	)
	rec.Status = status
	return rec, nil
}

func (s *ledgerService) MarkOrderStatus(ctx context.Context, orderID, status string) error {
	rec, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil || rec == nil {
		return err
	}
	if rec.Status == status || !model.CanMoveTo(rec.Status, status) {
		return nil
	}
	_, err = s.repo.UpdateStatus(ctx, rec.ID, rec.Status, status)
	return err
}

func (s *ledgerService) List(ctx context.Context, f repository.Filter, page, limit int) ([]model.TransactionRecord, int64, error) {
	p := utils.Pagination{Page: page, Limit: limit}
	offset, size := p.GetPageOffset()
	return s.repo.List(ctx, f, offset, size)
}

func (s *ledgerService) Summary(ctx context.Context, f repository.Filter) (*model.Summary, error) {
	return s.repo.Summary(ctx, f)
}
