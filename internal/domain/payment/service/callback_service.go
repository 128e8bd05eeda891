package service

import (
	"context"
	"errors"
	ledgerService "ustp_things/internal/domain/ledger/service"
	orderModel "ustp_things/internal/domain/order/model"
	"ustp_things/internal/domain/payment/model"
	"ustp_things/internal/pkg/events"
	"ustp_things/internal/pkg/lock"
	"ustp_things/internal/pkg/session"
	"ustp_things/internal/pkg/worker"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"

	"go.uber.org/zap"
)

// CallbackInput 收银台跳转回来的查询参数
type CallbackInput struct {
	Status     string `form:"status"`
	ChargeID   string `form:"charge_id"`
	PaymentID  string `form:"payment_id"`
	ExternalID string `form:"external_id"`
}

// Notification 网关服务端通知，已在 handler 校验来源
type Notification struct {
	ChargeID    string
	ReferenceID string
	Status      string
}

const (
	sourceRedirect  = "redirect"
	sourceWebhook   = "webhook"
	sourceReconcile = "reconcile"
)

type finalizeInput struct {
	source         string
	externalID     string
	buyerID        string // 非空时校验草稿与订单归属
	chargeID       string
	redirectStatus string
	gatewayStatus  string // 已知的网关状态，非空时不再查询
}

func (s *paymentService) HandleCallback(ctx context.Context, sess session.Session, in CallbackInput) (*model.CallbackResult, error) {
	externalID := in.ExternalID
	if externalID == "" {
		id, err := s.deps.Drafts.PendingFor(ctx, sess.UserID)
		if err != nil {
			return s.failed(sourceRedirect, err.Error()), nil
		}
		externalID = id
	}
	if externalID == "" {
		return s.failed(sourceRedirect, ErrNoPendingOrder.Error()), nil
	}

	chargeID := in.ChargeID
	if chargeID == "" {
		chargeID = in.PaymentID
	}

	return s.finalize(ctx, finalizeInput{
		source:         sourceRedirect,
		externalID:     externalID,
		buyerID:        sess.UserID,
		chargeID:       chargeID,
		redirectStatus: in.Status,
	})
}

func (s *paymentService) HandleNotify(ctx context.Context, n Notification) (*model.CallbackResult, error) {
	if n.ReferenceID == "" {
		return s.failed(sourceWebhook, ErrNoPendingOrder.Error()), nil
	}
	return s.finalize(ctx, finalizeInput{
		source:        sourceWebhook,
		externalID:    n.ReferenceID,
		chargeID:      n.ChargeID,
		gatewayStatus: n.Status,
	})
}

// finalize 同一 ExternalID 最多产生一个订单和一条流水
// 分布式锁串行化并发回调，订单表 external_id 唯一索引兜底
func (s *paymentService) finalize(ctx context.Context, in finalizeInput) (*model.CallbackResult, error) {
	release, err := s.deps.Locker.Acquire(ctx, "checkout:"+in.externalID)
	if err != nil {
		if errors.Is(err, lock.ErrLockBusy) {
			return nil, ErrPaymentInProgress
		}
		return nil, err
	}
	defer release()

	log := logger.Ctx(ctx).With(zap.String("external_id", in.externalID), zap.String("source", in.source))

	draft, err := s.deps.Drafts.Get(ctx, in.externalID)
	if err != nil {
		return s.abort(ctx, in, nil, err), nil
	}
	if draft != nil && in.buyerID != "" && draft.BuyerID != in.buyerID {
		log.Warn("draft belongs to another buyer", zap.String("buyer_id", in.buyerID))
		return s.failed(in.source, ErrNoPendingOrder.Error()), nil
	}

	order, err := s.deps.Orders.FindByExternalID(ctx, in.externalID)
	if err != nil {
		return s.abort(ctx, in, draft, err), nil
	}
	if order != nil && in.buyerID != "" && order.UserID != in.buyerID {
		return s.failed(in.source, ErrNoPendingOrder.Error()), nil
	}

	processed, err := s.deps.Drafts.IsProcessed(ctx, in.externalID)
	if err != nil {
		return s.abort(ctx, in, draft, err), nil
	}

	switch {
	case order != nil && processed:
		// 重复回调 (如两个标签页)，不做任何写入
		if draft != nil {
			s.clearDraft(ctx, draft.ExternalID, draft.BuyerID)
		}
		metrics.GetGlobalCollector().RecordDuplicateSuppressed("callback")
		return s.succeeded(in.source, order, "", true), nil

	case order == nil && draft == nil:
		return s.failed(in.source, ErrNoPendingOrder.Error()), nil

	case order != nil:
		// 订单已写入但尚未打标记，补齐流水
		log.Info("order already exists, ensuring transaction record")
		txID := s.ensureLedger(ctx, order)
		s.markProcessed(ctx, in.externalID)
		if draft != nil {
			s.clearDraft(ctx, draft.ExternalID, draft.BuyerID)
		}
		return s.succeeded(in.source, order, txID, true), nil
	}

	chargeID := in.chargeID
	if chargeID == "" {
		chargeID = draft.ChargeID
	}

	status := in.gatewayStatus
	if status == "" {
		status = s.chargeStatus(ctx, draft.PaymentMethod, chargeID)
	}
	if status == "" {
		// 查询失败，以跳转参数为准
		status = in.redirectStatus
	}

	if !IsSuccessfulStatus(status) {
		if IsPendingStatus(status) {
			// 网关尚未结算，保留草稿，等待 webhook 或对账任务
			log.Info("payment still pending, keeping draft", zap.String("status", status))
			return s.failed(in.source, failureReason(status)), nil
		}
		reason := failureReason(status)
		s.clearDraft(ctx, draft.ExternalID, draft.BuyerID)
		s.publishFailed(draft, reason)
		log.Info("payment not successful", zap.String("status", status))
		return s.failed(in.source, reason), nil
	}

	created, existed, err := s.deps.Orders.Create(ctx, orderFromDraft(draft, chargeID))
	if err != nil {
		return s.abort(ctx, in, draft, err), nil
	}

	txID := s.ensureLedger(ctx, created)
	s.markProcessed(ctx, in.externalID)
	s.clearDraft(ctx, draft.ExternalID, draft.BuyerID)

	log.Info("payment finalized",
		zap.String("order_id", created.ID),
		zap.String("charge_id", chargeID),
		zap.Bool("existed", existed),
	)
	return s.succeeded(in.source, created, txID, existed), nil
}

// chargeStatus 查询失败返回空串，由调用方回退
func (s *paymentService) chargeStatus(ctx context.Context, method, chargeID string) string {
	st, ok := s.strategies[method]
	if !ok || chargeID == "" {
		return ""
	}
	status, err := st.GetChargeStatus(ctx, chargeID)
	if err != nil {
		logger.Ctx(ctx).Warn("get charge status failed, falling back to redirect status",
			zap.String("charge_id", chargeID),
			zap.Error(err),
		)
		return ""
	}
	return status
}

// ensureLedger 流水写入失败不影响订单，记录后交给重试池
func (s *paymentService) ensureLedger(ctx context.Context, o *orderModel.Order) string {
	in := ledgerService.RecordInput{
		OrderID:          o.ID,
		BuyerID:          o.UserID,
		SellerID:         o.SellerID,
		ProductID:        o.ProductID,
		Subtotal:         o.Subtotal,
		ServiceFeeAmount: o.ServiceFeeAmount,
		TotalAmount:      o.TotalAmount,
		PaymentMethod:    o.PaymentMethod,
		PaymentID:        o.PaymentID,
	}

	id, err := s.deps.Ledger.Record(ctx, in)
	if err == nil {
		return id
	}

	metrics.GetGlobalCollector().RecordLedgerFailure()
	logger.Ctx(ctx).Error("record transaction failed",
		zap.String("order_id", o.ID),
		zap.String("external_id", o.ExternalID),
		zap.Error(err),
	)

	if s.deps.Retrier != nil {
		ledger := s.deps.Ledger
		s.deps.Retrier.AddTask(worker.Task{
			Name: "ledger:" + o.ID,
			Run: func(ctx context.Context) error {
				_, err := ledger.Record(ctx, in)
				return err
			},
		})
	}
	return ""
}

func (s *paymentService) markProcessed(ctx context.Context, externalID string) {
	if err := s.deps.Drafts.MarkProcessed(ctx, externalID, s.opts.ProcessedTTL); err != nil {
		logger.Ctx(ctx).Warn("mark processed failed", zap.String("external_id", externalID), zap.Error(err))
	}
}

func (s *paymentService) clearDraft(ctx context.Context, externalID, buyerID string) {
	if err := s.deps.Drafts.Delete(ctx, externalID, buyerID); err != nil {
		logger.Ctx(ctx).Warn("clear draft failed", zap.String("external_id", externalID), zap.Error(err))
	}
}

func (s *paymentService) publishFailed(d *model.CheckoutDraft, reason string) {
	s.publish(events.PaymentFailed, events.OrderPayload{
		ExternalID:    d.ExternalID,
		BuyerID:       d.BuyerID,
		SellerID:      d.SellerID,
		ProductID:     d.ProductID,
		TotalAmount:   d.TotalAmount.StringFixed(2),
		PaymentMethod: d.PaymentMethod,
		Reason:        reason,
	})
}

// abort 意外错误：清理草稿并返回失败
func (s *paymentService) abort(ctx context.Context, in finalizeInput, d *model.CheckoutDraft, err error) *model.CallbackResult {
	logger.Ctx(ctx).Error("payment finalization failed",
		zap.String("external_id", in.externalID),
		zap.String("source", in.source),
		zap.Error(err),
	)
	if d != nil {
		s.clearDraft(ctx, d.ExternalID, d.BuyerID)
	}
	return s.failed(in.source, err.Error())
}

func (s *paymentService) failed(source, reason string) *model.CallbackResult {
	metrics.GetGlobalCollector().RecordCallback(source, "failure")
	return &model.CallbackResult{Success: false, Reason: reason}
}

func (s *paymentService) succeeded(source string, o *orderModel.Order, txID string, duplicate bool) *model.CallbackResult {
	outcome := "success"
	if duplicate {
		outcome = "duplicate"
	}
	metrics.GetGlobalCollector().RecordCallback(source, outcome)
	return &model.CallbackResult{Success: true, Duplicate: duplicate, Order: confirmation(o, txID)}
}
