package service

import (
	"context"
	"errors"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"

	"go.uber.org/zap"
)

// Reconcile 买家没有从收银台跳转回来时，按网关状态补单或清理草稿
// 仍在支付中的草稿保留到 TTL 过期
func (s *paymentService) Reconcile(ctx context.Context) (int, error) {
	drafts, err := s.deps.Drafts.ListPending(ctx, s.now().Add(-s.opts.ReconcileAfter))
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, d := range drafts {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}

		if _, ok := s.strategies[d.PaymentMethod]; !ok || d.ChargeID == "" {
			metrics.GetGlobalCollector().RecordReconciled("skipped")
			continue
		}

		status := s.chargeStatus(ctx, d.PaymentMethod, d.ChargeID)
		if status == "" || IsPendingStatus(status) {
			metrics.GetGlobalCollector().RecordReconciled("pending")
			continue
		}

		res, err := s.finalize(ctx, finalizeInput{
			source:        sourceReconcile,
			externalID:    d.ExternalID,
			chargeID:      d.ChargeID,
			gatewayStatus: status,
		})
		if err != nil {
			if !errors.Is(err, ErrPaymentInProgress) {
				logger.Log.Warn("reconcile draft failed", zap.String("external_id", d.ExternalID), zap.Error(err))
			}
			metrics.GetGlobalCollector().RecordReconciled("error")
			continue
		}

		resolved++
		if res.Success {
			metrics.GetGlobalCollector().RecordReconciled("confirmed")
		} else {
			metrics.GetGlobalCollector().RecordReconciled("dropped")
		}
	}

	if resolved > 0 {
		logger.Log.Info("reconciled checkout drafts", zap.Int("resolved", resolved), zap.Int("scanned", len(drafts)))
	}
	return resolved, nil
}
