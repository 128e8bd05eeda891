package service

import (
	"context"
	"ustp_things/internal/domain/ledger/model"
	orderModel "ustp_things/internal/domain/order/model"
	"ustp_things/internal/pkg/events"
)

type OrderStatusSubscriber struct {
	ledger LedgerService
}

func NewOrderStatusSubscriber(l LedgerService) *OrderStatusSubscriber {
	return &OrderStatusSubscriber{ledger: l}
}

func (s *OrderStatusSubscriber) Name() string { return "ledger" }

func (s *OrderStatusSubscriber) Types() []events.Type {
	return []events.Type{events.OrderStatusChanged}
}

func (s *OrderStatusSubscriber) Handle(ctx context.Context, e events.Event) error {
	// 订单取消时把流水标为 cancelled
	if e.Payload.Status != orderModel.StatusCancelled {
		return nil
	}
	return s.ledger.MarkOrderStatus(ctx, e.Payload.OrderID, model.StatusCancelled)
}
