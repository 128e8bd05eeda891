package push

import (
	"context"
	"errors"
	"fmt"
	"ustp_things/internal/pkg/events"
)

// OrderNotifier 订阅订单事件，通知卖家有新订单、通知买家订单状态变化
type OrderNotifier struct {
	svc PushService
}

func NewOrderNotifier(svc PushService) *OrderNotifier {
	return &OrderNotifier{svc: svc}
}

func (n *OrderNotifier) Name() string { return "push" }

func (n *OrderNotifier) Types() []events.Type {
	return []events.Type{events.OrderCreated, events.OrderStatusChanged, events.PaymentFailed}
}

func (n *OrderNotifier) Handle(ctx context.Context, e events.Event) error {
	var errs []error
	for _, msg := range messagesFor(e) {
		if err := n.svc.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func messagesFor(e events.Event) []Message {
	p := e.Payload
	ext := map[string]string{"event": string(e.Type), "order_id": p.OrderID}

	switch e.Type {
	case events.OrderCreated:
		return []Message{
			{Account: p.SellerID, Title: "New order", Body: fmt.Sprintf("You have a new order totalling %s", p.TotalAmount), Extras: ext},
			{Account: p.BuyerID, Title: "Order confirmed", Body: "Your order is being processed", Extras: ext},
		}
	case events.OrderStatusChanged:
		return []Message{{Account: p.BuyerID, Title: "Order update", Body: fmt.Sprintf("Your order is now %s", p.Status), Extras: ext}}
	case events.PaymentFailed:
		return []Message{{Account: p.BuyerID, Title: "Payment not completed", Body: p.Reason, Extras: ext}}
	}
	return nil
}
