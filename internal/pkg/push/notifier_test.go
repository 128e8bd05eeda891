package push

import (
	"context"
	"errors"
	"testing"
	"ustp_things/internal/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPushService struct {
	mock.Mock
}

func (m *MockPushService) Send(ctx context.Context, msg Message) error {
	args := m.Called(msg.Account, msg.Title, msg.Body)
	return args.Error(0)
}

func TestOrderNotifier_OrderCreatedNotifiesBothParties(t *testing.T) {
	svc := new(MockPushService)
	svc.On("Send", "seller-1", "New order", "You have a new order totalling 515.00").Return(nil)
	svc.On("Send", "buyer-1", "Order confirmed", mock.Anything).Return(nil)

	n := NewOrderNotifier(svc)
	err := n.Handle(context.Background(), events.NewEvent(events.OrderCreated, events.OrderPayload{
		OrderID: "o1", BuyerID: "buyer-1", SellerID: "seller-1", TotalAmount: "515.00",
	}))

	assert.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestOrderNotifier_StatusChanged(t *testing.T) {
	svc := new(MockPushService)
	svc.On("Send", "buyer-1", "Order update", "Your order is now Ready for pickup").
		Return(errors.New("push down"))

	n := NewOrderNotifier(svc)
	err := n.Handle(context.Background(), events.NewEvent(events.OrderStatusChanged, events.OrderPayload{
		OrderID: "o1", BuyerID: "buyer-1", Status: "Ready for pickup",
	}))

	assert.Error(t, err)
	svc.AssertExpectations(t)
}

func TestOrderNotifier_PaymentFailed(t *testing.T) {
	svc := new(MockPushService)
	svc.On("Send", "buyer-1", "Payment not completed", "Payment expired or was closed").Return(nil)

	n := NewOrderNotifier(svc)
	err := n.Handle(context.Background(), events.NewEvent(events.PaymentFailed, events.OrderPayload{
		BuyerID: "buyer-1", Reason: "Payment expired or was closed",
	}))

	assert.NoError(t, err)
	svc.AssertExpectations(t)
}
