package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"ustp_things/internal/domain/payment/model"
	"ustp_things/internal/domain/payment/service"
	"ustp_things/internal/domain/payment/strategy"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RegisterStrategy(method string, s strategy.PaymentStrategy) {
	m.Called(method, s)
}

func (m *MockPaymentService) Quote(ctx context.Context, sess session.Session, in service.CheckoutInput) (*service.Quote, error) {
	args := m.Called(ctx, sess, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Quote), args.Error(1)
}

func (m *MockPaymentService) Checkout(ctx context.Context, sess session.Session, in service.CheckoutInput) (*service.CheckoutResult, error) {
	args := m.Called(ctx, sess, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CheckoutResult), args.Error(1)
}

func (m *MockPaymentService) HandleCallback(ctx context.Context, sess session.Session, in service.CallbackInput) (*model.CallbackResult, error) {
	args := m.Called(ctx, sess, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CallbackResult), args.Error(1)
}

func (m *MockPaymentService) HandleNotify(ctx context.Context, n service.Notification) (*model.CallbackResult, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CallbackResult), args.Error(1)
}

func (m *MockPaymentService) Reconcile(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var buyer = session.Session{UserID: "buyer-1", Role: session.RoleUser}

func newRouter(svc service.PaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPaymentHandler(svc, "cb-token")
	withSession := func(c *gin.Context) {
		middleware.SetSession(c, buyer)
		c.Next()
	}
	r.POST("/payment/checkout", withSession, h.Checkout)
	r.GET("/payment/callback", withSession, h.Callback)
	r.POST("/payment/notify/ewallet", h.EWalletNotify)
	return r
}

func do(r *gin.Engine, method, path string, body []byte, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestCheckoutHandler(t *testing.T) {
	body := []byte(`{"product_id":"product-1","quantity":1,"pickup_date":"2026-10-20","pickup_time":"10:00","payment_method":"gcash"}`)

	t.Run("gateway error is 502", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Checkout", mock.Anything, buyer, mock.Anything).Return(nil, service.ErrPaymentGateway)

		w, env := do(newRouter(svc), http.MethodPost, "/payment/checkout", body, nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, response.ErrPaymentGateway, env.Code)
	})

	t.Run("invalid form is 400", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Checkout", mock.Anything, buyer, mock.Anything).Return(nil, service.ErrCheckoutInvalid)

		w, env := do(newRouter(svc), http.MethodPost, "/payment/checkout", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrCheckoutInvalid, env.Code)
	})

	t.Run("quantity out of range rejected before service", func(t *testing.T) {
		svc := new(MockPaymentService)
		w, _ := do(newRouter(svc), http.MethodPost, "/payment/checkout", []byte(`{"product_id":"p","quantity":0}`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("redirect", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Checkout", mock.Anything, buyer, mock.MatchedBy(func(in service.CheckoutInput) bool {
			return in.ProductID == "product-1" && in.PaymentMethod == "gcash"
		})).Return(&service.CheckoutResult{Path: "ewallet", ExternalID: "order_1_buyer-1", CheckoutURL: "https://pay.example"}, nil)

		w, env := do(newRouter(svc), http.MethodPost, "/payment/checkout", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, response.CodeSuccess, env.Code)
		assert.Contains(t, string(env.Data), "https://pay.example")
	})
}

func TestCallbackHandler(t *testing.T) {
	t.Run("failure carries reason", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("HandleCallback", mock.Anything, buyer, service.CallbackInput{Status: "cancelled", ExternalID: "order_1_buyer-1"}).
			Return(&model.CallbackResult{Success: false, Reason: "Payment was cancelled"}, nil)

		w, env := do(newRouter(svc), http.MethodGet, "/payment/callback?status=cancelled&external_id=order_1_buyer-1", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, response.ErrPaymentFailed, env.Code)
		assert.Equal(t, "Payment was cancelled", env.Message)
	})

	t.Run("success", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("HandleCallback", mock.Anything, buyer, service.CallbackInput{Status: "success", ChargeID: "ewc_1"}).
			Return(&model.CallbackResult{Success: true, Order: &model.OrderConfirmation{OrderID: "order-1"}}, nil)

		_, env := do(newRouter(svc), http.MethodGet, "/payment/callback?status=success&charge_id=ewc_1", nil, nil)
		assert.Equal(t, response.CodeSuccess, env.Code)
		assert.Contains(t, string(env.Data), "order-1")
	})

	t.Run("in progress", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("HandleCallback", mock.Anything, buyer, mock.Anything).Return(nil, service.ErrPaymentInProgress)

		w, _ := do(newRouter(svc), http.MethodGet, "/payment/callback?status=success", nil, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestEWalletNotifyHandler(t *testing.T) {
	body := []byte(`{"event":"ewallet.capture","data":{"id":"ewc_1","reference_id":"order_1_buyer-1","status":"SUCCEEDED"}}`)

	t.Run("rejects bad token", func(t *testing.T) {
		svc := new(MockPaymentService)
		w, _ := do(newRouter(svc), http.MethodPost, "/payment/notify/ewallet", body, map[string]string{"X-Callback-Token": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "HandleNotify", mock.Anything, mock.Anything)
	})

	t.Run("forwards notification", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("HandleNotify", mock.Anything, service.Notification{ChargeID: "ewc_1", ReferenceID: "order_1_buyer-1", Status: "SUCCEEDED"}).
			Return(&model.CallbackResult{Success: true}, nil)

		w, _ := do(newRouter(svc), http.MethodPost, "/payment/notify/ewallet", body, map[string]string{"X-Callback-Token": "cb-token"})
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("acknowledges non charge events", func(t *testing.T) {
		svc := new(MockPaymentService)
		refund := []byte(`{"event":"ewallet.refund","data":{"id":"ewr_1","reference_id":"order_1_buyer-1","status":"PENDING"}}`)

		w, env := do(newRouter(svc), http.MethodPost, "/payment/notify/ewallet", refund, map[string]string{"X-Callback-Token": "cb-token"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, env.Code)
		svc.AssertNotCalled(t, "HandleNotify", mock.Anything, mock.Anything)
	})
}
