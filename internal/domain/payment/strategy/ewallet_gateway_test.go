package strategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"ustp_things/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *EWalletGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewEWalletGateway(config.GatewayConfig{
		BaseURL:   srv.URL + "/",
		SecretKey: "sk_test",
		Timeout:   2 * time.Second,
	}, "gcash")
}

func TestCreateCharge(t *testing.T) {
	var got map[string]interface{}
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ewallets/charges", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ewc_1","status":"PENDING","actions":{"desktop_web_checkout_url":"https://checkout.example/ewc_1"}}`))
	})

	charge, err := g.CreateCharge(context.Background(), ChargeRequest{
		ReferenceID: "order_1_buyer-1",
		Amount:      decimal.RequireFromString("515"),
		Currency:    "PHP",
		ChannelCode: "PH_GCASH",
		SuccessURL:  "https://app.example/success",
	})
	require.NoError(t, err)
	assert.Equal(t, "ewc_1", charge.ID)
	assert.Equal(t, "https://checkout.example/ewc_1", charge.CheckoutURL)

	assert.Equal(t, "order_1_buyer-1", got["reference_id"])
	assert.Equal(t, "PH_GCASH", got["channel_code"])
	assert.Equal(t, float64(515), got["amount"])
	props := got["channel_properties"].(map[string]interface{})
	assert.Equal(t, "https://app.example/success", props["success_redirect_url"])
}

func TestCreateChargeMobileURL(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"ewc_2","status":"PENDING","actions":{"mobile_web_checkout_url":"https://m.checkout.example/ewc_2"}}`))
	})

	charge, err := g.CreateCharge(context.Background(), ChargeRequest{ReferenceID: "r", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "https://m.checkout.example/ewc_2", charge.CheckoutURL)
}

func TestCreateChargeError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"API_VALIDATION_ERROR","message":"amount invalid"}`))
	})

	_, err := g.CreateCharge(context.Background(), ChargeRequest{ReferenceID: "r", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "API_VALIDATION_ERROR")
}

func TestGetChargeStatus(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ewallets/charges/ewc_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"ewc_1","status":"SUCCEEDED"}`))
	})

	status, err := g.GetChargeStatus(context.Background(), "ewc_1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", status)

	_, err = g.GetChargeStatus(context.Background(), "")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestCircuitBreakerOpens(t *testing.T) {
	calls := 0
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 8; i++ {
		_, err := g.GetChargeStatus(context.Background(), "ewc_1")
		assert.ErrorIs(t, err, ErrGateway)
	}
	// 5 次失败后熔断，后续请求不再到达网关
	assert.Equal(t, 5, calls)
}
