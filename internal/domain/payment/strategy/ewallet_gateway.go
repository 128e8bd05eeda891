package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"ustp_things/internal/pkg/config"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// EWalletGateway 托管电子钱包收银台 (GCash / Maya)，HTTP + Basic Auth
type EWalletGateway struct {
	baseURL   string
	secretKey string
	method    string
	client    *http.Client
	cb        *gobreaker.CircuitBreaker
}

type chargeBody struct {
	ReferenceID       string            `json:"reference_id"`
	Currency          string            `json:"currency"`
	Amount            json.Number       `json:"amount"`
	CheckoutMethod    string            `json:"checkout_method"`
	ChannelCode       string            `json:"channel_code"`
	ChannelProperties channelProperties `json:"channel_properties"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type channelProperties struct {
	SuccessRedirectURL string `json:"success_redirect_url"`
	FailureRedirectURL string `json:"failure_redirect_url,omitempty"`
	CancelRedirectURL  string `json:"cancel_redirect_url,omitempty"`
}

type chargeResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Actions struct {
		DesktopWebCheckoutURL string `json:"desktop_web_checkout_url"`
		MobileWebCheckoutURL  string `json:"mobile_web_checkout_url"`
	} `json:"actions"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// NewEWalletGateway method 仅用于日志与指标标签
func NewEWalletGateway(cfg config.GatewayConfig, method string) *EWalletGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "ewallet-" + method,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &EWalletGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		method:    method,
		client:    &http.Client{Timeout: timeout},
		cb:        gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *EWalletGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := chargeBody{
		ReferenceID:    req.ReferenceID,
		Currency:       req.Currency,
		Amount:         json.Number(req.Amount.StringFixed(2)),
		CheckoutMethod: "ONE_TIME_PAYMENT",
		ChannelCode:    req.ChannelCode,
		ChannelProperties: channelProperties{
			SuccessRedirectURL: req.SuccessURL,
			FailureRedirectURL: req.FailureURL,
			CancelRedirectURL:  req.CancelURL,
		},
		Metadata: req.Metadata,
	}

	var resp chargeResponse
	if err := g.call(ctx, "create_charge", http.MethodPost, "/ewallets/charges", body, &resp); err != nil {
		return nil, err
	}

	checkoutURL := resp.Actions.DesktopWebCheckoutURL
	if checkoutURL == "" {
		checkoutURL = resp.Actions.MobileWebCheckoutURL
	}
	if resp.ID == "" || checkoutURL == "" {
		return nil, fmt.Errorf("%w: charge response missing id or checkout url", ErrGateway)
	}

	return &Charge{ID: resp.ID, Status: resp.Status, CheckoutURL: checkoutURL}, nil
}

func (g *EWalletGateway) GetChargeStatus(ctx context.Context, chargeID string) (string, error) {
	if chargeID == "" {
		return "", fmt.Errorf("%w: empty charge id", ErrGateway)
	}

	var resp chargeResponse
	if err := g.call(ctx, "get_charge", http.MethodGet, "/ewallets/charges/"+url.PathEscape(chargeID), nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// call 经熔断器发请求，所有失败统一包装为 ErrGateway
func (g *EWalletGateway) call(ctx context.Context, op, method, path string, in, out interface{}) error {
	start := time.Now()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.do(ctx, method, path, in, out)
	})
	metrics.GetGlobalCollector().ObserveGatewayCall(op, time.Since(start))

	if err != nil {
		metrics.GetGlobalCollector().RecordGatewayError(g.method, op)
		logger.Ctx(ctx).Warn("gateway call failed",
			zap.String("operation", op),
			zap.String("method", g.method),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", ErrGateway, op, err)
	}
	return nil
}

func (g *EWalletGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if traceID := logger.TraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return fmt.Errorf("status %d: %s %s", resp.StatusCode, e.ErrorCode, e.Message)
	}

	return json.Unmarshal(data, out)
}

var _ PaymentStrategy = (*EWalletGateway)(nil)
