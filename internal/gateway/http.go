package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"freightpay/internal/config"
	"freightpay/internal/domain"
)

// HTTPClient is a resty-backed implementation of Client.
type HTTPClient struct {
	client      *resty.Client
	merchantID  string
	callbackURL string
}

// NewHTTPClient creates a gateway client from configuration.
func NewHTTPClient(cfg config.GatewayConfig) *HTTPClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &HTTPClient{
		client:      client,
		merchantID:  cfg.MerchantID,
		callbackURL: cfg.CallbackURL,
	}
}

// CreatePayment opens a checkout with the gateway.
func (c *HTTPClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = c.callbackURL
	}

	body := struct {
		CreatePaymentRequest
		MerchantID string `json:"merchantId"`
	}{CreatePaymentRequest: req, MerchantID: c.merchantID}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1/payment/request")
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned an error: %s", resp.Status())
	}

	var created CreatePaymentResponse
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &created, nil
}

// VerifyTransaction asks the gateway for the outcome of a transaction.
func (c *HTTPClient) VerifyTransaction(ctx context.Context, req VerifyRequest) (*domain.VerificationResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/payment/verify")
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned an error: %s", resp.Status())
	}

	var verified struct {
		Success bool `json:"success"`
		Pending bool `json:"pending"`
	}
	if err := json.Unmarshal(resp.Body(), &verified); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &domain.VerificationResult{Success: verified.Success, Pending: verified.Pending}, nil
}

// Ensure interface is satisfied.
var _ Client = (*HTTPClient)(nil)
