package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type CreatePaymentInput struct {
	Reference   string
	Amount      float64
	Currency    string
	Description string
	CallbackURL string
}

type GatewayPayment struct {
	RedirectURL string
}

// PaymentGateway initiates a transaction with the external provider and
// hands back the URL the user is redirected to.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*GatewayPayment, error)
}

type HTTPPaymentGateway struct {
	baseURL    string
	merchantID string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPPaymentGateway(baseURL, merchantID, apiKey string) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

func (g *HTTPPaymentGateway) CreatePayment(
	ctx context.Context,
	input CreatePaymentInput,
) (*GatewayPayment, error) {
	payload := map[string]any{
		"merchant_id":  g.merchantID,
		"reference":    input.Reference,
		"amount":       input.Amount,
		"currency":     input.Currency,
		"description":  input.Description,
		"callback_url": input.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payment payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.baseURL+"/v1/payments",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("create payment: status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}

	var response struct {
		PaymentURL string `json:"payment_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	if response.PaymentURL == "" {
		return nil, fmt.Errorf("payment url missing from response")
	}

	return &GatewayPayment{RedirectURL: response.PaymentURL}, nil
}
