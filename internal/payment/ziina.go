package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tabashir/internal/catalog"
)

// ZiinaClient talks to the Ziina payment intent API. Ziina has no structured
// webhook metadata, so the checkout context travels on the success URL.
type ZiinaClient struct {
	httpClient    *http.Client
	apiKey        string
	webhookSecret string
	baseURL       string
}

// NewZiinaClient builds a client for the configured Ziina account.
func NewZiinaClient(apiKey, webhookSecret, baseURL string) *ZiinaClient {
	return &ZiinaClient{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

type ziinaIntentRequest struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	Message      string `json:"message"`
	SuccessURL   string `json:"success_url"`
	CancelURL    string `json:"cancel_url"`
}

type ziinaIntentResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateCheckout creates a Ziina payment intent with the checkout context
// encoded into the success URL, and returns the hosted-page redirect URL.
func (c *ZiinaClient) CreateCheckout(ctx context.Context, svc catalog.Service, cctx CheckoutContext, successURL, cancelURL string) (string, error) {
	encodedSuccess, err := EncodeSuccessURL(successURL, cctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(ziinaIntentRequest{
		Amount:       svc.AmountFils,
		CurrencyCode: svc.Currency,
		Message:      svc.Title,
		SuccessURL:   encodedSuccess,
		CancelURL:    cancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ziina intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment_intent", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ziina request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ziina: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read ziina response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ziina returned status %d", resp.StatusCode)
	}

	var intent ziinaIntentResponse
	if err := json.Unmarshal(respBody, &intent); err != nil {
		return "", fmt.Errorf("decode ziina response: %w", err)
	}
	if intent.RedirectURL == "" {
		return "", fmt.Errorf("ziina response missing redirect url")
	}
	return intent.RedirectURL, nil
}

// VerifySignature checks the x-hmac-signature header (hex HMAC-SHA256) over
// the raw webhook body.
func (c *ZiinaClient) VerifySignature(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing x-hmac-signature", ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return fmt.Errorf("%w: x-hmac-signature mismatch", ErrSignatureInvalid)
	}
	return nil
}

type ziinaWebhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		ID           string `json:"id"`
		Amount       int64  `json:"amount"`
		CurrencyCode string `json:"currency_code"`
		Status       string `json:"status"`
		SuccessURL   string `json:"success_url"`
	} `json:"data"`
}

// ParseEvent verifies the signature, then decodes the envelope and recovers
// the checkout context from the echoed success URL.
func (c *ZiinaClient) ParseEvent(body []byte, signature string) (Event, error) {
	if err := c.VerifySignature(body, signature); err != nil {
		return Event{}, err
	}

	var envelope ziinaWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: envelope undecodable", ErrPayloadMalformed)
	}
	if envelope.Event != "payment_intent.status.updated" {
		return Event{Provider: ProviderZiina, Kind: EventIgnored}, nil
	}
	if envelope.Data.ID == "" {
		return Event{}, fmt.Errorf("%w: envelope missing intent id", ErrPayloadMalformed)
	}

	switch envelope.Data.Status {
	case "completed":
		cctx, err := DecodeSuccessURL(envelope.Data.SuccessURL)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Provider:      ProviderZiina,
			Kind:          EventCompleted,
			TransactionID: envelope.Data.ID,
			Amount:        envelope.Data.Amount,
			Currency:      envelope.Data.CurrencyCode,
			Context:       cctx,
		}, nil
	case "failed", "canceled":
		return Event{
			Provider:      ProviderZiina,
			Kind:          EventFailed,
			TransactionID: envelope.Data.ID,
		}, nil
	default:
		return Event{Provider: ProviderZiina, Kind: EventIgnored}, nil
	}
}
