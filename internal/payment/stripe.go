package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"tabashir/internal/catalog"
)

// StripeClient creates checkout sessions and decodes webhook deliveries.
type StripeClient struct {
	webhookSecret string
}

// NewStripeClient configures the Stripe SDK with the account secret key.
func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	stripe.Key = secretKey
	return &StripeClient{webhookSecret: webhookSecret}
}

// CreateCheckout opens a provider checkout session for the service and
// returns the redirect URL. No local state is written here; the unlock only
// happens on the confirmed webhook.
func (c *StripeClient) CreateCheckout(svc catalog.Service, cctx CheckoutContext, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(svc.Currency)),
					UnitAmount: stripe.Int64(svc.AmountFils),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(svc.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.AddMetadata(paramServiceID, cctx.ServiceID)
	params.AddMetadata(paramUserID, strconv.FormatUint(uint64(cctx.UserID), 10))
	if cctx.DraftID != nil {
		params.AddMetadata(paramResumeID, strconv.FormatUint(uint64(*cctx.DraftID), 10))
	}

	s, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe checkout session: %w", err)
	}
	return s.URL, nil
}

// ParseEvent verifies the stripe-signature header over the raw body and
// decodes the event. Signature failures return ErrSignatureInvalid before
// any field is trusted; anything else the SDK rejects (undecodable event,
// api_version mismatch) is a payload problem, not a signature one.
func (c *StripeClient) ParseEvent(body []byte, signatureHeader string) (Event, error) {
	event, err := webhook.ConstructEvent(body, signatureHeader, c.webhookSecret)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		default:
			return Event{}, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
		}
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return c.completedEvent(event.Data.Raw)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
		return c.failedEvent(event.Data.Raw)
	default:
		return Event{Provider: ProviderStripe, Kind: EventIgnored}, nil
	}
}

func (c *StripeClient) completedEvent(raw json.RawMessage) (Event, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Event{}, fmt.Errorf("%w: checkout session undecodable", ErrPayloadMalformed)
	}
	if sess.ID == "" {
		return Event{}, fmt.Errorf("%w: checkout session missing id", ErrPayloadMalformed)
	}

	cctx, err := contextFromMetadata(sess.Metadata)
	if err != nil {
		return Event{}, err
	}

	currency := strings.ToUpper(string(sess.Currency))
	return Event{
		Provider:      ProviderStripe,
		Kind:          EventCompleted,
		TransactionID: sess.ID,
		Amount:        sess.AmountTotal,
		Currency:      currency,
		Context:       cctx,
	}, nil
}

func (c *StripeClient) failedEvent(raw json.RawMessage) (Event, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Event{}, fmt.Errorf("%w: checkout session undecodable", ErrPayloadMalformed)
	}
	if sess.ID == "" {
		return Event{}, fmt.Errorf("%w: checkout session missing id", ErrPayloadMalformed)
	}
	return Event{
		Provider:      ProviderStripe,
		Kind:          EventFailed,
		TransactionID: sess.ID,
	}, nil
}

func contextFromMetadata(metadata map[string]string) (CheckoutContext, error) {
	serviceID := metadata[paramServiceID]
	if serviceID == "" {
		return CheckoutContext{}, fmt.Errorf("%w: metadata missing %s", ErrPayloadMalformed, paramServiceID)
	}

	userID, err := strconv.ParseUint(metadata[paramUserID], 10, 64)
	if err != nil || userID == 0 {
		return CheckoutContext{}, fmt.Errorf("%w: metadata has invalid %s", ErrPayloadMalformed, paramUserID)
	}

	cctx := CheckoutContext{
		ServiceID: serviceID,
		UserID:    uint(userID),
	}
	if draftRaw := metadata[paramResumeID]; draftRaw != "" {
		draftID, err := strconv.ParseUint(draftRaw, 10, 64)
		if err != nil || draftID == 0 {
			return CheckoutContext{}, fmt.Errorf("%w: metadata has invalid %s", ErrPayloadMalformed, paramResumeID)
		}
		id := uint(draftID)
		cctx.DraftID = &id
	}

	if err := cctx.Validate(); err != nil {
		return CheckoutContext{}, err
	}
	return cctx, nil
}
