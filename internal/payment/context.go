package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"tabashir/internal/catalog"
)

// ErrSignatureInvalid marks a webhook whose signature does not verify.
// Handlers must perform no mutation after seeing it.
var ErrSignatureInvalid = errors.New("provider signature invalid")

// ErrPayloadMalformed marks a webhook body or echoed URL that cannot be
// decoded into a checkout context.
var ErrPayloadMalformed = errors.New("provider payload malformed")

// CheckoutContext identifies what a checkout pays for and who it belongs to.
// Stripe carries it as native metadata; Ziina gets it encoded into the
// success URL's query string and echoed back on the webhook.
type CheckoutContext struct {
	ServiceID string
	UserID    uint
	DraftID   *uint
}

// Validate checks the context against the static catalog.
func (c CheckoutContext) Validate() error {
	svc, err := catalog.Lookup(c.ServiceID)
	if err != nil {
		return err
	}
	if c.UserID == 0 {
		return fmt.Errorf("%w: missing user id", ErrPayloadMalformed)
	}
	if svc.RequiresDraft && c.DraftID == nil {
		return fmt.Errorf("%w: service %q requires a draft id", ErrPayloadMalformed, c.ServiceID)
	}
	return nil
}

// Query parameter names echoed through provider success URLs.
const (
	paramServiceID = "serviceId"
	paramUserID    = "userId"
	paramResumeID  = "resumeId"
)

// EncodeSuccessURL appends the checkout context to a success URL for
// providers without structured metadata.
func EncodeSuccessURL(successURL string, ctx CheckoutContext) (string, error) {
	u, err := url.Parse(successURL)
	if err != nil {
		return "", fmt.Errorf("parse success url: %w", err)
	}
	q := u.Query()
	q.Set(paramServiceID, ctx.ServiceID)
	q.Set(paramUserID, strconv.FormatUint(uint64(ctx.UserID), 10))
	if ctx.DraftID != nil {
		q.Set(paramResumeID, strconv.FormatUint(uint64(*ctx.DraftID), 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DecodeSuccessURL recovers a checkout context from an echoed success URL.
// This is the last-resort decoder for providers without metadata; missing or
// malformed parameters fail the whole decode so the handler performs no
// partial update.
func DecodeSuccessURL(raw string) (CheckoutContext, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return CheckoutContext{}, fmt.Errorf("%w: success url unparseable", ErrPayloadMalformed)
	}
	q := u.Query()

	serviceID := q.Get(paramServiceID)
	if serviceID == "" {
		return CheckoutContext{}, fmt.Errorf("%w: success url missing %s", ErrPayloadMalformed, paramServiceID)
	}

	userRaw := q.Get(paramUserID)
	userID, err := strconv.ParseUint(userRaw, 10, 64)
	if err != nil || userID == 0 {
		return CheckoutContext{}, fmt.Errorf("%w: success url has invalid %s", ErrPayloadMalformed, paramUserID)
	}

	ctx := CheckoutContext{
		ServiceID: serviceID,
		UserID:    uint(userID),
	}

	if draftRaw := q.Get(paramResumeID); draftRaw != "" {
		draftID, err := strconv.ParseUint(draftRaw, 10, 64)
		if err != nil || draftID == 0 {
			return CheckoutContext{}, fmt.Errorf("%w: success url has invalid %s", ErrPayloadMalformed, paramResumeID)
		}
		id := uint(draftID)
		ctx.DraftID = &id
	}

	if err := ctx.Validate(); err != nil {
		return CheckoutContext{}, err
	}
	return ctx, nil
}
