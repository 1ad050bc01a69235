package payment

import (
	"errors"
	"strings"
	"testing"

	"tabashir/internal/catalog"
)

func TestEncodeDecodeSuccessURL(t *testing.T) {
	draftID := uint(7)
	in := CheckoutContext{
		ServiceID: "resume-pro",
		UserID:    42,
		DraftID:   &draftID,
	}

	encoded, err := EncodeSuccessURL("https://app.example.com/payment/success", in)
	if err != nil {
		t.Fatalf("EncodeSuccessURL: %v", err)
	}
	if !strings.Contains(encoded, "serviceId=resume-pro") {
		t.Fatalf("encoded url missing service id: %s", encoded)
	}

	out, err := DecodeSuccessURL(encoded)
	if err != nil {
		t.Fatalf("DecodeSuccessURL: %v", err)
	}
	if out.ServiceID != in.ServiceID || out.UserID != in.UserID {
		t.Errorf("decoded = %+v, want %+v", out, in)
	}
	if out.DraftID == nil || *out.DraftID != draftID {
		t.Errorf("decoded draft id = %v, want %d", out.DraftID, draftID)
	}
}

func TestDecodeSuccessURLMissingParams(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"no params", "https://app.example.com/payment/success"},
		{"missing user", "https://app.example.com/payment/success?serviceId=ai-apply-50"},
		{"zero user", "https://app.example.com/payment/success?serviceId=ai-apply-50&userId=0"},
		{"garbage user", "https://app.example.com/payment/success?serviceId=ai-apply-50&userId=abc"},
		{"garbage draft", "https://app.example.com/payment/success?serviceId=resume-pro&userId=42&resumeId=xyz"},
		{"draft required but absent", "https://app.example.com/payment/success?serviceId=resume-pro&userId=42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeSuccessURL(tc.url); !errors.Is(err, ErrPayloadMalformed) {
				t.Fatalf("DecodeSuccessURL(%q) error = %v, want ErrPayloadMalformed", tc.url, err)
			}
		})
	}
}

func TestDecodeSuccessURLUnknownService(t *testing.T) {
	_, err := DecodeSuccessURL("https://app.example.com/ok?serviceId=gold-tier&userId=42")
	if !errors.Is(err, catalog.ErrUnknownService) {
		t.Fatalf("error = %v, want ErrUnknownService", err)
	}
}

func TestCheckoutContextValidate(t *testing.T) {
	if err := (CheckoutContext{ServiceID: "ai-apply-50", UserID: 1}).Validate(); err != nil {
		t.Fatalf("credits context should validate: %v", err)
	}

	err := (CheckoutContext{ServiceID: "resume-pro", UserID: 1}).Validate()
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Fatalf("draft-requiring service without draft: error = %v, want ErrPayloadMalformed", err)
	}

	err = (CheckoutContext{ServiceID: "ai-apply-50"}).Validate()
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Fatalf("zero user id: error = %v, want ErrPayloadMalformed", err)
	}
}
