package negotiation

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewCounterPrice_RequiresPositivePrice(t *testing.T) {
	var vErr *ValidationError

	_, err := NewCounterPrice(UserBuyer, 0)
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing counter price, got %v", err)
	}

	_, err = NewCounterPrice(UserBuyer, -500)
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for negative counter price, got %v", err)
	}

	if _, err := NewCounterPrice(UserSeller, 4_500_000); err != nil {
		t.Fatalf("seller price counter should be valid, got %v", err)
	}
}

func TestNewCounterDocument_BuyerOnly(t *testing.T) {
	var vErr *ValidationError

	_, err := NewCounterDocument(UserSeller, "https://cdn.example.com/loi.pdf")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for seller document counter, got %v", err)
	}

	_, err = NewCounterDocument(UserBuyer, "   ")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for blank document url, got %v", err)
	}

	if _, err := NewCounterDocument(UserBuyer, "https://cdn.example.com/loi.pdf"); err != nil {
		t.Fatalf("buyer document counter should be valid, got %v", err)
	}
}

func TestNewRequestChanges_SellerOnlyWithReason(t *testing.T) {
	var vErr *ValidationError

	_, err := NewRequestChanges(UserBuyer, "please fix clause 4")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for buyer request_changes, got %v", err)
	}

	_, err = NewRequestChanges(UserSeller, "")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing reason, got %v", err)
	}

	if _, err := NewRequestChanges(UserSeller, "please fix clause 4"); err != nil {
		t.Fatalf("seller request_changes should be valid, got %v", err)
	}
}

func TestNewAccept_UnknownPartiesRejected(t *testing.T) {
	var vErr *ValidationError

	_, err := NewAccept(TypePrice, UserType("admin"))
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown user type, got %v", err)
	}

	_, err = NewAccept(InspectionType("loan"), UserBuyer)
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown inspection type, got %v", err)
	}
}

func TestPayloadBody_WireShape(t *testing.T) {
	creds := Credentials{UserID: "user-1", InspectionID: "insp-1", UserType: UserBuyer}

	p, err := NewCounterPrice(UserBuyer, 4_500_000)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	body, err := p.body(creds)
	if err != nil {
		t.Fatalf("materialise body: %v", err)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}

	expect := map[string]any{
		"action":         "counter",
		"inspectionType": "price",
		"userType":       "buyer",
		"userId":         "user-1",
		"inspectionId":   "insp-1",
		"counterPrice":   float64(4_500_000),
	}
	for key, want := range expect {
		if got := wire[key]; got != want {
			t.Fatalf("wire field %q: expected %v got %v", key, want, got)
		}
	}
	for _, absent := range []string{"documentUrl", "reason"} {
		if _, ok := wire[absent]; ok {
			t.Fatalf("wire field %q should be omitted for a price counter", absent)
		}
	}
}

func TestPayloadBody_RejectsZeroPayload(t *testing.T) {
	var p Payload
	var vErr *ValidationError
	if _, err := p.body(Credentials{UserID: "u", InspectionID: "i"}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for zero payload, got %v", err)
	}
}

func TestPayloadBody_RejectsMissingCredentials(t *testing.T) {
	p, err := NewAccept(TypePrice, UserBuyer)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	var vErr *ValidationError
	if _, err := p.body(Credentials{}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing credentials, got %v", err)
	}
}

func TestPayloadBody_RejectsMalformedDocumentURL(t *testing.T) {
	p, err := NewCounterDocument(UserBuyer, "not-a-url")
	if err != nil {
		t.Fatalf("constructor should defer url shape to body validation, got %v", err)
	}
	var vErr *ValidationError
	if _, err := p.body(Credentials{UserID: "u", InspectionID: "i", UserType: UserBuyer}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for malformed document url, got %v", err)
	}
}
