package access

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dealflow/httpapi"
	"dealflow/inspection"
	"dealflow/negotiation"
)

type fakePoster struct {
	calls    int
	err      error
	response validateResponse
}

func (f *fakePoster) Post(ctx context.Context, path string, body any, out any, opts ...httpapi.RequestOption) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	raw, err := json.Marshal(f.response)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "user-1",
	})
	signed, err := token.SignedString([]byte("server-side-secret"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func TestValidator_SuccessOpensGate(t *testing.T) {
	api := &fakePoster{response: validateResponse{Role: "buyer", Token: "tok"}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	if v.Validated() {
		t.Fatal("gate must be closed before validation")
	}
	if _, err := v.Credentials(); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("expected ErrNotValidated before validation, got %v", err)
	}
	if _, err := v.Session(nil, inspection.Record{}); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("sessions must not be handed out before validation, got %v", err)
	}

	if err := v.Validate(context.Background()); err != nil {
		t.Fatalf("validate: unexpected error: %v", err)
	}
	if !v.Validated() {
		t.Fatal("gate should be open after successful validation")
	}

	creds, err := v.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.UserID != "user-1" || creds.InspectionID != "insp-1" || creds.UserType != negotiation.UserBuyer {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if creds.Token != "tok" {
		t.Fatalf("session token not captured: %q", creds.Token)
	}
}

func TestValidator_BackendRejectionIsDenied(t *testing.T) {
	api := &fakePoster{err: &httpapi.ServerError{Status: 200, Message: "expired link"}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	err := v.Validate(context.Background())
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Message != "expired link" {
		t.Fatalf("server message not preserved verbatim: %q", denied.Message)
	}
	if v.Validated() {
		t.Fatal("gate must stay closed after denial")
	}
}

func TestValidator_TransportErrorIsNotDenial(t *testing.T) {
	api := &fakePoster{err: errors.New("connection refused")}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	err := v.Validate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var denied *DeniedError
	if errors.As(err, &denied) {
		t.Fatalf("transport failures must not masquerade as denials: %v", err)
	}
}

func TestValidator_ManualRetryRevalidates(t *testing.T) {
	api := &fakePoster{err: &httpapi.ServerError{Status: 200, Message: "expired link"}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	if err := v.Validate(context.Background()); err == nil {
		t.Fatal("expected initial denial")
	}

	api.err = nil
	api.response = validateResponse{Role: "buyer"}
	if err := v.Retry(context.Background()); err != nil {
		t.Fatalf("retry: unexpected error: %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("retry must re-invoke validation, saw %d calls", api.calls)
	}
	if !v.Validated() {
		t.Fatal("gate should open after a successful retry")
	}
}

func TestValidator_FailedRetryClosesGate(t *testing.T) {
	api := &fakePoster{response: validateResponse{Role: "buyer", Token: "tok"}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	if err := v.Validate(context.Background()); err != nil {
		t.Fatalf("validate: unexpected error: %v", err)
	}
	if !v.Validated() {
		t.Fatal("gate should be open after successful validation")
	}

	api.err = &httpapi.ServerError{Status: 200, Message: "expired link"}
	if err := v.Retry(context.Background()); err == nil {
		t.Fatal("expected the retry to be denied")
	}
	if v.Validated() {
		t.Fatal("a failed revalidation must not leave the gate open")
	}
	if _, err := v.Credentials(); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("expected ErrNotValidated after a failed revalidation, got %v", err)
	}
	if _, err := v.Session(nil, inspection.Record{}); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("sessions must not survive a failed revalidation, got %v", err)
	}
}

func TestValidator_RoleMismatchDenied(t *testing.T) {
	api := &fakePoster{response: validateResponse{Role: "seller"}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	var denied *DeniedError
	if err := v.Validate(context.Background()); !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError on role mismatch, got %v", err)
	}
}

func TestValidator_IncompleteLinkDeniedLocally(t *testing.T) {
	api := &fakePoster{}
	var denied *DeniedError

	v := NewValidator(api, "", "insp-1", negotiation.UserBuyer)
	if err := v.Validate(context.Background()); !errors.As(err, &denied) {
		t.Fatalf("expected denial for missing user id, got %v", err)
	}

	v = NewValidator(api, "user-1", "insp-1", negotiation.UserType("admin"))
	if err := v.Validate(context.Background()); !errors.As(err, &denied) {
		t.Fatalf("expected denial for unknown user type, got %v", err)
	}
	if api.calls != 0 {
		t.Fatalf("incomplete links must not reach the backend, saw %d calls", api.calls)
	}
}

func TestValidator_ExpiredTokenPreCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, now.Add(-time.Minute))

	api := &fakePoster{response: validateResponse{Role: "buyer", Token: token}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer).
		WithClock(func() time.Time { return now })

	if err := v.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var denied *DeniedError
	if _, err := v.Credentials(); !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError for lapsed token, got %v", err)
	}
	if denied.Message != "expired link" {
		t.Fatalf("unexpected denial message: %q", denied.Message)
	}
}

func TestValidator_OpaqueTokenAccepted(t *testing.T) {
	api := &fakePoster{response: validateResponse{Role: "buyer", Token: "opaque-session-token"}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer)

	if err := v.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}

	creds, err := v.Credentials()
	if err != nil {
		t.Fatalf("a non-JWT token carries no expiry info and must pass: %v", err)
	}
	if creds.Token != "opaque-session-token" {
		t.Fatalf("session token not carried through: %q", creds.Token)
	}
	if _, err := v.Session(nil, inspection.Record{}); err != nil {
		t.Fatalf("session over an opaque token: %v", err)
	}
}

func TestValidator_LiveTokenPasses(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, now.Add(time.Hour))

	api := &fakePoster{response: validateResponse{Role: "buyer", Token: token}}
	v := NewValidator(api, "user-1", "insp-1", negotiation.UserBuyer).
		WithClock(func() time.Time { return now })

	if err := v.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := v.Credentials(); err != nil {
		t.Fatalf("credentials with a live token: %v", err)
	}
}
