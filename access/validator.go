package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dealflow/httpapi"
	"dealflow/inspection"
	"dealflow/negotiation"
)

// ErrNotValidated is returned when session material is requested before a
// successful validation. Negotiation actions are never exposed while the gate
// is closed.
var ErrNotValidated = errors.New("access: link has not been validated")

// DeniedError is a terminal rejection from the validate endpoint. The message
// is server-supplied verbatim; recovery is a manual retry only.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string {
	if e.Message == "" {
		return "access: denied"
	}
	return "access: denied: " + e.Message
}

// Poster is the slice of the HTTP client the validator needs.
type Poster interface {
	Post(ctx context.Context, path string, body any, out any, opts ...httpapi.RequestOption) error
}

type validateRequest struct {
	UserID       string `json:"userId"`
	InspectionID string `json:"inspectionId"`
	UserType     string `json:"userType"`
}

type validateResponse struct {
	Role  string `json:"role"`
	Token string `json:"token"`
}

// Validator gates the negotiation flow behind the backend's link validation.
// Every page load revalidates; nothing is cached across validator instances.
type Validator struct {
	api      Poster
	log      *logrus.Logger
	now      func() time.Time
	userID   string
	inspID   string
	userType negotiation.UserType

	mu        sync.Mutex
	validated bool
	token     string
	role      string
}

// NewValidator builds a validator for the (userId, inspectionId, userType)
// triple carried in a secure response link.
func NewValidator(api Poster, userID, inspectionID string, userType negotiation.UserType) *Validator {
	return &Validator{
		api:      api,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		userID:   userID,
		inspID:   inspectionID,
		userType: userType,
	}
}

func (v *Validator) WithLogger(log *logrus.Logger) *Validator {
	if log != nil {
		v.log = log
	}
	return v
}

// WithClock overrides the time source used for token expiry pre-checks.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	if now != nil {
		v.now = now
	}
	return v
}

// Validate asks the backend to confirm the link. A backend rejection or role
// mismatch surfaces as *DeniedError; transport failures pass through
// unchanged so the caller can distinguish them. Not auto-retried. Each call
// closes the gate before asking, so a failed revalidation never leaves a
// stale approval behind.
func (v *Validator) Validate(ctx context.Context) error {
	v.mu.Lock()
	v.validated = false
	v.token = ""
	v.role = ""
	v.mu.Unlock()

	if v.userID == "" || v.inspID == "" {
		return &DeniedError{Message: "incomplete access link"}
	}
	switch v.userType {
	case negotiation.UserBuyer, negotiation.UserSeller:
	default:
		return &DeniedError{Message: fmt.Sprintf("unknown user type %q", v.userType)}
	}

	req := validateRequest{
		UserID:       v.userID,
		InspectionID: v.inspID,
		UserType:     string(v.userType),
	}
	var resp validateResponse
	if err := v.api.Post(ctx, "/secure-negotiation/validate", req, &resp); err != nil {
		var se *httpapi.ServerError
		if errors.As(err, &se) {
			v.log.WithField("inspection_id", v.inspID).WithField("message", se.Message).Warn("access validation rejected")
			return &DeniedError{Message: se.Message}
		}
		return fmt.Errorf("access: validate link: %w", err)
	}

	if resp.Role != "" && resp.Role != string(v.userType) {
		return &DeniedError{Message: fmt.Sprintf("link role %q does not match claimed role %q", resp.Role, v.userType)}
	}

	v.mu.Lock()
	v.validated = true
	v.token = resp.Token
	v.role = resp.Role
	v.mu.Unlock()
	return nil
}

// Retry re-invokes validation after a denial. Identical to Validate; it
// exists so call sites read as the manual retry affordance they are.
func (v *Validator) Retry(ctx context.Context) error {
	return v.Validate(ctx)
}

// Validated reports whether the gate is open.
func (v *Validator) Validated() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.validated
}

// Credentials returns the validated credential set, including the session
// token, after a local expiry pre-check. Fails with ErrNotValidated while the
// gate is closed and with *DeniedError once the link token has lapsed.
func (v *Validator) Credentials() (negotiation.Credentials, error) {
	v.mu.Lock()
	validated, token := v.validated, v.token
	v.mu.Unlock()

	if !validated {
		return negotiation.Credentials{}, ErrNotValidated
	}
	if token != "" && tokenExpired(token, v.now()) {
		return negotiation.Credentials{}, &DeniedError{Message: "expired link"}
	}
	return negotiation.Credentials{
		UserID:       v.userID,
		InspectionID: v.inspID,
		UserType:     v.userType,
		Token:        token,
	}, nil
}

// SessionAPI is the client slice handed to a new session.
type SessionAPI interface {
	negotiation.API
}

// Session opens a negotiation session over the validated credentials and an
// already fetched record. This is the only way sessions are handed out, so a
// closed gate can never expose negotiation actions.
func (v *Validator) Session(api SessionAPI, rec inspection.Record) (*negotiation.Session, error) {
	creds, err := v.Credentials()
	if err != nil {
		return nil, err
	}
	return negotiation.NewSession(api, creds, rec).WithLogger(v.log), nil
}
