package negotiation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"dealflow/inspection"
)

// Action is the kind of response a party dispatches.
type Action string

const (
	ActionAccept         Action = "accept"
	ActionReject         Action = "reject"
	ActionCounter        Action = "counter"
	ActionRequestChanges Action = "request_changes"
)

// InspectionType disambiguates the negotiation track for the backend.
type InspectionType string

const (
	TypePrice InspectionType = "price"
	TypeLOI   InspectionType = "LOI"
)

// TypeFor maps the derived negotiation type onto its wire value.
func TypeFor(nt inspection.NegotiationType) InspectionType {
	if nt == inspection.TypeLOI {
		return TypeLOI
	}
	return TypePrice
}

// UserType identifies which side of the table is acting.
type UserType string

const (
	UserBuyer  UserType = "buyer"
	UserSeller UserType = "seller"
)

// ValidationError is a local payload defect caught before any network
// dispatch. It is never sent to the server.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "negotiation: invalid payload: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Payload is a validated negotiation action. The zero value is not usable;
// payloads are only obtainable through the constructors below, which enforce
// the (action, inspectionType, userType) validity matrix so malformed
// combinations are unrepresentable.
type Payload struct {
	action         Action
	inspectionType InspectionType
	userType       UserType
	counterPrice   int64
	documentURL    string
	reason         string
}

// Action returns the payload's action tag.
func (p Payload) Action() Action { return p.action }

// InspectionType returns the payload's negotiation track.
func (p Payload) InspectionType() InspectionType { return p.inspectionType }

// UserType returns the acting party.
func (p Payload) UserType() UserType { return p.userType }

// NewAccept builds an acceptance for either track and either party.
func NewAccept(it InspectionType, ut UserType) (Payload, error) {
	if err := checkCommon(it, ut); err != nil {
		return Payload{}, err
	}
	return Payload{action: ActionAccept, inspectionType: it, userType: ut}, nil
}

// NewReject builds a rejection; the reason is optional.
func NewReject(it InspectionType, ut UserType, reason string) (Payload, error) {
	if err := checkCommon(it, ut); err != nil {
		return Payload{}, err
	}
	return Payload{action: ActionReject, inspectionType: it, userType: ut, reason: strings.TrimSpace(reason)}, nil
}

// NewCounterPrice builds a price counter-offer on the price track.
func NewCounterPrice(ut UserType, price int64) (Payload, error) {
	if err := checkCommon(TypePrice, ut); err != nil {
		return Payload{}, err
	}
	if price <= 0 {
		return Payload{}, invalid("counter on a price negotiation requires a positive counter price")
	}
	return Payload{action: ActionCounter, inspectionType: TypePrice, userType: ut, counterPrice: price}, nil
}

// NewCounterDocument builds a document counter-offer on the LOI track. Only
// the buyer re-uploads a letter of intention.
func NewCounterDocument(ut UserType, documentURL string) (Payload, error) {
	if err := checkCommon(TypeLOI, ut); err != nil {
		return Payload{}, err
	}
	if ut != UserBuyer {
		return Payload{}, invalid("only the buyer may counter with a document")
	}
	if strings.TrimSpace(documentURL) == "" {
		return Payload{}, invalid("counter on an LOI negotiation requires a document url")
	}
	return Payload{action: ActionCounter, inspectionType: TypeLOI, userType: ut, documentURL: strings.TrimSpace(documentURL)}, nil
}

// NewRequestChanges builds a change request on the LOI track. Seller only,
// and a reason is mandatory.
func NewRequestChanges(ut UserType, reason string) (Payload, error) {
	if err := checkCommon(TypeLOI, ut); err != nil {
		return Payload{}, err
	}
	if ut != UserSeller {
		return Payload{}, invalid("only the seller may request changes")
	}
	if strings.TrimSpace(reason) == "" {
		return Payload{}, invalid("request_changes requires a reason")
	}
	return Payload{action: ActionRequestChanges, inspectionType: TypeLOI, userType: ut, reason: strings.TrimSpace(reason)}, nil
}

func checkCommon(it InspectionType, ut UserType) error {
	switch it {
	case TypePrice, TypeLOI:
	default:
		return invalid("unknown inspection type %q", it)
	}
	switch ut {
	case UserBuyer, UserSeller:
	default:
		return invalid("unknown user type %q", ut)
	}
	return nil
}

// Body is the wire shape posted to the action endpoint.
type Body struct {
	Action         Action         `json:"action" validate:"required,oneof=accept reject counter request_changes"`
	InspectionType InspectionType `json:"inspectionType" validate:"required,oneof=price LOI"`
	UserType       UserType       `json:"userType" validate:"required,oneof=buyer seller"`
	UserID         string         `json:"userId" validate:"required"`
	InspectionID   string         `json:"inspectionId" validate:"required"`
	CounterPrice   int64          `json:"counterPrice,omitempty" validate:"omitempty,gt=0"`
	DocumentURL    string         `json:"documentUrl,omitempty" validate:"omitempty,url"`
	Reason         string         `json:"reason,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// body materialises the wire shape for the given credentials and runs the
// field-level checks the constructors cannot express.
func (p Payload) body(creds Credentials) (Body, error) {
	if p.action == "" {
		return Body{}, invalid("payload was not built by a constructor")
	}
	b := Body{
		Action:         p.action,
		InspectionType: p.inspectionType,
		UserType:       p.userType,
		UserID:         creds.UserID,
		InspectionID:   creds.InspectionID,
		CounterPrice:   p.counterPrice,
		DocumentURL:    p.documentURL,
		Reason:         p.reason,
	}
	if err := validate.Struct(b); err != nil {
		return Body{}, invalid("wire body failed validation: %v", err)
	}
	return b, nil
}
