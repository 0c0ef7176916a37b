package inspection

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an inspection record as reported by the
// backend.
type Status string

const (
	StatusNew                Status = "new"
	StatusPendingTransaction Status = "pending_transaction"
	StatusAccepted           Status = "accepted"
	StatusRejected           Status = "rejected"
	StatusCancelled          Status = "cancelled"
	StatusCompleted          Status = "completed"
)

// Stage is the coarse negotiation lifecycle phase.
type Stage string

const (
	StageNegotiation Stage = "negotiation"
	StageInspection  Stage = "inspection"
	StageCompleted   Stage = "completed"
	StageCancelled   Stage = "cancelled"
)

// Terminal reports whether the stage admits no further actions.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// Responder indicates whose turn it is to respond next.
type Responder string

const (
	ResponderBuyer  Responder = "buyer"
	ResponderSeller Responder = "seller"
	ResponderAdmin  Responder = "admin"
)

// Location is the property's address reported by the backend.
type Location struct {
	State           string `json:"state"`
	LocalGovernment string `json:"localGovernment"`
	Area            string `json:"area"`
}

// Property is the nested brief the inspection was requested against.
type Property struct {
	ID           string   `json:"_id"`
	PropertyType string   `json:"propertyType"`
	BriefType    string   `json:"briefType"`
	Price        int64    `json:"price"`
	Location     Location `json:"location"`
	OwnerID      string   `json:"owner"`
}

// Party identifies either side of the negotiation.
type Party struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phoneNumber"`
}

// Record is the root inspection/negotiation entity. Every field is produced
// by the backend; the client never fabricates stage, status, or turn order.
type Record struct {
	ID                  string    `json:"_id"`
	Property            Property  `json:"propertyId"`
	Requester           Party     `json:"requestedBy"`
	Owner               Party     `json:"owner"`
	Status              Status    `json:"status"`
	Stage               Stage     `json:"stage"`
	PendingResponseFrom Responder `json:"pendingResponseFrom"`
	IsNegotiating       bool      `json:"isNegotiating"`
	NegotiationPrice    int64     `json:"negotiationPrice"`
	SellerCounterOffer  int64     `json:"sellerCounterOffer"`
	LetterOfIntention   string    `json:"letterOfIntention"`
	InspectionDate      string    `json:"inspectionDate"`
	InspectionTime      string    `json:"inspectionTime"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Details is the flat view model a response screen renders. It reshapes the
// nested owner and property fields of a Record.
type Details struct {
	InspectionID        string
	PropertyType        string
	BriefType           string
	Price               int64
	NegotiationPrice    int64
	SellerCounterOffer  int64
	Location            string
	BuyerName           string
	BuyerEmail          string
	SellerName          string
	SellerEmail         string
	LetterOfIntention   string
	InspectionDate      string
	InspectionTime      string
	Status              Status
	Stage               Stage
	PendingResponseFrom Responder
	IsNegotiating       bool
}

// DateTime pairs the scheduled inspection date and time for display.
type DateTime struct {
	Date string
	Time string
}

// Flatten reshapes a Record into the flat Details view model.
func Flatten(rec Record) Details {
	return Details{
		InspectionID:        rec.ID,
		PropertyType:        rec.Property.PropertyType,
		BriefType:           rec.Property.BriefType,
		Price:               rec.Property.Price,
		NegotiationPrice:    rec.NegotiationPrice,
		SellerCounterOffer:  rec.SellerCounterOffer,
		Location:            formatLocation(rec.Property.Location),
		BuyerName:           rec.Requester.FullName,
		BuyerEmail:          rec.Requester.Email,
		SellerName:          rec.Owner.FullName,
		SellerEmail:         rec.Owner.Email,
		LetterOfIntention:   rec.LetterOfIntention,
		InspectionDate:      rec.InspectionDate,
		InspectionTime:      rec.InspectionTime,
		Status:              rec.Status,
		Stage:               rec.Stage,
		PendingResponseFrom: rec.PendingResponseFrom,
		IsNegotiating:       rec.IsNegotiating,
	}
}

func formatLocation(loc Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.Area, loc.LocalGovernment, loc.State} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}
