package inspection

import "strings"

// NegotiationType is the negotiation track derived from a fetched record. It
// is recomputed on every fetch and never stored server-side.
type NegotiationType string

const (
	// TypeNormal is plain price negotiation over an outright sale or rent.
	TypeNormal NegotiationType = "NORMAL"
	// TypeLOI is the document-based letter-of-intention track used for
	// joint-venture and other non-standard deals.
	TypeLOI NegotiationType = "LOI"
)

// Classify derives the negotiation type for a record. A record takes the LOI
// track when a letter of intention is attached, or when the underlying brief
// is anything other than an outright sale or rent. Pure function of the
// record.
func Classify(rec Record) NegotiationType {
	if strings.TrimSpace(rec.LetterOfIntention) != "" {
		return TypeLOI
	}
	if priceNegotiable(rec.Property.BriefType) {
		return TypeNormal
	}
	return TypeLOI
}

// priceNegotiable reports whether the brief type settles by price rather than
// by document exchange. Unknown brief types fall through to the LOI track.
func priceNegotiable(briefType string) bool {
	switch strings.ToLower(strings.TrimSpace(briefType)) {
	case "outright sales", "outright sale", "sale", "rent", "rental":
		return true
	default:
		return false
	}
}
