package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dealflow/httpapi"
	"dealflow/inspection"
)

var (
	// ErrDispatchInFlight rejects a second action while one is still being
	// submitted. Duplicate dispatch never reaches the network.
	ErrDispatchInFlight = errors.New("negotiation: another action is already in flight")
	// ErrNegotiationClosed rejects actions on a record whose stage is
	// terminal.
	ErrNegotiationClosed = errors.New("negotiation: negotiation is closed")
)

// Credentials is the ephemeral access triple a response page receives through
// its URL, plus the session token the validate endpoint issued. Held only for
// the lifetime of the session.
type Credentials struct {
	UserID       string
	InspectionID string
	UserType     UserType
	Token        string
}

// API is the slice of the HTTP client the session dispatches through.
type API interface {
	Get(ctx context.Context, path string, out any, opts ...httpapi.RequestOption) error
	Post(ctx context.Context, path string, body any, out any, opts ...httpapi.RequestOption) error
}

// Session owns the negotiation record and is the only writer to it. Each
// dispatched action is a direct POST to the backend; the new stage, status,
// and turn order are whatever the server returns. The session reflects, it
// does not decide.
type Session struct {
	api   API
	creds Credentials
	log   *logrus.Logger
	idGen func() string

	mu       sync.Mutex
	record   inspection.Record
	inFlight bool
}

// NewSession builds a session over an already validated credential set and
// fetched record.
func NewSession(api API, creds Credentials, rec inspection.Record) *Session {
	return &Session{
		api:    api,
		creds:  creds,
		record: rec,
		log:    logrus.StandardLogger(),
		idGen:  uuid.NewString,
	}
}

func (s *Session) WithLogger(log *logrus.Logger) *Session {
	if log != nil {
		s.log = log
	}
	return s
}

// WithIDGenerator overrides the idempotency key source.
func (s *Session) WithIDGenerator(gen func() string) *Session {
	if gen != nil {
		s.idGen = gen
	}
	return s
}

// Record returns the current server-produced record.
func (s *Session) Record() inspection.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Type returns the negotiation track derived from the current record.
func (s *Session) Type() inspection.NegotiationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return inspection.Classify(s.record)
}

// Accept dispatches an acceptance on the session's current track.
func (s *Session) Accept(ctx context.Context) error {
	p, err := NewAccept(TypeFor(s.Type()), s.creds.UserType)
	if err != nil {
		return err
	}
	return s.Dispatch(ctx, p)
}

// Reject dispatches a rejection with an optional reason.
func (s *Session) Reject(ctx context.Context, reason string) error {
	p, err := NewReject(TypeFor(s.Type()), s.creds.UserType, reason)
	if err != nil {
		return err
	}
	return s.Dispatch(ctx, p)
}

// CounterPrice dispatches a price counter-offer.
func (s *Session) CounterPrice(ctx context.Context, price int64) error {
	p, err := NewCounterPrice(s.creds.UserType, price)
	if err != nil {
		return err
	}
	return s.Dispatch(ctx, p)
}

// CounterDocument dispatches a re-uploaded letter-of-intention counter.
func (s *Session) CounterDocument(ctx context.Context, documentURL string) error {
	p, err := NewCounterDocument(s.creds.UserType, documentURL)
	if err != nil {
		return err
	}
	return s.Dispatch(ctx, p)
}

// RequestChanges dispatches a seller change request on the LOI track.
func (s *Session) RequestChanges(ctx context.Context, reason string) error {
	p, err := NewRequestChanges(s.creds.UserType, reason)
	if err != nil {
		return err
	}
	return s.Dispatch(ctx, p)
}

// Dispatch validates the payload against the session and submits it. On
// success the held record is replaced wholesale with the server's response.
func (s *Session) Dispatch(ctx context.Context, p Payload) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrDispatchInFlight
	}
	if s.record.Stage.Terminal() {
		s.mu.Unlock()
		return ErrNegotiationClosed
	}
	if p.UserType() != s.creds.UserType {
		s.mu.Unlock()
		return invalid("payload user type %q does not match session user type %q", p.UserType(), s.creds.UserType)
	}
	if p.InspectionType() != TypeFor(inspection.Classify(s.record)) {
		s.mu.Unlock()
		return invalid("payload track %q does not match the record's negotiation type", p.InspectionType())
	}
	body, err := p.body(s.creds)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	key := s.idGen()
	s.log.WithFields(logrus.Fields{
		"inspection_id":   s.creds.InspectionID,
		"action":          p.Action(),
		"inspection_type": p.InspectionType(),
		"idempotency_key": key,
	}).Info("dispatching negotiation action")

	var updated inspection.Record
	err = s.api.Post(ctx, "/secure-negotiation/action", body, &updated,
		httpapi.WithIdempotencyKey(key),
		httpapi.WithBearer(s.creds.Token),
	)
	if err != nil {
		return fmt.Errorf("negotiation: dispatch %s: %w", p.Action(), err)
	}

	s.replace(updated)
	return nil
}

// Refresh refetches the record from the backend.
func (s *Session) Refresh(ctx context.Context) error {
	var rec inspection.Record
	err := s.api.Get(ctx, "/inspections/"+s.creds.InspectionID, &rec,
		httpapi.WithBearer(s.creds.Token))
	if err != nil {
		return fmt.Errorf("negotiation: refresh record: %w", err)
	}
	s.replace(rec)
	return nil
}

func (s *Session) replace(rec inspection.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = rec
}
