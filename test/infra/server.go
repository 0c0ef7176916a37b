// Package infra hosts an in-memory stand-in for the marketplace backend. It
// owns the negotiation authority the real server would: turn order, stage and
// status transitions, link validation, and idempotent action replay.
package infra

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"dealflow/inspection"
)

// Link is a seeded secure-response link the server accepts.
type Link struct {
	UserID   string
	UserType string
}

// Backend is a fake negotiation backend backed by a single record.
type Backend struct {
	mu        sync.Mutex
	record    inspection.Record
	links     []Link
	seen      map[string][]byte
	applied   int
	turnTrace []string

	server *httptest.Server
}

// NewBackend seeds the fake with a record and the links allowed to act on it.
func NewBackend(rec inspection.Record, links ...Link) *Backend {
	b := &Backend{
		record: rec,
		links:  links,
		seen:   make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /secure-negotiation/validate", b.handleValidate)
	mux.HandleFunc("POST /secure-negotiation/action", b.handleAction)
	mux.HandleFunc("GET /inspections/", b.handleFetch)
	mux.HandleFunc("POST /upload-file", b.handleUpload)
	b.server = httptest.NewServer(mux)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string { return b.server.URL }

// Close shuts the backend down.
func (b *Backend) Close() { b.server.Close() }

// Record returns a copy of the authoritative record.
func (b *Backend) Record() inspection.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record
}

// Applied returns how many actions the backend actually applied, idempotent
// replays excluded.
func (b *Backend) Applied() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied
}

// TurnTrace returns the sequence of user types whose actions were applied.
func (b *Backend) TurnTrace() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.turnTrace...)
}

func (b *Backend) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"userId"`
		InspectionID string `json:"inspectionId"`
		UserType     string `json:"userType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reject(w, http.StatusBadRequest, "malformed request")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if req.InspectionID != b.record.ID {
		reject(w, http.StatusOK, "expired link")
		return
	}
	for _, link := range b.links {
		if link.UserID == req.UserID && link.UserType == req.UserType {
			respond(w, map[string]string{"role": link.UserType})
			return
		}
	}
	reject(w, http.StatusOK, "expired link")
}

func (b *Backend) handleFetch(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/inspections/")

	b.mu.Lock()
	defer b.mu.Unlock()
	if id != b.record.ID {
		reject(w, http.StatusNotFound, "inspection not found")
		return
	}
	respond(w, b.record)
}

func (b *Backend) handleAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action         string `json:"action"`
		InspectionType string `json:"inspectionType"`
		UserType       string `json:"userType"`
		UserID         string `json:"userId"`
		InspectionID   string `json:"inspectionId"`
		CounterPrice   int64  `json:"counterPrice"`
		DocumentURL    string `json:"documentUrl"`
		Reason         string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		reject(w, http.StatusBadRequest, "malformed request")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := r.Header.Get("X-Idempotency-Key")
	if key != "" {
		if cached, ok := b.seen[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	if body.InspectionID != b.record.ID {
		reject(w, http.StatusNotFound, "inspection not found")
		return
	}
	if b.record.Stage.Terminal() {
		reject(w, http.StatusOK, "negotiation already closed")
		return
	}
	if string(b.record.PendingResponseFrom) != body.UserType {
		reject(w, http.StatusOK, "not your turn")
		return
	}

	switch body.Action {
	case "accept":
		b.record.Stage = inspection.StageInspection
		b.record.Status = inspection.StatusAccepted
		b.record.PendingResponseFrom = inspection.ResponderAdmin
		b.record.IsNegotiating = false
	case "reject":
		b.record.Stage = inspection.StageCancelled
		b.record.Status = inspection.StatusRejected
	case "counter":
		if body.UserType == "buyer" {
			if body.DocumentURL != "" {
				b.record.LetterOfIntention = body.DocumentURL
			} else {
				b.record.NegotiationPrice = body.CounterPrice
			}
			b.record.PendingResponseFrom = inspection.ResponderSeller
		} else {
			b.record.SellerCounterOffer = body.CounterPrice
			b.record.PendingResponseFrom = inspection.ResponderBuyer
		}
		b.record.IsNegotiating = true
		// A counter-offer restarts the response clock.
		b.record.CreatedAt = time.Now().UTC()
	case "request_changes":
		b.record.PendingResponseFrom = inspection.ResponderBuyer
	default:
		reject(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown action %q", body.Action))
		return
	}

	b.record.UpdatedAt = time.Now().UTC()
	b.applied++
	b.turnTrace = append(b.turnTrace, body.UserType)

	raw, err := json.Marshal(envelope{Success: true, Data: mustRaw(b.record)})
	if err != nil {
		reject(w, http.StatusInternalServerError, "encode record")
		return
	}
	if key != "" {
		b.seen[key] = raw
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		reject(w, http.StatusBadRequest, "malformed upload")
		return
	}
	_, header, err := r.FormFile("file")
	if err != nil {
		reject(w, http.StatusBadRequest, "missing file field")
		return
	}
	respond(w, map[string]string{"url": "https://cdn.fake.test/docs/" + header.Filename})
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: true, Data: mustRaw(data)})
}

func reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

func mustRaw(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return raw
}
