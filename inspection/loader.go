package inspection

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"dealflow/httpapi"
)

// FormStatus tracks the fetch lifecycle a response screen observes.
type FormStatus string

const (
	FormIdle    FormStatus = "idle"
	FormPending FormStatus = "pending"
	FormSuccess FormStatus = "success"
	FormFailed  FormStatus = "failed"
)

// RecordFetcher abstracts the backend read used by the Loader.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, id string) (Record, error)
}

// Getter is the slice of the HTTP client the APIFetcher needs.
type Getter interface {
	Get(ctx context.Context, path string, out any, opts ...httpapi.RequestOption) error
}

// APIFetcher reads inspection records from the backend REST surface.
type APIFetcher struct {
	api Getter
}

func NewAPIFetcher(api Getter) *APIFetcher {
	return &APIFetcher{api: api}
}

func (f *APIFetcher) FetchRecord(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("inspection: missing inspection id")
	}
	var rec Record
	if err := f.api.Get(ctx, "/inspections/"+url.PathEscape(id), &rec); err != nil {
		return Record{}, fmt.Errorf("inspection: fetch record %s: %w", id, err)
	}
	return rec, nil
}

// Loader owns the fetched record and its derived view state. A failed fetch
// flips the form status to failed but leaves previously loaded data
// untouched; concurrent loads for the same id collapse into one flight.
type Loader struct {
	fetch RecordFetcher
	group singleflight.Group
	log   *logrus.Logger

	mu      sync.Mutex
	id      string
	status  FormStatus
	record  Record
	details Details
	ntype   NegotiationType
	loaded  bool
}

func NewLoader(fetch RecordFetcher) *Loader {
	return &Loader{
		fetch:  fetch,
		log:    logrus.StandardLogger(),
		status: FormIdle,
	}
}

func (l *Loader) WithLogger(log *logrus.Logger) *Loader {
	if log != nil {
		l.log = log
	}
	return l
}

// Load fetches the record for id. A repeat call with the id already loaded is
// a no-op; a fresh fetch only occurs on identity change. Use Reload to force
// a refetch.
func (l *Loader) Load(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("inspection: missing inspection id")
	}

	l.mu.Lock()
	if l.id == id && l.status == FormSuccess {
		l.mu.Unlock()
		return nil
	}
	l.id = id
	l.status = FormPending
	l.mu.Unlock()

	return l.reload(ctx, id)
}

// Reload refetches the current id unconditionally.
func (l *Loader) Reload(ctx context.Context) error {
	l.mu.Lock()
	id := l.id
	if id == "" {
		l.mu.Unlock()
		return fmt.Errorf("inspection: nothing loaded yet")
	}
	l.status = FormPending
	l.mu.Unlock()

	return l.reload(ctx, id)
}

func (l *Loader) reload(ctx context.Context, id string) error {
	v, err, _ := l.group.Do(id, func() (any, error) {
		return l.fetch.FetchRecord(ctx, id)
	})
	if err != nil {
		l.mu.Lock()
		if l.id == id {
			l.status = FormFailed
		}
		l.mu.Unlock()
		l.log.WithField("inspection_id", id).WithError(err).Error("record fetch failed")
		return err
	}

	rec := v.(Record)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.id != id {
		// Identity changed while the fetch was in flight; drop the result.
		return nil
	}
	l.record = rec
	l.details = Flatten(rec)
	l.ntype = Classify(rec)
	l.status = FormSuccess
	l.loaded = true
	return nil
}

// Status returns the current form status.
func (l *Loader) Status() FormStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Record returns the last successfully fetched record.
func (l *Loader) Record() (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record, l.loaded
}

// Details returns the flat view model of the last successful fetch.
func (l *Loader) Details() Details {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.details
}

// Type returns the derived negotiation type of the last successful fetch.
func (l *Loader) Type() NegotiationType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ntype
}

// CreatedAt returns the record's creation time, the base of the response
// deadline countdown.
func (l *Loader) CreatedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record.CreatedAt
}

// DateTimeObj returns the scheduled inspection date and time pair.
func (l *Loader) DateTimeObj() DateTime {
	l.mu.Lock()
	defer l.mu.Unlock()
	return DateTime{Date: l.record.InspectionDate, Time: l.record.InspectionTime}
}
