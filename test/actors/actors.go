// Package actors holds the concurrent parties used by the end-to-end
// negotiation exercise: each actor drives a real session against the fake
// backend and only acts when the server says it is their turn.
package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"dealflow/httpapi"
	"dealflow/inspection"
	"dealflow/negotiation"
)

// Party drives one side of the negotiation until the record reaches a
// terminal stage, the stop channel closes, or the context ends. It refreshes
// before every decision and treats "not your turn" rejections as expected
// contention.
func Party(ctx context.Context, session *negotiation.Session, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if err := session.Refresh(ctx); err != nil {
			if tolerable(err) {
				continue
			}
			return err
		}

		rec := session.Record()
		if rec.Stage.Terminal() {
			return nil
		}

		err := act(ctx, session, rec, rng)
		if err != nil && !tolerable(err) {
			return err
		}

		time.Sleep(time.Duration(1+rng.Intn(5)) * time.Millisecond)
	}
}

func act(ctx context.Context, session *negotiation.Session, rec inspection.Record, rng *rand.Rand) error {
	switch rng.Intn(10) {
	case 0:
		return session.Accept(ctx)
	case 1:
		return session.Reject(ctx, "price too far apart")
	default:
		return session.CounterPrice(ctx, 40_000_000+int64(rng.Intn(10_000_000)))
	}
}

// Observer reloads the record concurrently with the negotiating parties,
// mimicking a response page left open in another tab.
func Observer(ctx context.Context, loader *inspection.Loader, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if err := loader.Reload(ctx); err != nil && !tolerable(err) {
			return err
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// tolerable reports whether the error is expected contention rather than a
// defect: losing the turn race, a dispatch already in flight, a closed
// negotiation, or a payload the current record no longer admits.
func tolerable(err error) bool {
	if errors.Is(err, negotiation.ErrDispatchInFlight) || errors.Is(err, negotiation.ErrNegotiationClosed) {
		return true
	}
	var vErr *negotiation.ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	var se *httpapi.ServerError
	if errors.As(err, &se) {
		return se.Status < 500
	}
	return false
}
