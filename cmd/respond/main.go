// Command respond drives a secure negotiation response session from the
// terminal: it validates the access link, fetches the inspection record, and
// either prints the current negotiation state or dispatches an action.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow/access"
	"dealflow/config"
	"dealflow/countdown"
	"dealflow/httpapi"
	"dealflow/inspection"
	"dealflow/logging"
	"dealflow/negotiation"
)

func main() {
	var (
		role       = flag.String("role", "", "claimed role: buyer or seller")
		userID     = flag.String("user", "", "user id from the secure link")
		inspID     = flag.String("inspection", "", "inspection id from the secure link")
		action     = flag.String("action", "", "optional action: accept, reject, counter, request_changes")
		price      = flag.Int64("price", 0, "counter price for -action counter on a price negotiation")
		document   = flag.String("document", "", "document url for -action counter on an LOI negotiation")
		reason     = flag.String("reason", "", "reason for reject or request_changes")
		watchClock = flag.Bool("watch", false, "keep printing the response countdown")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	if *role == "" || *userID == "" || *inspID == "" {
		log.Fatal("flags -role, -user and -inspection are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	api := httpapi.NewClient(cfg.APIBaseURL, nil).
		WithLogger(log).
		WithCallTimeout(cfg.RequestTimeout).
		WithMaxRetries(uint64(cfg.MaxRetries))

	validator := access.NewValidator(api, *userID, *inspID, negotiation.UserType(*role)).WithLogger(log)
	if err := validator.Validate(ctx); err != nil {
		var denied *access.DeniedError
		if errors.As(err, &denied) {
			log.Fatalf("access denied: %s (re-run to retry)", denied.Message)
		}
		log.Fatalf("validate access link: %v", err)
	}

	loader := inspection.NewLoader(inspection.NewAPIFetcher(api)).WithLogger(log)
	if err := loader.Load(ctx, *inspID); err != nil {
		log.Fatalf("load inspection record: %v", err)
	}
	rec, _ := loader.Record()

	session, err := validator.Session(api, rec)
	if err != nil {
		log.Fatalf("open negotiation session: %v", err)
	}

	printState(loader)

	if *action != "" {
		if err := dispatch(ctx, session, *action, *price, *document, *reason); err != nil {
			var vErr *negotiation.ValidationError
			if errors.As(err, &vErr) {
				log.Fatalf("invalid action: %s", vErr.Reason)
			}
			log.Fatalf("dispatch action: %v", err)
		}
		fmt.Println("action accepted by the backend; updated state:")
		printRecord(session.Record())
		return
	}

	if *watchClock {
		watch(ctx, loader.CreatedAt())
	}
}

func dispatch(ctx context.Context, session *negotiation.Session, action string, price int64, document, reason string) error {
	switch negotiation.Action(action) {
	case negotiation.ActionAccept:
		return session.Accept(ctx)
	case negotiation.ActionReject:
		return session.Reject(ctx, reason)
	case negotiation.ActionCounter:
		if document != "" {
			return session.CounterDocument(ctx, document)
		}
		return session.CounterPrice(ctx, price)
	case negotiation.ActionRequestChanges:
		return session.RequestChanges(ctx, reason)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func printState(loader *inspection.Loader) {
	details := loader.Details()
	fmt.Printf("inspection %s: %s (%s)\n", details.InspectionID, details.PropertyType, details.Location)
	fmt.Printf("  track: %s  stage: %s  status: %s  awaiting: %s\n",
		loader.Type(), details.Stage, details.Status, details.PendingResponseFrom)
	if details.NegotiationPrice > 0 {
		fmt.Printf("  asking %d, buyer offered %d, seller countered %d\n",
			details.Price, details.NegotiationPrice, details.SellerCounterOffer)
	}
	if details.LetterOfIntention != "" {
		fmt.Printf("  letter of intention: %s\n", details.LetterOfIntention)
	}
	dt := loader.DateTimeObj()
	if dt.Date != "" {
		fmt.Printf("  scheduled: %s %s\n", dt.Date, dt.Time)
	}
	fmt.Printf("  time to respond: %s\n", countdown.Format(countdown.Remaining(loader.CreatedAt(), time.Now())))
}

func printRecord(rec inspection.Record) {
	details := inspection.Flatten(rec)
	fmt.Printf("  stage: %s  status: %s  awaiting: %s\n", details.Stage, details.Status, details.PendingResponseFrom)
}

func watch(ctx context.Context, createdAt time.Time) {
	timer := countdown.NewTimer(createdAt)
	timer.Start()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case left := <-timer.C():
			fmt.Printf("\r%s", countdown.Format(left))
			if left == 0 {
				fmt.Println()
				return
			}
		}
	}
}
