package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/store"
)

// Store is what the processor writes to and reads recipients from.
type Store interface {
	InsertNotification(ctx context.Context, n store.Notification) error
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// Processor turns notification tasks into in-app rows and, when a mailer
// is configured, emails.
type Processor struct {
	store  Store
	mailer Mailer
	appURL string
	log    *zap.Logger
}

func NewProcessor(store Store, mailer Mailer, appURL string, log *zap.Logger) *Processor {
	if appURL == "" {
		appURL = "http://localhost:3000"
	}
	return &Processor{store: store, mailer: mailer, appURL: strings.TrimRight(appURL, "/"), log: log}
}

// NewServer builds the asynq server that runs the processor.
func NewServer(redisAddr string, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{Queue: 10},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			log.Error("notification task failed", zap.String("type", t.Type()), zap.Error(err))
		}),
	})
}

func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcome, p.handleWelcome)
	mux.HandleFunc(TaskApplicationAccepted, p.handleApplicationAccepted)
	mux.HandleFunc(TaskBookingStatus, p.handleBookingStatus)
	mux.HandleFunc(TaskReviewReceived, p.handleReviewReceived)
	return mux
}

type message struct {
	userID    string
	kind      string
	title     string
	body      string
	reference string
	// email is the known address; otherwise it is read from the profile.
	email string
}

func decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		// A payload that cannot be decoded will never succeed.
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, m message) error {
	var ref *string
	if m.reference != "" {
		ref = &m.reference
	}
	if err := p.store.InsertNotification(ctx, store.Notification{
		UserID: m.userID, Type: m.kind, Title: m.title, Body: m.body, Reference: ref,
	}); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if p.mailer == nil {
		p.log.Info("notification stored", zap.String("type", m.kind), zap.String("user_id", m.userID))
		return nil
	}

	to := m.email
	if to == "" {
		profile, err := p.store.GetProfile(ctx, m.userID)
		if err != nil {
			return fmt.Errorf("load recipient: %w", err)
		}
		to = profile.Email
	}
	if to == "" {
		p.log.Warn("recipient has no email", zap.String("type", m.kind), zap.String("user_id", m.userID))
		return nil
	}
	// The row is already stored; a retry would duplicate it, so a mail
	// failure is logged and not returned.
	if err := p.mailer.Send(to, m.title, m.body+"\n\nOpen LocalFix: "+p.appURL); err != nil {
		p.log.Error("notification email failed", zap.String("type", m.kind), zap.String("user_id", m.userID), zap.Error(err))
		return nil
	}
	p.log.Info("notification sent", zap.String("type", m.kind), zap.String("user_id", m.userID))
	return nil
}

func (p *Processor) handleWelcome(ctx context.Context, t *asynq.Task) error {
	var pl WelcomePayload
	if err := decode(t, &pl); err != nil {
		return err
	}
	return p.deliver(ctx, message{
		userID: pl.UserID,
		kind:   "welcome",
		title:  fmt.Sprintf("Welcome to LocalFix, %s!", pl.Name),
		body:   fmt.Sprintf("Hi %s, thanks for joining LocalFix.", pl.Name),
		email:  pl.Email,
	})
}

func (p *Processor) handleApplicationAccepted(ctx context.Context, t *asynq.Task) error {
	var pl ApplicationAcceptedPayload
	if err := decode(t, &pl); err != nil {
		return err
	}
	return p.deliver(ctx, message{
		userID:    pl.ProviderID,
		kind:      "application_accepted",
		title:     "Your application was accepted",
		body:      fmt.Sprintf("The client accepted your application for %q. You can now reveal their contact details.", pl.JobTitle),
		reference: pl.JobID,
	})
}

var bookingTitles = map[model.BookingStatus]string{
	model.BookingPending:   "New booking request",
	model.BookingApproved:  "Your booking was approved",
	model.BookingRejected:  "Your booking was declined",
	model.BookingCompleted: "Your booking was completed",
	model.BookingCancelled: "A booking was cancelled",
}

func (p *Processor) handleBookingStatus(ctx context.Context, t *asynq.Task) error {
	var pl BookingStatusPayload
	if err := decode(t, &pl); err != nil {
		return err
	}
	title, ok := bookingTitles[pl.Status]
	if !ok {
		title = "Booking updated"
	}
	return p.deliver(ctx, message{
		userID:    pl.RecipientID,
		kind:      "booking_" + string(pl.Status),
		title:     title,
		body:      fmt.Sprintf("Booking %s is now %s.", pl.BookingID, pl.Status),
		reference: pl.BookingID,
	})
}

func (p *Processor) handleReviewReceived(ctx context.Context, t *asynq.Task) error {
	var pl ReviewReceivedPayload
	if err := decode(t, &pl); err != nil {
		return err
	}
	return p.deliver(ctx, message{
		userID:    pl.RevieweeID,
		kind:      "review_received",
		title:     "You received a new review",
		body:      fmt.Sprintf("Someone rated you %d out of 5.", pl.Rating),
		reference: pl.ReviewID,
	})
}
