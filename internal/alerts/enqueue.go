package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/model"
)

// Enqueuer is the part of *asynq.Client the notifier uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier schedules notification tasks.
type Notifier struct {
	client Enqueuer
}

func NewNotifier(client Enqueuer) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) enqueue(ctx context.Context, taskType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, b, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	_, err = n.client.EnqueueContext(ctx, task, asynq.Queue(Queue))
	return err
}

// Welcome schedules a welcome message for a new account.
func (n *Notifier) Welcome(ctx context.Context, userID, email, name string) error {
	return n.enqueue(ctx, TaskWelcome, WelcomePayload{UserID: userID, Name: name, Email: email, SentAt: time.Now()})
}

// ApplicationAccepted tells the provider their application won the job.
func (n *Notifier) ApplicationAccepted(ctx context.Context, providerID, jobID, jobTitle string) error {
	return n.enqueue(ctx, TaskApplicationAccepted, ApplicationAcceptedPayload{
		ProviderID: providerID, JobID: jobID, JobTitle: jobTitle, SentAt: time.Now(),
	})
}

// BookingStatus tells recipient a booking moved to status.
func (n *Notifier) BookingStatus(ctx context.Context, recipientID, bookingID string, status model.BookingStatus) error {
	return n.enqueue(ctx, TaskBookingStatus, BookingStatusPayload{
		RecipientID: recipientID, BookingID: bookingID, Status: status, SentAt: time.Now(),
	})
}

// ReviewReceived tells the reviewee about a new review.
func (n *Notifier) ReviewReceived(ctx context.Context, revieweeID, reviewID string, rating int) error {
	return n.enqueue(ctx, TaskReviewReceived, ReviewReceivedPayload{
		RevieweeID: revieweeID, ReviewID: reviewID, Rating: rating, SentAt: time.Now(),
	})
}

// Nop drops every notification. It is used when Redis is not configured.
type Nop struct {
	log  *zap.Logger
	once sync.Once
}

func NewNop(log *zap.Logger) *Nop {
	return &Nop{log: log}
}

func (n *Nop) drop(kind string) error {
	n.once.Do(func() {
		n.log.Warn("notifications disabled: REDIS_ADDR not set", zap.String("first_dropped", kind))
	})
	return nil
}

func (n *Nop) Welcome(context.Context, string, string, string) error {
	return n.drop(TaskWelcome)
}

func (n *Nop) ApplicationAccepted(context.Context, string, string, string) error {
	return n.drop(TaskApplicationAccepted)
}

func (n *Nop) BookingStatus(context.Context, string, string, model.BookingStatus) error {
	return n.drop(TaskBookingStatus)
}

func (n *Nop) ReviewReceived(context.Context, string, string, int) error {
	return n.drop(TaskReviewReceived)
}
