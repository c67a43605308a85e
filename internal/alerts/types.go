package alerts

import (
	"time"

	"github.com/sudo-init-do/localfix/internal/model"
)

// Task type constants
const (
	TaskWelcome             = "notify:welcome"
	TaskApplicationAccepted = "notify:application_accepted"
	TaskBookingStatus       = "notify:booking_status"
	TaskReviewReceived      = "notify:review_received"
)

// Queue is the asynq queue every notification task goes to.
const Queue = "notifications"

// Welcome payload
type WelcomePayload struct {
	UserID string    `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	SentAt time.Time `json:"sent_at"`
}

// Application accepted payload (sent to the provider)
type ApplicationAcceptedPayload struct {
	ProviderID string    `json:"provider_id"`
	JobID      string    `json:"job_id"`
	JobTitle   string    `json:"job_title"`
	SentAt     time.Time `json:"sent_at"`
}

// Booking status payload (sent to the other party of the transition)
type BookingStatusPayload struct {
	RecipientID string              `json:"recipient_id"`
	BookingID   string              `json:"booking_id"`
	Status      model.BookingStatus `json:"status"`
	SentAt      time.Time           `json:"sent_at"`
}

// Review received payload (sent to the reviewee)
type ReviewReceivedPayload struct {
	RevieweeID string    `json:"reviewee_id"`
	ReviewID   string    `json:"review_id"`
	Rating     int       `json:"rating"`
	SentAt     time.Time `json:"sent_at"`
}
