package model

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleClient Role = "client"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobClosed     JobStatus = "closed"
)

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

type ServiceStatus string

const (
	ServicePending  ServiceStatus = "pending"
	ServiceApproved ServiceStatus = "approved"
	ServiceOpen     ServiceStatus = "open"
	ServiceClosed   ServiceStatus = "closed"
)

// Bookable reports whether clients may book a service in this state.
func (s ServiceStatus) Bookable() bool {
	return s == ServiceOpen || s == ServiceApproved
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
)

const (
	BudgetFixed  = "fixed"
	BudgetHourly = "hourly"
)

// Profile is an account. ID equals the auth subject.
type Profile struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// PublicProfile is the only profile shape ever joined into reviews.
type PublicProfile struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

func (p Profile) Public() PublicProfile {
	return PublicProfile{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL}
}

// Contact is the identity and contact block gated by the disclosure policy.
type Contact struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
}

func (p Profile) Contact() Contact {
	return Contact{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL, Email: p.Email, Phone: p.Phone}
}

type Job struct {
	ID             string    `json:"id"`
	PosterID       string    `json:"poster_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	RequiredSkills []string  `json:"required_skills,omitempty"`
	Budget         float64   `json:"budget"`
	BudgetType     string    `json:"budget_type,omitempty"`
	Location       string    `json:"location"`
	Duration       string    `json:"duration"`
	Status         JobStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UnmarshalJSON accepts rows whose owner column is still named client_id.
func (j *Job) UnmarshalJSON(b []byte) error {
	type plain Job
	var aux struct {
		plain
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*j = Job(aux.plain)
	if j.PosterID == "" {
		j.PosterID = aux.ClientID
	}
	return nil
}

type JobApplication struct {
	ID                    string            `json:"id"`
	JobID                 string            `json:"job_id"`
	ProviderID            string            `json:"provider_id"`
	ProposedRate          float64           `json:"proposed_rate"`
	Status                ApplicationStatus `json:"status"`
	ClientContactRevealed bool              `json:"client_contact_revealed"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

type Service struct {
	ID          string        `json:"id"`
	ProviderID  string        `json:"provider_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       float64       `json:"price"`
	Duration    string        `json:"duration"`
	Location    *string       `json:"location,omitempty"`
	Status      ServiceStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type Booking struct {
	ID          string        `json:"id"`
	ServiceID   string        `json:"service_id"`
	ClientID    string        `json:"client_id,omitempty"`
	BookingDate time.Time     `json:"booking_date"`
	Status      BookingStatus `json:"status"`
	Notes       *string       `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id"`
	JobID      *string   `json:"job_id"`
	BookingID  *string   `json:"booking_id"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewWithParties is a review joined with both parties' public fields.
type ReviewWithParties struct {
	Review
	Reviewer *PublicProfile `json:"reviewer"`
	Reviewee *PublicProfile `json:"reviewee"`
}
