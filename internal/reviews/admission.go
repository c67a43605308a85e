// Package reviews admits and lists reviews written after a completed job or
// booking.
package reviews

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/store"
)

type Store interface {
	GetJob(ctx context.Context, id string) (model.Job, error)
	AcceptedApplication(ctx context.Context, jobID string) (*model.JobApplication, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ReviewExists(ctx context.Context, reviewerID, revieweeID string, jobID, bookingID *string) (bool, error)
	InsertReview(ctx context.Context, r model.Review) (model.ReviewWithParties, error)
	ListReviews(ctx context.Context, f store.ReviewFilter) ([]model.ReviewWithParties, error)
}

// Submission is a review as posted, before admission.
type Submission struct {
	ReviewerID string
	RevieweeID string
	Rating     json.Number
	Comment    *string
	JobID      *string
	BookingID  *string
}

// admission accumulates what the checks learn about a submission.
type admission struct {
	sub    Submission
	rating int

	job      *model.Job
	provider string // accepted provider of job
	booking  *model.Booking
	service  *model.Service
}

type check struct {
	name string
	run  func(ctx context.Context, st Store, a *admission) error
}

// checks run in order; the first failure is the answer.
var checks = []check{
	{"reviewee", checkReviewee},
	{"rating", checkRating},
	{"target", checkTarget},
	{"completed", checkCompleted},
	{"parties", checkParties},
	{"unique", checkUnique},
}

func checkReviewee(_ context.Context, _ Store, a *admission) error {
	if strings.TrimSpace(a.sub.RevieweeID) == "" {
		return apperr.Validation("revieweeId is required")
	}
	if a.sub.RevieweeID == a.sub.ReviewerID {
		return apperr.Validation("you cannot review yourself")
	}
	return nil
}

func checkRating(_ context.Context, _ Store, a *admission) error {
	f, err := a.sub.Rating.Float64()
	if err != nil || f != math.Trunc(f) || f < 1 || f > 5 {
		return apperr.Validation("rating must be a number between 1 and 5")
	}
	a.rating = int(f)
	return nil
}

func checkTarget(_ context.Context, _ Store, a *admission) error {
	if (a.sub.JobID == nil) == (a.sub.BookingID == nil) {
		return apperr.Validation("exactly one of jobId or bookingId is required")
	}
	return nil
}

// referenced maps a missing job or booking onto the 400 the endpoint uses.
func referenced(err error, what string) error {
	if apperr.IsNotFound(err) {
		return apperr.NotFound("%s not found", what).WithStatus(http.StatusBadRequest)
	}
	return err
}

func checkCompleted(ctx context.Context, st Store, a *admission) error {
	if a.sub.JobID != nil {
		job, err := st.GetJob(ctx, *a.sub.JobID)
		if err != nil {
			return referenced(err, "Job")
		}
		if job.Status != model.JobCompleted {
			return apperr.State("job must be completed before it can be reviewed")
		}
		a.job = &job
		return nil
	}

	b, err := st.GetBooking(ctx, *a.sub.BookingID)
	if err != nil {
		return referenced(err, "Booking")
	}
	if b.Status != model.BookingCompleted {
		return apperr.State("booking must be completed before it can be reviewed")
	}
	svc, err := st.GetService(ctx, b.ServiceID)
	if err != nil {
		return err
	}
	a.booking, a.service = &b, &svc
	return nil
}

func checkParties(ctx context.Context, st Store, a *admission) error {
	var one, other string
	if a.job != nil {
		accepted, err := st.AcceptedApplication(ctx, a.job.ID)
		if err != nil {
			return err
		}
		if accepted != nil {
			a.provider = accepted.ProviderID
		}
		one, other = a.job.PosterID, a.provider
	} else {
		one, other = a.booking.ClientID, a.service.ProviderID
	}

	reviewer, reviewee := a.sub.ReviewerID, a.sub.RevieweeID
	if other == "" || !(reviewer == one && reviewee == other || reviewer == other && reviewee == one) {
		return apperr.Forbidden("only the two parties can review each other").WithStatus(http.StatusBadRequest)
	}
	return nil
}

func checkUnique(ctx context.Context, st Store, a *admission) error {
	exists, err := st.ReviewExists(ctx, a.sub.ReviewerID, a.sub.RevieweeID, a.sub.JobID, a.sub.BookingID)
	if err != nil {
		return err
	}
	if exists {
		return duplicate()
	}
	return nil
}

// duplicate keeps the 400 the endpoint has always answered with.
func duplicate() error {
	return apperr.Conflict("You have already reviewed this item").WithStatus(http.StatusBadRequest)
}

// Admit runs every check and returns the review ready to insert.
func Admit(ctx context.Context, st Store, sub Submission) (model.Review, error) {
	a := &admission{sub: sub}
	for _, c := range checks {
		if err := c.run(ctx, st, a); err != nil {
			return model.Review{}, err
		}
	}
	return model.Review{
		ReviewerID: sub.ReviewerID,
		RevieweeID: sub.RevieweeID,
		JobID:      sub.JobID,
		BookingID:  sub.BookingID,
		Rating:     a.rating,
		Comment:    sub.Comment,
	}, nil
}
