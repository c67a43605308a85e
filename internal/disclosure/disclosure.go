// Package disclosure decides which identity and contact fields a viewer may
// see for a row at its current lifecycle state. Every function is pure.
package disclosure

import "github.com/sudo-init-do/localfix/internal/model"

// Viewer is the caller a response is being shaped for.
type Viewer struct {
	ID   string
	Role model.Role
}

func (v Viewer) isAdmin() bool { return v.Role == model.RoleAdmin }

// ServiceSummary is the part of a service shown next to a booking.
type ServiceSummary struct {
	ID         string  `json:"id"`
	ProviderID string  `json:"provider_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Duration   string  `json:"duration"`
}

func Summarize(s model.Service) ServiceSummary {
	return ServiceSummary{ID: s.ID, ProviderID: s.ProviderID, Name: s.Name, Price: s.Price, Duration: s.Duration}
}

// BookingView is a booking joined with its client and service. Client is nil
// and ClientHidden true when the viewer may not see the client's identity.
type BookingView struct {
	model.Booking
	Client       *model.Contact  `json:"client"`
	ClientHidden bool            `json:"client_hidden"`
	Service      *ServiceSummary `json:"service"`
}

// clientVisibleStates are the booking states in which the provider may see
// who booked.
var clientVisibleStates = map[model.BookingStatus]bool{
	model.BookingApproved:  true,
	model.BookingCompleted: true,
	model.BookingCancelled: true,
}

// ClientVisible reports whether viewer may see who made booking b.
func ClientVisible(b model.Booking, service model.Service, viewer Viewer) bool {
	switch {
	case viewer.isAdmin(), viewer.ID != "" && viewer.ID == b.ClientID:
		return true
	case viewer.ID != "" && viewer.ID == service.ProviderID:
		return clientVisibleStates[b.Status]
	}
	return false
}

// Booking shapes a booking for viewer. client may be nil when it was not joined.
func Booking(b model.Booking, client *model.Profile, service model.Service, viewer Viewer) BookingView {
	summary := Summarize(service)
	view := BookingView{Booking: b, Service: &summary}

	if !ClientVisible(b, service, viewer) {
		view.ClientHidden = true
		view.ClientID = ""
		view.Notes = nil
		return view
	}

	if client != nil {
		c := client.Contact()
		view.Client = &c
	}
	return view
}

// Relationship carries the flags that gate poster disclosure on a job.
type Relationship struct {
	// Application is the viewer's own application on the job, if any.
	Application *model.JobApplication
}

// JobView is a job with its poster's identity and contact, when visible.
type JobView struct {
	model.Job
	Poster       *model.Contact `json:"poster"`
	PosterHidden bool           `json:"poster_hidden"`
}

// Job shapes a job for viewer. The poster's contact is only shown to the
// poster, an admin, or a provider whose application is accepted and revealed.
func Job(j model.Job, poster *model.Profile, viewer Viewer, rel Relationship) JobView {
	view := JobView{Job: j}
	if !PosterVisible(j, viewer, rel) {
		view.PosterHidden = true
		return view
	}
	if poster != nil {
		c := poster.Contact()
		view.Poster = &c
	}
	return view
}

// PosterVisible reports whether viewer may see the poster's identity on j.
func PosterVisible(j model.Job, viewer Viewer, rel Relationship) bool {
	if viewer.isAdmin() || viewer.ID == j.PosterID {
		return true
	}
	app := rel.Application
	return app != nil &&
		app.JobID == j.ID &&
		app.ProviderID == viewer.ID &&
		app.Status == model.ApplicationAccepted &&
		app.ClientContactRevealed
}

// Review joins only the public profile fields of both parties.
func Review(r model.Review, reviewer, reviewee *model.Profile) model.ReviewWithParties {
	out := model.ReviewWithParties{Review: r}
	if reviewer != nil {
		p := reviewer.Public()
		out.Reviewer = &p
	}
	if reviewee != nil {
		p := reviewee.Public()
		out.Reviewee = &p
	}
	return out
}
