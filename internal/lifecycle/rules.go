package lifecycle

import (
	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

// JobParties resolves how actorID relates to job. acceptedProviderID is the
// provider of the job's accepted application, or empty.
func JobParties(job model.Job, acceptedProviderID, actorID string) Parties {
	var p Parties
	if actorID == "" {
		return p
	}
	if job.PosterID == actorID {
		p |= Parties(Poster)
	}
	if acceptedProviderID != "" && acceptedProviderID == actorID {
		p |= Parties(AcceptedProvider)
	}
	return p
}

// ApplicationParties resolves how actorID relates to an application on job.
func ApplicationParties(job model.Job, app model.JobApplication, actorID string) Parties {
	var p Parties
	if actorID == "" {
		return p
	}
	if job.PosterID == actorID {
		p |= Parties(Poster)
	}
	if app.ProviderID == actorID {
		p |= Parties(Applicant)
	}
	return p
}

// ServiceParties resolves how an actor relates to service.
func ServiceParties(service model.Service, actorID string, role model.Role) Parties {
	var p Parties
	if actorID != "" && service.ProviderID == actorID {
		p |= Parties(Provider)
	}
	if role == model.RoleAdmin {
		p |= Parties(Admin)
	}
	return p
}

// BookingParties resolves how actorID relates to booking on service.
func BookingParties(booking model.Booking, service model.Service, actorID string) Parties {
	var p Parties
	if actorID == "" {
		return p
	}
	if service.ProviderID == actorID {
		p |= Parties(Provider)
	}
	if booking.ClientID == actorID {
		p |= Parties(Client)
	}
	return p
}

// CanAccept checks the accept edge plus the job-level precondition that the
// job is still open. A job that has left open already has its accepted
// application, so a late accept is a conflict.
func CanAccept(job model.Job, app model.JobApplication, actorID string) error {
	if err := CanTransition(EntityApplication, string(app.Status), string(model.ApplicationAccepted), ApplicationParties(job, app, actorID)); err != nil {
		return err
	}
	if job.Status != model.JobOpen {
		return apperr.Conflict("job already has an accepted application")
	}
	return nil
}

// CanWithdraw allows an accepted application to be withdrawn only while the
// job has not entered in-progress.
func CanWithdraw(job model.Job, app model.JobApplication, actorID string) error {
	if err := CanTransition(EntityApplication, string(app.Status), string(model.ApplicationWithdrawn), ApplicationParties(job, app, actorID)); err != nil {
		return err
	}
	if app.Status == model.ApplicationAccepted && job.Status != model.JobOpen {
		return apperr.State("cannot withdraw once the job is %s", job.Status)
	}
	return nil
}

// CanReveal gates the one-way contact reveal.
func CanReveal(app model.JobApplication, actorID string) error {
	if app.ProviderID != actorID {
		return apperr.Forbidden("Forbidden")
	}
	if app.Status != model.ApplicationAccepted {
		return apperr.State("Application must be accepted to reveal contact")
	}
	return nil
}

// CanBook checks that client may book service.
func CanBook(service model.Service, clientID string) error {
	if service.ProviderID == clientID {
		return apperr.Validation("you cannot book your own service")
	}
	if !service.Status.Bookable() {
		return apperr.State("service is %s and cannot be booked", service.Status)
	}
	return nil
}
