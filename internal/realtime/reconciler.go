package realtime

import (
	"slices"
	"time"

	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/model"
)

// RecentLimit bounds RecentClientBookings.
const RecentLimit = 10

// Snapshot is a copy of a worker dashboard's projections.
type Snapshot struct {
	AvailableJobs        []model.Job              `json:"availableJobs"`
	MyApplications       []model.JobApplication   `json:"myApplications"`
	MyServiceBookings    []disclosure.BookingView `json:"myServiceBookings"`
	RecentClientBookings []disclosure.BookingView `json:"recentClientBookings"`
}

// Initial is what a dashboard loads from the store before it starts
// consuming changes.
type Initial struct {
	Jobs         []model.Job
	Applications []model.JobApplication
	Services     []model.Service
	Bookings     []disclosure.BookingView
}

// Reconciler holds the projections. It has no locks: one goroutine owns it.
type Reconciler struct {
	self       string
	serviceIDs map[string]struct{}

	available    []model.Job
	applications []model.JobApplication
	bookings     []disclosure.BookingView
	recent       []disclosure.BookingView
}

func NewReconciler(self string, in Initial) *Reconciler {
	r := &Reconciler{self: self, serviceIDs: map[string]struct{}{}}
	for _, s := range in.Services {
		if s.ProviderID == self {
			r.serviceIDs[s.ID] = struct{}{}
		}
	}
	for _, j := range in.Jobs {
		r.ApplyJob(Insert, j, j.ID)
	}
	for _, a := range in.Applications {
		r.ApplyApplication(Insert, a, a.ID)
	}
	for _, b := range in.Bookings {
		if r.OwnsService(b.ServiceID) {
			r.ApplyBooking(b)
		}
	}
	return r
}

func jobID(j model.Job) string                 { return j.ID }
func jobTime(j model.Job) time.Time            { return j.CreatedAt }
func appID(a model.JobApplication) string      { return a.ID }
func appTime(a model.JobApplication) time.Time { return a.CreatedAt }
func bookingID(b disclosure.BookingView) string {
	return b.ID
}
func bookingTime(b disclosure.BookingView) time.Time { return b.BookingDate }

// upsert replaces the row with the same id or prepends it, then restores
// newest-first order if the row landed out of place.
func upsert[T any](list []T, row T, id func(T) string, at func(T) time.Time) []T {
	i := slices.IndexFunc(list, func(x T) bool { return id(x) == id(row) })
	if i >= 0 {
		list[i] = row
	} else {
		list = slices.Insert(list, 0, row)
		i = 0
	}

	inOrder := (i == 0 || !at(list[i-1]).Before(at(row))) &&
		(i == len(list)-1 || !at(row).Before(at(list[i+1])))
	if !inOrder {
		slices.SortStableFunc(list, func(a, b T) int { return at(b).Compare(at(a)) })
	}
	return list
}

func remove[T any](list []T, rowID string, id func(T) string) []T {
	return slices.DeleteFunc(list, func(x T) bool { return id(x) == rowID })
}

// ApplyJob keeps AvailableJobs to open jobs only.
func (r *Reconciler) ApplyJob(kind Kind, j model.Job, id string) {
	if kind == Delete || j.Status != model.JobOpen {
		r.available = remove(r.available, id, jobID)
		return
	}
	r.available = upsert(r.available, j, jobID, jobTime)
}

// ApplyApplication tracks the worker's own applications.
func (r *Reconciler) ApplyApplication(kind Kind, a model.JobApplication, id string) {
	if kind == Delete {
		r.applications = remove(r.applications, id, appID)
		return
	}
	if a.ProviderID != r.self {
		return
	}
	r.applications = upsert(r.applications, a, appID, appTime)
}

// ApplyService maintains the set of service ids bookings are admitted for.
func (r *Reconciler) ApplyService(kind Kind, s model.Service, id string) {
	if kind == Delete || s.ProviderID != r.self {
		delete(r.serviceIDs, id)
		return
	}
	r.serviceIDs[s.ID] = struct{}{}
}

func (r *Reconciler) OwnsService(serviceID string) bool {
	_, ok := r.serviceIDs[serviceID]
	return ok
}

// ApplyBooking merges an enriched booking into both booking projections.
// The caller has already confirmed ownership.
func (r *Reconciler) ApplyBooking(b disclosure.BookingView) {
	r.bookings = upsert(r.bookings, b, bookingID, bookingTime)
	r.recent = upsert(r.recent, b, bookingID, bookingTime)
	if len(r.recent) > RecentLimit {
		clear(r.recent[RecentLimit:])
		r.recent = r.recent[:RecentLimit]
	}
}

func (r *Reconciler) RemoveBooking(id string) {
	r.bookings = remove(r.bookings, id, bookingID)
	r.recent = remove(r.recent, id, bookingID)
}

// Snapshot copies the projections; the result is safe to hand to another
// goroutine.
func (r *Reconciler) Snapshot() Snapshot {
	return Snapshot{
		AvailableJobs:        append([]model.Job{}, r.available...),
		MyApplications:       append([]model.JobApplication{}, r.applications...),
		MyServiceBookings:    append([]disclosure.BookingView{}, r.bookings...),
		RecentClientBookings: append([]disclosure.BookingView{}, r.recent...),
	}
}
