package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/model"
)

type fakeStore struct {
	mu         sync.Mutex
	jobs       []model.Job
	services   map[string]model.Service
	profiles   map[string]model.Profile
	bookings   []model.Booking
	profileErr error
	lookups    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services: map[string]model.Service{
			"svc-1": {ID: "svc-1", ProviderID: "worker-w", Name: "Plumbing", Status: model.ServiceOpen},
			"svc-2": {ID: "svc-2", ProviderID: "worker-x", Name: "Painting", Status: model.ServiceOpen},
		},
		profiles: map[string]model.Profile{
			"client-c": {ID: "client-c", FullName: "Ada Client", Email: "ada@example.com", Phone: "+2348000000000"},
		},
	}
}

func (f *fakeStore) ListOpenJobs(context.Context, int) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Job{}, f.jobs...), nil
}

func (f *fakeStore) ListApplicationsByProvider(context.Context, string) ([]model.JobApplication, error) {
	return nil, nil
}

func (f *fakeStore) ListServicesByProvider(_ context.Context, providerID string) ([]model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Service
	for _, s := range f.services {
		if s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBookingsForProvider(context.Context, string, int) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Booking{}, f.bookings...), nil
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.profileErr != nil {
		return model.Profile{}, f.profileErr
	}
	return f.profiles[id], nil
}

func (f *fakeStore) GetService(_ context.Context, id string) (model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	s, ok := f.services[id]
	if !ok {
		return s, errors.New("service not found")
	}
	return s, nil
}

func (f *fakeStore) set(fn func(f *fakeStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func change(t *testing.T, kind Kind, table string, row any) Change {
	t.Helper()
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	if kind == Delete {
		return Change{Kind: kind, Table: table, OldRow: raw}
	}
	return Change{Kind: kind, Table: table, Row: raw}
}

type harness struct {
	hub     *Hub
	store   *fakeStore
	dash    *Dashboard
	initial Snapshot
	updates chan Snapshot
}

func open(t *testing.T, st *fakeStore) *harness {
	t.Helper()
	h := &harness{hub: NewHub(zap.NewNop()), store: st, updates: make(chan Snapshot, 64)}
	viewer := disclosure.Viewer{ID: "worker-w", Role: model.RoleWorker}
	dash, initial, err := Open(context.Background(), st, h.hub, viewer, zap.NewNop(), func(s Snapshot) { h.updates <- s })
	require.NoError(t, err)
	h.dash, h.initial = dash, initial
	t.Cleanup(dash.Close)
	return h
}

func (h *harness) publish(t *testing.T, c Change) {
	t.Helper()
	require.NoError(t, h.hub.Publish(context.Background(), c))
}

func (h *harness) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-h.updates:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
		return Snapshot{}
	}
}

func TestDashboardJobStream(t *testing.T) {
	h := open(t, newFakeStore())

	h.publish(t, change(t, Insert, "jobs", job("J1", 1, model.JobOpen)))
	h.publish(t, change(t, Insert, "jobs", job("J2", 2, model.JobOpen)))
	h.publish(t, change(t, Update, "jobs", job("J1", 1, model.JobClosed)))

	h.next(t)
	h.next(t)
	assert.Equal(t, []string{"J2"}, jobIDs(h.next(t).AvailableJobs))
}

func TestDashboardBookingEnrichedAndGated(t *testing.T) {
	h := open(t, newFakeStore())

	b := model.Booking{ID: "B1", ServiceID: "svc-1", ClientID: "client-c", BookingDate: at(1), Status: model.BookingPending}
	h.publish(t, change(t, Insert, "bookings", b))

	snap := h.next(t)
	require.Len(t, snap.MyServiceBookings, 1)
	pending := snap.MyServiceBookings[0]
	assert.True(t, pending.ClientHidden)
	assert.Nil(t, pending.Client)
	assert.Empty(t, pending.ClientID)
	require.NotNil(t, pending.Service)
	assert.Equal(t, "Plumbing", pending.Service.Name)

	b.Status = model.BookingApproved
	h.publish(t, change(t, Update, "bookings", b))

	snap = h.next(t)
	require.Len(t, snap.MyServiceBookings, 1)
	require.NotNil(t, snap.MyServiceBookings[0].Client)
	assert.Equal(t, "ada@example.com", snap.MyServiceBookings[0].Client.Email)
	assert.Equal(t, []string{"B1"}, bookingIDs(snap.RecentClientBookings))

	h.publish(t, change(t, Delete, "bookings", b))
	snap = h.next(t)
	assert.Empty(t, snap.MyServiceBookings)
	assert.Empty(t, snap.RecentClientBookings)
}

func TestDashboardDropsOnFailedLookup(t *testing.T) {
	st := newFakeStore()
	h := open(t, st)
	st.set(func(f *fakeStore) { f.profileErr = errors.New("profiles unavailable") })

	h.publish(t, change(t, Insert, "bookings", model.Booking{ID: "B1", ServiceID: "svc-1", ClientID: "client-c", BookingDate: at(1)}))
	h.publish(t, change(t, Insert, "jobs", job("J1", 1, model.JobOpen)))

	snap := h.next(t)
	assert.Equal(t, []string{"J1"}, jobIDs(snap.AvailableJobs))
	assert.Empty(t, snap.MyServiceBookings)
}

func TestDashboardOwnership(t *testing.T) {
	st := newFakeStore()
	h := open(t, st)

	// Not one of my services: ignored without any lookup.
	h.publish(t, change(t, Insert, "bookings", model.Booking{ID: "B1", ServiceID: "svc-2", ClientID: "client-c", BookingDate: at(1)}))

	// Listed as mine at load time but the store now says otherwise.
	st.set(func(f *fakeStore) { f.services["svc-1"] = model.Service{ID: "svc-1", ProviderID: "worker-x"} })
	h.publish(t, change(t, Insert, "bookings", model.Booking{ID: "B2", ServiceID: "svc-1", ClientID: "client-c", BookingDate: at(2)}))

	h.publish(t, change(t, Insert, "jobs", job("J1", 1, model.JobOpen)))

	snap := h.next(t)
	assert.Empty(t, snap.MyServiceBookings)
	st.set(func(f *fakeStore) { assert.Equal(t, 2, f.lookups) })
}

func TestDashboardInitialLoad(t *testing.T) {
	st := newFakeStore()
	st.jobs = []model.Job{job("J1", 1, model.JobOpen), job("J2", 2, model.JobOpen)}
	st.bookings = []model.Booking{
		{ID: "B1", ServiceID: "svc-1", ClientID: "client-c", BookingDate: at(1), Status: model.BookingPending},
		{ID: "B2", ServiceID: "svc-1", ClientID: "client-c", BookingDate: at(2), Status: model.BookingApproved},
	}

	h := open(t, st)

	assert.Equal(t, []string{"J2", "J1"}, jobIDs(h.initial.AvailableJobs))
	require.Equal(t, []string{"B2", "B1"}, bookingIDs(h.initial.MyServiceBookings))
	assert.NotNil(t, h.initial.MyServiceBookings[0].Client)
	assert.Nil(t, h.initial.MyServiceBookings[1].Client)
	// Only the approved booking needed the client's profile.
	st.set(func(f *fakeStore) { assert.Equal(t, 1, f.lookups) })
}

func TestDashboardCloseUnsubscribes(t *testing.T) {
	h := open(t, newFakeStore())
	assert.Equal(t, 1, h.hub.Len())

	h.dash.Close()
	h.dash.Close()
	assert.Equal(t, 0, h.hub.Len())

	h.publish(t, change(t, Insert, "jobs", job("J1", 1, model.JobOpen)))
	select {
	case <-h.updates:
		t.Fatal("update after close")
	case <-time.After(50 * time.Millisecond):
	}
}
