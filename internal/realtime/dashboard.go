package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/model"
)

const (
	initialJobLimit     = 100
	initialBookingLimit = 100
	lookupTimeout       = 5 * time.Second
)

// Store is what a dashboard reads: the initial projections and the two
// lookups that enrich a booking change.
type Store interface {
	ListOpenJobs(ctx context.Context, limit int) ([]model.Job, error)
	ListApplicationsByProvider(ctx context.Context, providerID string) ([]model.JobApplication, error)
	ListServicesByProvider(ctx context.Context, providerID string) ([]model.Service, error)
	ListBookingsForProvider(ctx context.Context, providerID string, limit int) ([]model.Booking, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	GetService(ctx context.Context, id string) (model.Service, error)
}

type Subscriber interface {
	Subscribe(fn func(Change)) (unsubscribe func())
}

var errNotOwner = errors.New("service is not owned by the dashboard viewer")

// Dashboard is one worker's live view. Hub callbacks only enqueue; a single
// goroutine drains the queue and is the only writer of the reconciler.
type Dashboard struct {
	viewer   disclosure.Viewer
	store    Store
	log      *zap.Logger
	onUpdate func(Snapshot)

	rec         *Reconciler
	queue       *changeQueue
	unsubscribe func()
	closeOnce   sync.Once
	done        chan struct{}
}

// Open subscribes, loads the initial projections and starts draining.
// onUpdate is called from the draining goroutine after every applied change
// and must not block.
func Open(ctx context.Context, st Store, hub Subscriber, viewer disclosure.Viewer, log *zap.Logger, onUpdate func(Snapshot)) (*Dashboard, Snapshot, error) {
	d := &Dashboard{
		viewer:   viewer,
		store:    st,
		log:      log.With(zap.String("worker_id", viewer.ID)),
		onUpdate: onUpdate,
		queue:    newChangeQueue(),
		done:     make(chan struct{}),
	}

	// Subscribe first so nothing committed during the initial load is missed.
	d.unsubscribe = hub.Subscribe(func(c Change) {
		if !d.queue.Enqueue(c) {
			d.log.Debug("change after dashboard close", zap.String("table", c.Table))
		}
	})

	initial, err := d.load(ctx)
	if err != nil {
		d.unsubscribe()
		d.queue.Close()
		close(d.done)
		return nil, Snapshot{}, err
	}
	d.rec = NewReconciler(viewer.ID, initial)
	snap := d.rec.Snapshot()

	go d.run(ctx)
	return d, snap, nil
}

func (d *Dashboard) load(ctx context.Context) (Initial, error) {
	var in Initial
	var err error

	if in.Jobs, err = d.store.ListOpenJobs(ctx, initialJobLimit); err != nil {
		return in, fmt.Errorf("load open jobs: %w", err)
	}
	if in.Applications, err = d.store.ListApplicationsByProvider(ctx, d.viewer.ID); err != nil {
		return in, fmt.Errorf("load applications: %w", err)
	}
	if in.Services, err = d.store.ListServicesByProvider(ctx, d.viewer.ID); err != nil {
		return in, fmt.Errorf("load services: %w", err)
	}
	bookings, err := d.store.ListBookingsForProvider(ctx, d.viewer.ID, initialBookingLimit)
	if err != nil {
		return in, fmt.Errorf("load bookings: %w", err)
	}

	services := make(map[string]model.Service, len(in.Services))
	for _, s := range in.Services {
		services[s.ID] = s
	}
	for _, b := range bookings {
		svc, ok := services[b.ServiceID]
		if !ok {
			continue
		}
		var client *model.Profile
		if disclosure.ClientVisible(b, svc, d.viewer) {
			p, err := d.store.GetProfile(ctx, b.ClientID)
			if err != nil {
				return in, fmt.Errorf("load booking client: %w", err)
			}
			client = &p
		}
		in.Bookings = append(in.Bookings, disclosure.Booking(b, client, svc, d.viewer))
	}
	return in, nil
}

func (d *Dashboard) run(ctx context.Context) {
	defer close(d.done)
	for {
		for {
			c, ok := d.queue.TryDequeue()
			if !ok {
				break
			}
			if d.apply(ctx, c) {
				d.onUpdate(d.rec.Snapshot())
			}
		}

		select {
		case <-ctx.Done():
			return
		case _, ok := <-d.queue.Wait():
			if !ok {
				return
			}
		}
	}
}

// apply merges one change and reports whether the projections may have moved.
func (d *Dashboard) apply(ctx context.Context, c Change) bool {
	id := c.ID()
	log := d.log.With(zap.String("table", c.Table), zap.String("kind", string(c.Kind)), zap.String("id", id))

	switch c.Table {
	case "jobs":
		var j model.Job
		if c.Kind != Delete {
			if err := c.Decode(&j); err != nil {
				log.Warn("job change not decoded", zap.Error(err))
				return false
			}
		}
		d.rec.ApplyJob(c.Kind, j, id)

	case "job_applications":
		var a model.JobApplication
		if c.Kind != Delete {
			if err := c.Decode(&a); err != nil {
				log.Warn("application change not decoded", zap.Error(err))
				return false
			}
		}
		d.rec.ApplyApplication(c.Kind, a, id)

	case "services":
		var s model.Service
		if c.Kind != Delete {
			if err := c.Decode(&s); err != nil {
				log.Warn("service change not decoded", zap.Error(err))
				return false
			}
		}
		d.rec.ApplyService(c.Kind, s, id)

	case "bookings":
		if c.Kind == Delete {
			d.rec.RemoveBooking(id)
			return true
		}
		var b model.Booking
		if err := c.Decode(&b); err != nil {
			log.Warn("booking change not decoded", zap.Error(err))
			return false
		}
		if !d.rec.OwnsService(b.ServiceID) {
			return false
		}
		view, err := d.enrich(ctx, b)
		if err != nil {
			log.Warn("booking change dropped", zap.Error(err))
			return false
		}
		d.rec.ApplyBooking(view)

	default:
		return false
	}
	return true
}

// enrich runs the client and service lookups in parallel and re-checks that
// the service really belongs to the viewer.
func (d *Dashboard) enrich(ctx context.Context, b model.Booking) (disclosure.BookingView, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var (
		client model.Profile
		svc    model.Service
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := d.store.GetProfile(gctx, b.ClientID)
		if err != nil {
			return fmt.Errorf("client profile: %w", err)
		}
		client = p
		return nil
	})
	g.Go(func() error {
		s, err := d.store.GetService(gctx, b.ServiceID)
		if err != nil {
			return fmt.Errorf("service: %w", err)
		}
		svc = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return disclosure.BookingView{}, err
	}

	if svc.ProviderID != d.viewer.ID {
		return disclosure.BookingView{}, errNotOwner
	}
	return disclosure.Booking(b, &client, svc, d.viewer), nil
}

// Close unsubscribes and waits for the draining goroutine. It may be called
// more than once.
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		d.unsubscribe()
		d.queue.Close()
	})
	<-d.done
}
