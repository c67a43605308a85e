package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/model"
)

// memStore is an in-memory Store. The mutex plays the role of the row locks
// the conditional updates rely on.
type memStore struct {
	mu       sync.Mutex
	seq      int
	jobs     map[string]model.Job
	apps     map[string]model.JobApplication
	profiles map[string]model.Profile
}

func newMemStore() *memStore {
	return &memStore{
		jobs: map[string]model.Job{},
		apps: map[string]model.JobApplication{},
		profiles: map[string]model.Profile{
			"client-1": {ID: "client-1", Role: model.RoleClient, FullName: "Cara Client", Email: "cara@example.com", Phone: "+254700000001"},
			"worker-1": {ID: "worker-1", Role: model.RoleWorker, FullName: "Wes Worker"},
			"worker-2": {ID: "worker-2", Role: model.RoleWorker, FullName: "Wanda Worker"},
		},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) InsertJob(_ context.Context, p map[string]any) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := model.Job{
		ID:        m.nextID("job"),
		PosterID:  p["poster_id"].(string),
		Title:     p["title"].(string),
		Budget:    p["budget"].(float64),
		Status:    model.JobOpen,
		CreatedAt: time.Now(),
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *memStore) GetJob(_ context.Context, id string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return j, apperr.NotFound("job not found")
	}
	return j, nil
}

func (m *memStore) ListOpenJobs(context.Context, int) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Job{}
	for _, j := range m.jobs {
		if j.Status == model.JobOpen {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memStore) ListJobsByPoster(_ context.Context, posterID string) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Job{}
	for _, j := range m.jobs {
		if j.PosterID == posterID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memStore) SetJobStatus(_ context.Context, id string, from, to model.JobStatus) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	if j.Status != from {
		return j, apperr.Conflict("job is no longer %s", from)
	}
	j.Status = to
	m.jobs[id] = j
	return j, nil
}

func (m *memStore) InsertApplication(_ context.Context, a model.JobApplication) (model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.apps {
		if existing.JobID == a.JobID && existing.ProviderID == a.ProviderID {
			return model.JobApplication{}, apperr.Conflict("you have already applied to this job")
		}
	}
	a.ID = m.nextID("app")
	a.Status = model.ApplicationPending
	m.apps[a.ID] = a
	return a, nil
}

func (m *memStore) GetApplication(_ context.Context, id string) (model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return a, apperr.NotFound("Application not found")
	}
	return a, nil
}

func (m *memStore) AcceptedApplication(_ context.Context, jobID string) (*model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.JobID == jobID && a.Status == model.ApplicationAccepted {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) ApplicationFor(_ context.Context, jobID, providerID string) (*model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.JobID == jobID && a.ProviderID == providerID {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListApplicationsByJob(_ context.Context, jobID string) ([]model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.JobApplication{}
	for _, a := range m.apps {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListApplicationsByProvider(_ context.Context, providerID string) ([]model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.JobApplication{}
	for _, a := range m.apps {
		if a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) AcceptApplication(_ context.Context, jobID, appID string) (model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[jobID]
	if j.Status != model.JobOpen {
		return model.JobApplication{}, apperr.Conflict("job already has an accepted application")
	}
	a := m.apps[appID]
	if a.Status != model.ApplicationPending {
		return model.JobApplication{}, apperr.Conflict("application is no longer pending")
	}
	j.Status = model.JobInProgress
	a.Status = model.ApplicationAccepted
	m.jobs[jobID] = j
	m.apps[appID] = a
	return a, nil
}

func (m *memStore) SetApplicationStatus(_ context.Context, id string, from, to model.ApplicationStatus) (model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.apps[id]
	if a.Status != from {
		return a, apperr.Conflict("application is no longer %s", from)
	}
	a.Status = to
	m.apps[id] = a
	return a, nil
}

func (m *memStore) RevealContact(_ context.Context, id string) (model.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.apps[id]
	if a.Status != model.ApplicationAccepted {
		return a, apperr.State("Application must be accepted to reveal contact")
	}
	a.ClientContactRevealed = true
	m.apps[id] = a
	return a, nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return p, apperr.NotFound("profile not found")
	}
	return p, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	accepted []string
}

func (r *recordingNotifier) ApplicationAccepted(_ context.Context, providerID, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted = append(r.accepted, providerID)
	return nil
}

var (
	client  = &auth.Session{UserID: "client-1", Role: model.RoleClient}
	worker1 = &auth.Session{UserID: "worker-1", Role: model.RoleWorker}
	worker2 = &auth.Session{UserID: "worker-2", Role: model.RoleWorker}
)

func newTestService() (*Service, *memStore, *recordingNotifier) {
	st := newMemStore()
	n := &recordingNotifier{}
	return NewService(st, n, zap.NewNop()), st, n
}

func postJob(t *testing.T, svc *Service) model.Job {
	t.Helper()
	job, err := svc.Create(context.Background(), client, NewJob{
		Title: "Fix sink", Description: "Leaking", Category: "plumbing", Budget: 5000, BudgetType: "fixed",
	})
	require.NoError(t, err)
	return job
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, worker1, NewJob{Title: "x", Description: "y", Category: "z", Budget: 1})
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.Create(ctx, client, NewJob{Title: " ", Description: "y", Budget: 1})
	require.True(t, apperr.IsValidation(err))

	_, err = svc.Create(ctx, client, NewJob{Title: "x", Description: "y", Category: "z", Budget: 0})
	assert.True(t, apperr.IsValidation(err))
}

func TestHappyPathJob(t *testing.T) {
	svc, st, notify := newTestService()
	ctx := context.Background()

	job := postJob(t, svc)
	app, err := svc.Apply(ctx, worker1, job.ID, 4500)
	require.NoError(t, err)

	// Before reveal the worker sees no poster contact.
	view, err := svc.Get(ctx, worker1, job.ID)
	require.NoError(t, err)
	assert.True(t, view.PosterHidden)
	assert.Nil(t, view.Poster)

	accepted, err := svc.Accept(ctx, client, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationAccepted, accepted.Status)
	assert.Equal(t, []string{"worker-1"}, notify.accepted)

	revealed, already, err := svc.Reveal(ctx, worker1, app.ID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, revealed.ClientContactRevealed)

	view, err = svc.Get(ctx, worker1, job.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Poster)
	assert.Equal(t, "+254700000001", view.Poster.Phone)

	done, err := svc.Complete(ctx, client, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Equal(t, model.ApplicationAccepted, st.apps[app.ID].Status)
}

func TestConcurrentAccept(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	job := postJob(t, svc)
	a1, err := svc.Apply(ctx, worker1, job.ID, 4500)
	require.NoError(t, err)
	a2, err := svc.Apply(ctx, worker2, job.ID, 4000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a1.ID, a2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, client, id)
		}(i, id)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, model.JobInProgress, st.jobs[job.ID].Status)

	accepted := 0
	for _, a := range st.apps {
		if a.Status == model.ApplicationAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestAcceptKeepsOthersPending(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	job := postJob(t, svc)
	a1, _ := svc.Apply(ctx, worker1, job.ID, 4500)
	a2, _ := svc.Apply(ctx, worker2, job.ID, 4000)

	_, err := svc.Accept(ctx, client, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationPending, st.apps[a2.ID].Status)

	_, err = svc.Accept(ctx, client, a2.ID)
	assert.True(t, apperr.IsConflict(err))
}

func TestApplyRules(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	job := postJob(t, svc)

	_, err := svc.Apply(ctx, client, job.ID, 100)
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.Apply(ctx, worker1, job.ID, 0)
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Apply(ctx, worker1, job.ID, 100)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, worker1, job.ID, 100)
	assert.True(t, apperr.IsConflict(err))

	_, err = svc.Close(ctx, client, job.ID)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, worker2, job.ID, 100)
	assert.True(t, apperr.IsState(err))
}

func TestOnlyPosterDrivesApplications(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	job := postJob(t, svc)
	app, _ := svc.Apply(ctx, worker1, job.ID, 4500)

	_, err := svc.Accept(ctx, worker2, app.ID)
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.Reject(ctx, worker1, app.ID)
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.Applications(ctx, worker2, job.ID)
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.Withdraw(ctx, client, app.ID)
	assert.True(t, apperr.IsForbidden(err))

	withdrawn, err := svc.Withdraw(ctx, worker1, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationWithdrawn, withdrawn.Status)
}

func TestRevealRules(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	job := postJob(t, svc)
	app, _ := svc.Apply(ctx, worker1, job.ID, 4500)

	_, _, err := svc.Reveal(ctx, worker1, "missing")
	assert.True(t, apperr.IsNotFound(err))

	_, _, err = svc.Reveal(ctx, worker2, app.ID)
	assert.True(t, apperr.IsForbidden(err))

	_, _, err = svc.Reveal(ctx, worker1, app.ID)
	assert.True(t, apperr.IsState(err))

	_, err = svc.Accept(ctx, client, app.ID)
	require.NoError(t, err)

	_, already, err := svc.Reveal(ctx, worker1, app.ID)
	require.NoError(t, err)
	assert.False(t, already)

	_, already, err = svc.Reveal(ctx, worker1, app.ID)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestCompleteDrivers(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	job := postJob(t, svc)
	app, _ := svc.Apply(ctx, worker1, job.ID, 4500)

	_, err := svc.Complete(ctx, client, job.ID)
	assert.True(t, apperr.IsState(err), "open job cannot complete")

	_, err = svc.Accept(ctx, client, app.ID)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, worker2, job.ID)
	assert.True(t, apperr.IsForbidden(err))

	done, err := svc.Complete(ctx, worker1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, done.Status)

	_, err = svc.Close(ctx, client, job.ID)
	assert.True(t, apperr.IsState(err))
}
