package jobs

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/lifecycle"
	"github.com/sudo-init-do/localfix/internal/model"
)

const listLimit = 100

// Store is the persistence the jobs package needs. *store.Store satisfies it.
type Store interface {
	JobInserter
	GetJob(ctx context.Context, id string) (model.Job, error)
	ListOpenJobs(ctx context.Context, limit int) ([]model.Job, error)
	ListJobsByPoster(ctx context.Context, posterID string) ([]model.Job, error)
	SetJobStatus(ctx context.Context, id string, from, to model.JobStatus) (model.Job, error)

	InsertApplication(ctx context.Context, a model.JobApplication) (model.JobApplication, error)
	GetApplication(ctx context.Context, id string) (model.JobApplication, error)
	AcceptedApplication(ctx context.Context, jobID string) (*model.JobApplication, error)
	ApplicationFor(ctx context.Context, jobID, providerID string) (*model.JobApplication, error)
	ListApplicationsByJob(ctx context.Context, jobID string) ([]model.JobApplication, error)
	ListApplicationsByProvider(ctx context.Context, providerID string) ([]model.JobApplication, error)
	AcceptApplication(ctx context.Context, jobID, appID string) (model.JobApplication, error)
	SetApplicationStatus(ctx context.Context, id string, from, to model.ApplicationStatus) (model.JobApplication, error)
	RevealContact(ctx context.Context, id string) (model.JobApplication, error)

	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// Notifier is told when an application is accepted.
type Notifier interface {
	ApplicationAccepted(ctx context.Context, providerID, jobID, jobTitle string) error
}

// NewJob is the create payload.
type NewJob struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	RequiredSkills []string `json:"required_skills"`
	Budget         float64  `json:"budget"`
	BudgetType     string   `json:"budget_type"`
	Location       string   `json:"location"`
	Duration       string   `json:"duration"`
}

func (n NewJob) validate() error {
	var missing []string
	if strings.TrimSpace(n.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(n.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(n.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields").WithDetails(map[string]any{"fields": missing})
	}
	if n.Budget <= 0 {
		return apperr.Validation("budget must be greater than zero")
	}
	return nil
}

// Payload is the starting row for the writer.
func (n NewJob) Payload(posterID string) map[string]any {
	skills := n.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	budgetType := n.BudgetType
	if budgetType == "" {
		budgetType = model.BudgetFixed
	}
	return map[string]any{
		"poster_id":       posterID,
		"title":           strings.TrimSpace(n.Title),
		"description":     strings.TrimSpace(n.Description),
		"category":        strings.TrimSpace(n.Category),
		"required_skills": skills,
		"budget":          n.Budget,
		"budget_type":     budgetType,
		"location":        n.Location,
		"duration":        n.Duration,
		"status":          string(model.JobOpen),
	}
}

// Service holds the job and application rules.
type Service struct {
	store  Store
	writer *Writer
	notify Notifier
	log    *zap.Logger
}

func NewService(store Store, notify Notifier, log *zap.Logger) *Service {
	return &Service{store: store, writer: NewWriter(store, log), notify: notify, log: log}
}

func (s *Service) Create(ctx context.Context, sess *auth.Session, in NewJob) (model.Job, error) {
	if sess.Role != model.RoleClient {
		return model.Job{}, apperr.Forbidden("only clients can post jobs")
	}
	if err := in.validate(); err != nil {
		return model.Job{}, err
	}
	res, err := s.writer.Insert(ctx, in.Payload(sess.UserID))
	if err != nil {
		s.log.Error("job insert failed", zap.String("poster_id", sess.UserID), zap.Error(err))
		return model.Job{}, err
	}
	return res.Job, nil
}

func (s *Service) ListOpen(ctx context.Context) ([]model.Job, error) {
	return s.store.ListOpenJobs(ctx, listLimit)
}

func (s *Service) Mine(ctx context.Context, sess *auth.Session) ([]model.Job, error) {
	return s.store.ListJobsByPoster(ctx, sess.UserID)
}

// Get returns a job shaped for the viewer. sess may be nil.
func (s *Service) Get(ctx context.Context, sess *auth.Session, id string) (disclosure.JobView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return disclosure.JobView{}, err
	}

	var viewer disclosure.Viewer
	var rel disclosure.Relationship
	if sess != nil {
		viewer = disclosure.Viewer{ID: sess.UserID, Role: sess.Role}
		if sess.UserID != job.PosterID && sess.Role == model.RoleWorker {
			if rel.Application, err = s.store.ApplicationFor(ctx, job.ID, sess.UserID); err != nil {
				return disclosure.JobView{}, err
			}
		}
	}

	var poster *model.Profile
	if disclosure.PosterVisible(job, viewer, rel) {
		p, err := s.store.GetProfile(ctx, job.PosterID)
		switch {
		case err == nil:
			poster = &p
		case !apperr.IsNotFound(err):
			return disclosure.JobView{}, err
		}
	}
	return disclosure.Job(job, poster, viewer, rel), nil
}

func (s *Service) Close(ctx context.Context, sess *auth.Session, id string) (model.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	parties := lifecycle.JobParties(job, "", sess.UserID)
	if err := lifecycle.CanTransition(lifecycle.EntityJob, string(job.Status), string(model.JobClosed), parties); err != nil {
		return model.Job{}, err
	}
	return s.store.SetJobStatus(ctx, id, job.Status, model.JobClosed)
}

func (s *Service) Complete(ctx context.Context, sess *auth.Session, id string) (model.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	accepted, err := s.store.AcceptedApplication(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	var providerID string
	if accepted != nil {
		providerID = accepted.ProviderID
	}
	parties := lifecycle.JobParties(job, providerID, sess.UserID)
	if err := lifecycle.CanTransition(lifecycle.EntityJob, string(job.Status), string(model.JobCompleted), parties); err != nil {
		return model.Job{}, err
	}
	return s.store.SetJobStatus(ctx, id, job.Status, model.JobCompleted)
}

func (s *Service) Apply(ctx context.Context, sess *auth.Session, jobID string, rate float64) (model.JobApplication, error) {
	if sess.Role != model.RoleWorker {
		return model.JobApplication{}, apperr.Forbidden("only workers can apply to jobs")
	}
	if rate <= 0 {
		return model.JobApplication{}, apperr.Validation("proposedRate must be greater than zero")
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return model.JobApplication{}, err
	}
	if job.PosterID == sess.UserID {
		return model.JobApplication{}, apperr.Validation("you cannot apply to your own job")
	}
	if job.Status != model.JobOpen {
		return model.JobApplication{}, apperr.State("job is %s and not accepting applications", job.Status)
	}
	return s.store.InsertApplication(ctx, model.JobApplication{
		JobID:        jobID,
		ProviderID:   sess.UserID,
		ProposedRate: rate,
	})
}

// Applications lists the applications on a job for its poster or an admin.
func (s *Service) Applications(ctx context.Context, sess *auth.Session, jobID string) ([]model.JobApplication, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != sess.UserID && sess.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only the poster can list applications")
	}
	return s.store.ListApplicationsByJob(ctx, jobID)
}

func (s *Service) MyApplications(ctx context.Context, sess *auth.Session) ([]model.JobApplication, error) {
	return s.store.ListApplicationsByProvider(ctx, sess.UserID)
}

func (s *Service) load(ctx context.Context, appID string) (model.JobApplication, model.Job, error) {
	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return model.JobApplication{}, model.Job{}, err
	}
	job, err := s.store.GetJob(ctx, app.JobID)
	if err != nil {
		return model.JobApplication{}, model.Job{}, err
	}
	return app, job, nil
}

// Accept accepts one application and moves its job to in-progress. Other
// applications stay pending; any later accept on the job is a conflict.
func (s *Service) Accept(ctx context.Context, sess *auth.Session, appID string) (model.JobApplication, error) {
	app, job, err := s.load(ctx, appID)
	if err != nil {
		return model.JobApplication{}, err
	}
	if err := lifecycle.CanAccept(job, app, sess.UserID); err != nil {
		return model.JobApplication{}, err
	}
	accepted, err := s.store.AcceptApplication(ctx, job.ID, app.ID)
	if err != nil {
		return model.JobApplication{}, err
	}
	if err := s.notify.ApplicationAccepted(ctx, accepted.ProviderID, job.ID, job.Title); err != nil {
		s.log.Warn("accept notification not queued", zap.String("application_id", app.ID), zap.Error(err))
	}
	return accepted, nil
}

func (s *Service) Reject(ctx context.Context, sess *auth.Session, appID string) (model.JobApplication, error) {
	app, job, err := s.load(ctx, appID)
	if err != nil {
		return model.JobApplication{}, err
	}
	parties := lifecycle.ApplicationParties(job, app, sess.UserID)
	if err := lifecycle.CanTransition(lifecycle.EntityApplication, string(app.Status), string(model.ApplicationRejected), parties); err != nil {
		return model.JobApplication{}, err
	}
	return s.store.SetApplicationStatus(ctx, app.ID, app.Status, model.ApplicationRejected)
}

func (s *Service) Withdraw(ctx context.Context, sess *auth.Session, appID string) (model.JobApplication, error) {
	app, job, err := s.load(ctx, appID)
	if err != nil {
		return model.JobApplication{}, err
	}
	if err := lifecycle.CanWithdraw(job, app, sess.UserID); err != nil {
		return model.JobApplication{}, err
	}
	return s.store.SetApplicationStatus(ctx, app.ID, app.Status, model.ApplicationWithdrawn)
}

// Reveal sets the contact flag on the caller's accepted application. A
// second call reports alreadyRevealed without writing.
func (s *Service) Reveal(ctx context.Context, sess *auth.Session, appID string) (model.JobApplication, bool, error) {
	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return model.JobApplication{}, false, err
	}
	if err := lifecycle.CanReveal(app, sess.UserID); err != nil {
		return model.JobApplication{}, false, err
	}
	if app.ClientContactRevealed {
		return app, true, nil
	}
	updated, err := s.store.RevealContact(ctx, app.ID)
	if err != nil {
		return model.JobApplication{}, false, err
	}
	return updated, false, nil
}
