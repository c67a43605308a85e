package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/model"
)

const applicationColumns = `id, job_id, provider_id, proposed_rate, status, client_contact_revealed, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (model.JobApplication, error) {
	var a model.JobApplication
	err := row.Scan(&a.ID, &a.JobID, &a.ProviderID, &a.ProposedRate, &a.Status, &a.ClientContactRevealed, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectApplications(rows pgx.Rows) ([]model.JobApplication, error) {
	defer rows.Close()
	apps := []model.JobApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *Store) InsertApplication(ctx context.Context, a model.JobApplication) (model.JobApplication, error) {
	out, err := scanApplication(s.pool.QueryRow(ctx, `
		INSERT INTO job_applications (job_id, provider_id, proposed_rate, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+applicationColumns,
		a.JobID, a.ProviderID, a.ProposedRate,
	))
	if db.IsUniqueViolation(err) {
		return model.JobApplication{}, apperr.Conflict("you have already applied to this job")
	}
	return out, wrap(err, "application")
}

func (s *Store) GetApplication(ctx context.Context, id string) (model.JobApplication, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return a, apperr.NotFound("Application not found")
	}
	return a, wrap(err, "application")
}

// AcceptedApplication returns the accepted application on jobID, or nil.
func (s *Store) AcceptedApplication(ctx context.Context, jobID string) (*model.JobApplication, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM job_applications WHERE job_id = $1 AND status = 'accepted'`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "application")
	}
	return &a, nil
}

// ApplicationFor returns providerID's application on jobID, or nil.
func (s *Store) ApplicationFor(ctx context.Context, jobID, providerID string) (*model.JobApplication, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM job_applications WHERE job_id = $1 AND provider_id = $2`, jobID, providerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "application")
	}
	return &a, nil
}

func (s *Store) ListApplicationsByJob(ctx context.Context, jobID string) ([]model.JobApplication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM job_applications WHERE job_id = $1 ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, wrap(err, "applications")
	}
	apps, err := collectApplications(rows)
	return apps, wrap(err, "applications")
}

func (s *Store) ListApplicationsByProvider(ctx context.Context, providerID string) ([]model.JobApplication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM job_applications WHERE provider_id = $1 ORDER BY created_at DESC`, providerID)
	if err != nil {
		return nil, wrap(err, "applications")
	}
	apps, err := collectApplications(rows)
	return apps, wrap(err, "applications")
}

// AcceptApplication serializes accepts on a job: the job row moves from open
// to in-progress first, so only one concurrent accept can pass that update.
// Other applications on the job stay pending.
func (s *Store) AcceptApplication(ctx context.Context, jobID, appID string) (model.JobApplication, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.JobApplication{}, wrap(err, "application")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET status = 'in-progress', updated_at = NOW() WHERE id = $1 AND status = 'open'`, jobID)
	if err != nil {
		return model.JobApplication{}, wrap(err, "job")
	}
	if err := ensureAffected(tag, "job already has an accepted application"); err != nil {
		return model.JobApplication{}, err
	}

	a, err := scanApplication(tx.QueryRow(ctx, `
		UPDATE job_applications SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND job_id = $2 AND status = 'pending'
		RETURNING `+applicationColumns, appID, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.JobApplication{}, apperr.Conflict("application is no longer pending")
	}
	if db.IsUniqueViolation(err) {
		return model.JobApplication{}, apperr.Conflict("job already has an accepted application")
	}
	if err != nil {
		return model.JobApplication{}, wrap(err, "application")
	}

	if err := tx.Commit(ctx); err != nil {
		return model.JobApplication{}, wrap(err, "application")
	}
	return a, nil
}

func (s *Store) SetApplicationStatus(ctx context.Context, id string, from, to model.ApplicationStatus) (model.JobApplication, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx, `
		UPDATE job_applications SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+applicationColumns, id, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return a, apperr.Conflict("application is no longer %s", from)
	}
	return a, wrap(err, "application")
}

// RevealContact sets client_contact_revealed. It only matches accepted
// applications, so the flag can never be set on any other status.
func (s *Store) RevealContact(ctx context.Context, id string) (model.JobApplication, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx, `
		UPDATE job_applications SET client_contact_revealed = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
		RETURNING `+applicationColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return a, apperr.State("Application must be accepted to reveal contact")
	}
	return a, wrap(err, "application")
}
