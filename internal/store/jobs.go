package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/model"
)

// jobColumns are the only payload keys InsertJob will write.
var jobColumns = map[string]bool{
	"poster_id": true, "client_id": true, "title": true, "description": true, "category": true,
	"required_skills": true, "budget": true, "budget_type": true, "location": true, "duration": true, "status": true,
}

// Jobs are read as JSON rows so a drifted owner column (client_id) still decodes.
const jobOwner = `COALESCE(to_jsonb(j)->>'poster_id', to_jsonb(j)->>'client_id')`

func scanJobJSON(row interface{ Scan(...any) error }) (model.Job, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return model.Job{}, err
	}
	var j model.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return model.Job{}, fmt.Errorf("decode job row: %w", err)
	}
	return j, nil
}

func collectJobs(rows pgx.Rows) ([]model.Job, error) {
	defer rows.Close()
	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanJobJSON(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// InsertJob writes one jobs row from payload. Store rejections are returned
// as *db.StoreError so the caller can rewrite the payload and retry.
func (s *Store) InsertJob(ctx context.Context, payload map[string]any) (model.Job, error) {
	cols := make([]string, 0, len(payload))
	for k := range payload {
		if !jobColumns[k] {
			return model.Job{}, apperr.Validation("unexpected job field %q", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		args[i] = payload[c]
		marks[i] = fmt.Sprintf("$%d", i+1)
	}

	sql := `INSERT INTO jobs (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(marks, ", ") + `) RETURNING row_to_json(jobs)`
	j, err := scanJobJSON(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return model.Job{}, db.Normalize(err)
	}
	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (model.Job, error) {
	j, err := scanJobJSON(s.pool.QueryRow(ctx, `SELECT row_to_json(j) FROM jobs j WHERE j.id = $1`, id))
	return j, wrap(err, "job")
}

func (s *Store) ListOpenJobs(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT row_to_json(j) FROM jobs j WHERE j.status = 'open' ORDER BY j.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, wrap(err, "jobs")
	}
	jobs, err := collectJobs(rows)
	return jobs, wrap(err, "jobs")
}

func (s *Store) ListJobsByPoster(ctx context.Context, posterID string) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT row_to_json(j) FROM jobs j WHERE `+jobOwner+` = $1 ORDER BY j.created_at DESC`, posterID)
	if err != nil {
		return nil, wrap(err, "jobs")
	}
	jobs, err := collectJobs(rows)
	return jobs, wrap(err, "jobs")
}

// SetJobStatus moves a job from one status to another; a concurrent change
// makes the conditional update miss and yields a conflict.
func (s *Store) SetJobStatus(ctx context.Context, id string, from, to model.JobStatus) (model.Job, error) {
	j, err := scanJobJSON(s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING row_to_json(jobs)`, id, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, apperr.Conflict("job is no longer %s", from)
	}
	return j, wrap(err, "job")
}
