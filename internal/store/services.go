package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

const serviceColumns = `id, provider_id, name, description, price, duration, location, status, created_at`

func scanService(row interface{ Scan(...any) error }) (model.Service, error) {
	var v model.Service
	err := row.Scan(&v.ID, &v.ProviderID, &v.Name, &v.Description, &v.Price, &v.Duration, &v.Location, &v.Status, &v.CreatedAt)
	return v, err
}

func (s *Store) listServices(ctx context.Context, sql string, args ...any) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err, "services")
	}
	defer rows.Close()

	out := []model.Service{}
	for rows.Next() {
		v, err := scanService(rows)
		if err != nil {
			return nil, wrap(err, "services")
		}
		out = append(out, v)
	}
	return out, wrap(rows.Err(), "services")
}

func (s *Store) InsertService(ctx context.Context, v model.Service) (model.Service, error) {
	out, err := scanService(s.pool.QueryRow(ctx, `
		INSERT INTO services (provider_id, name, description, price, duration, location, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+serviceColumns,
		v.ProviderID, v.Name, v.Description, v.Price, v.Duration, v.Location,
	))
	return out, wrap(err, "service")
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	v, err := scanService(s.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	return v, wrap(err, "service")
}

func (s *Store) ListBookableServices(ctx context.Context) ([]model.Service, error) {
	return s.listServices(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE status IN ('open', 'approved') ORDER BY created_at DESC`)
}

func (s *Store) ListServicesByProvider(ctx context.Context, providerID string) ([]model.Service, error) {
	return s.listServices(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE provider_id = $1 ORDER BY created_at DESC`, providerID)
}

func (s *Store) ListServicesByStatus(ctx context.Context, status model.ServiceStatus) ([]model.Service, error) {
	return s.listServices(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE status = $1 ORDER BY created_at ASC`, status)
}

func (s *Store) SetServiceStatus(ctx context.Context, id string, from, to model.ServiceStatus) (model.Service, error) {
	v, err := scanService(s.pool.QueryRow(ctx, `
		UPDATE services SET status = $3 WHERE id = $1 AND status = $2
		RETURNING `+serviceColumns, id, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return v, apperr.Conflict("service is no longer %s", from)
	}
	return v, wrap(err, "service")
}
