package store

import (
	"context"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

const profileColumns = `id, role, full_name, email, phone, avatar_url, phone_verified, created_at`

func scanProfile(row interface{ Scan(...any) error }) (model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.ID, &p.Role, &p.FullName, &p.Email, &p.Phone, &p.AvatarURL, &p.PhoneVerified, &p.CreatedAt)
	return p, err
}

func (s *Store) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	out, err := scanProfile(s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, role, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING `+profileColumns,
		p.ID, p.Role, p.FullName, p.Email, p.Phone,
	))
	return out, wrap(err, "profile")
}

func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	return p, wrap(err, "profile")
}

func (s *Store) SetPhoneVerified(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET phone_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "profile")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("profile not found")
	}
	return nil
}

// PromoteToAdmin sets role=admin for the profile with email and returns its id.
func (s *Store) PromoteToAdmin(ctx context.Context, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`UPDATE profiles SET role = 'admin' WHERE lower(email) = lower($1) RETURNING id`, email,
	).Scan(&id)
	return id, wrap(err, "profile")
}

// ProfileUpdate carries the fields an owner may change. Nil leaves a field as is.
type ProfileUpdate struct {
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// UpdateProfile applies u to the profile. A changed phone number is no longer
// verified.
func (s *Store) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (model.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `
		UPDATE profiles SET
			full_name      = COALESCE($2, full_name),
			phone          = COALESCE($3, phone),
			avatar_url     = COALESCE($4, avatar_url),
			phone_verified = CASE WHEN $3::text IS NOT NULL AND $3::text <> phone THEN FALSE ELSE phone_verified END
		WHERE id = $1
		RETURNING `+profileColumns,
		id, u.FullName, u.Phone, u.AvatarURL,
	))
	return p, wrap(err, "profile")
}
