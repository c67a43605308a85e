package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/model"
)

// ReviewFilter narrows ListReviews. UserID matches reviewer or reviewee.
type ReviewFilter struct {
	JobID     string
	BookingID string
	UserID    string
}

// Reviews are always joined with the public profile fields only.
const reviewSelect = `
	SELECT r.id, r.reviewer_id, r.reviewee_id, r.job_id, r.booking_id, r.rating, r.comment, r.created_at,
	       er.id, er.full_name, er.avatar_url,
	       ee.id, ee.full_name, ee.avatar_url
	FROM reviews r
	LEFT JOIN profiles er ON er.id = r.reviewer_id
	LEFT JOIN profiles ee ON ee.id = r.reviewee_id`

func scanReview(row interface{ Scan(...any) error }) (model.ReviewWithParties, error) {
	var (
		r                  model.ReviewWithParties
		erID, eeID         *string
		erName, eeName     *string
		erAvatar, eeAvatar *string
	)
	err := row.Scan(&r.ID, &r.ReviewerID, &r.RevieweeID, &r.JobID, &r.BookingID, &r.Rating, &r.Comment, &r.CreatedAt,
		&erID, &erName, &erAvatar, &eeID, &eeName, &eeAvatar)
	if err != nil {
		return r, err
	}
	if erID != nil {
		r.Reviewer = &model.PublicProfile{ID: *erID, FullName: deref(erName), AvatarURL: erAvatar}
	}
	if eeID != nil {
		r.Reviewee = &model.PublicProfile{ID: *eeID, FullName: deref(eeName), AvatarURL: eeAvatar}
	}
	return r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ReviewExists reports whether reviewer already reviewed reviewee for the
// given job or booking.
func (s *Store) ReviewExists(ctx context.Context, reviewerID, revieweeID string, jobID, bookingID *string) (bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM reviews
		WHERE reviewer_id = $1 AND reviewee_id = $2
		  AND job_id IS NOT DISTINCT FROM $3::uuid
		  AND booking_id IS NOT DISTINCT FROM $4::uuid
		LIMIT 1`, reviewerID, revieweeID, jobID, bookingID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err, "review")
	}
	return true, nil
}

func (s *Store) InsertReview(ctx context.Context, r model.Review) (model.ReviewWithParties, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO reviews (reviewer_id, reviewee_id, job_id, booking_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.ReviewerID, r.RevieweeID, r.JobID, r.BookingID, r.Rating, r.Comment,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return model.ReviewWithParties{}, apperr.Conflict("You have already reviewed this item")
	}
	if err != nil {
		return model.ReviewWithParties{}, wrap(err, "review")
	}

	out, err := scanReview(s.pool.QueryRow(ctx, reviewSelect+` WHERE r.id = $1`, id))
	return out, wrap(err, "review")
}

func (s *Store) ListReviews(ctx context.Context, f ReviewFilter) ([]model.ReviewWithParties, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.JobID != "" {
		where = append(where, "r.job_id = "+arg(f.JobID))
	}
	if f.BookingID != "" {
		where = append(where, "r.booking_id = "+arg(f.BookingID))
	}
	if f.UserID != "" {
		p := arg(f.UserID)
		where = append(where, "(r.reviewer_id = "+p+" OR r.reviewee_id = "+p+")")
	}

	sql := reviewSelect
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY r.created_at DESC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err, "reviews")
	}
	defer rows.Close()

	out := []model.ReviewWithParties{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, wrap(err, "reviews")
		}
		out = append(out, r)
	}
	return out, wrap(rows.Err(), "reviews")
}

// RatingSummary is the aggregate of the reviews a profile has received.
type RatingSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

func (s *Store) RatingSummary(ctx context.Context, revieweeID string) (RatingSummary, error) {
	var r RatingSummary
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8 FROM reviews WHERE reviewee_id = $1`, revieweeID,
	).Scan(&r.Count, &r.Average)
	return r, wrap(err, "reviews")
}
