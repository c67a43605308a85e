package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

const bookingColumns = `b.id, b.service_id, b.client_id, b.booking_date, b.status, b.notes, b.created_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.ServiceID, &b.ClientID, &b.BookingDate, &b.Status, &b.Notes, &b.CreatedAt)
	return b, err
}

func (s *Store) listBookings(ctx context.Context, sql string, args ...any) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err, "bookings")
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, wrap(err, "bookings")
		}
		out = append(out, b)
	}
	return out, wrap(rows.Err(), "bookings")
}

func (s *Store) InsertBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	out, err := scanBooking(s.pool.QueryRow(ctx, `
		INSERT INTO bookings AS b (service_id, client_id, booking_date, status, notes)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING `+bookingColumns,
		b.ServiceID, b.ClientID, b.BookingDate, b.Notes,
	))
	return out, wrap(err, "booking")
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	return b, wrap(err, "booking")
}

func (s *Store) ListBookingsByClient(ctx context.Context, clientID string) ([]model.Booking, error) {
	return s.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.client_id = $1 ORDER BY b.booking_date DESC`, clientID)
}

func (s *Store) ListBookingsByService(ctx context.Context, serviceID string) ([]model.Booking, error) {
	return s.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.service_id = $1 ORDER BY b.booking_date DESC`, serviceID)
}

// ListBookingsForProvider returns bookings on any of providerID's services.
func (s *Store) ListBookingsForProvider(ctx context.Context, providerID string, limit int) ([]model.Booking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b JOIN services s ON s.id = b.service_id
		WHERE s.provider_id = $1
		ORDER BY b.booking_date DESC
		LIMIT $2`, providerID, limit)
}

func (s *Store) ListAllBookings(ctx context.Context, limit int) ([]model.Booking, error) {
	return s.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings b ORDER BY b.created_at DESC LIMIT $1`, limit)
}

func (s *Store) SetBookingStatus(ctx context.Context, id string, from, to model.BookingStatus) (model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `
		UPDATE bookings AS b SET status = $3, updated_at = NOW()
		WHERE b.id = $1 AND b.status = $2
		RETURNING `+bookingColumns, id, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return b, apperr.Conflict("booking is no longer %s", from)
	}
	return b, wrap(err, "booking")
}
