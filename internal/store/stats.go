package store

import (
	"context"
)

// Stats are the admin dashboard counters.
type Stats struct {
	Profiles     int `json:"profiles"`
	Jobs         int `json:"jobs"`
	OpenJobs     int `json:"open_jobs"`
	Applications int `json:"applications"`
	Services     int `json:"services"`
	Bookings     int `json:"bookings"`
	Reviews      int `json:"reviews"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM jobs WHERE status = 'open'),
			(SELECT COUNT(*) FROM job_applications),
			(SELECT COUNT(*) FROM services),
			(SELECT COUNT(*) FROM bookings),
			(SELECT COUNT(*) FROM reviews)`,
	).Scan(&st.Profiles, &st.Jobs, &st.OpenJobs, &st.Applications, &st.Services, &st.Bookings, &st.Reviews)
	return st, wrap(err, "stats")
}
