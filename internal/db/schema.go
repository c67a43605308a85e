package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel the change triggers publish on. Payloads
// are {kind, table, id} only; NOTIFY rejects anything of 8000 bytes or more.
const ChangeChannel = "localfix_changes"

// EnsureSchema brings a fresh or drifted database to the shape the handlers
// use. Every step is idempotent and failures are logged, never fatal.
func EnsureSchema(ctx context.Context, conn *pgxpool.Pool, log *zap.Logger) {
	s := &schema{conn: conn, log: log}

	s.ensureTable(ctx, "profiles", `
		CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			role TEXT NOT NULL DEFAULT 'client',
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NULL,
			phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	s.ensureColumn(ctx, "profiles", "phone_verified", `BOOLEAN NOT NULL DEFAULT FALSE`)

	s.ensureTable(ctx, "jobs", `
		CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			poster_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			required_skills TEXT[] NULL,
			budget NUMERIC NOT NULL DEFAULT 0 CHECK (budget >= 0),
			budget_type TEXT NOT NULL DEFAULT 'fixed',
			location TEXT NOT NULL DEFAULT '',
			duration TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)

	s.ensureTable(ctx, "job_applications", `
		CREATE TABLE IF NOT EXISTS job_applications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			provider_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			proposed_rate NUMERIC NOT NULL CHECK (proposed_rate > 0),
			status TEXT NOT NULL DEFAULT 'pending',
			client_contact_revealed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (NOT client_contact_revealed OR status = 'accepted')
		)`)
	s.ensureColumn(ctx, "job_applications", "client_contact_revealed", `BOOLEAN NOT NULL DEFAULT FALSE`)

	s.ensureTable(ctx, "services", `
		CREATE TABLE IF NOT EXISTS services (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			provider_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC NOT NULL DEFAULT 0 CHECK (price >= 0),
			duration TEXT NOT NULL DEFAULT '',
			location TEXT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)

	s.ensureTable(ctx, "bookings", `
		CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
			client_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			booking_date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)

	s.ensureTable(ctx, "reviews", `
		CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			reviewer_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			reviewee_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			job_id UUID NULL REFERENCES jobs(id) ON DELETE CASCADE,
			booking_id UUID NULL REFERENCES bookings(id) ON DELETE CASCADE,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((job_id IS NULL) <> (booking_id IS NULL)),
			CHECK (reviewer_id <> reviewee_id)
		)`)

	s.ensureTable(ctx, "notifications", `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			reference UUID NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			read_at TIMESTAMPTZ NULL
		)`)

	s.exec(ctx, "indexes", `
		CREATE UNIQUE INDEX IF NOT EXISTS uq_job_applications_job_provider ON job_applications(job_id, provider_id);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_job_applications_one_accepted ON job_applications(job_id) WHERE status = 'accepted';
		CREATE UNIQUE INDEX IF NOT EXISTS uq_reviews_job ON reviews(reviewer_id, reviewee_id, job_id) WHERE job_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS uq_reviews_booking ON reviews(reviewer_id, reviewee_id, booking_id) WHERE booking_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_bookings_service ON bookings(service_id, booking_date DESC);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
	`)

	// Enumerations are kept in sync with the job writer's sanitizer and the lifecycle machines.
	s.replaceCheck(ctx, "jobs", "jobs_budget_type_check", `budget_type IN ('fixed', 'hourly')`)
	s.replaceCheck(ctx, "jobs", "jobs_status_check", `status IN ('open', 'in-progress', 'completed', 'closed')`)
	s.replaceCheck(ctx, "job_applications", "job_applications_status_check", `status IN ('pending', 'accepted', 'rejected', 'withdrawn')`)
	s.replaceCheck(ctx, "services", "services_status_check", `status IN ('pending', 'open', 'closed', 'approved')`)
	s.replaceCheck(ctx, "bookings", "bookings_status_check", `status IN ('pending', 'approved', 'completed', 'cancelled', 'rejected')`)
	s.replaceCheck(ctx, "profiles", "profiles_role_check", `role IN ('client', 'worker', 'admin')`)

	s.ensureChangeTriggers(ctx, "jobs", "job_applications", "services", "bookings")
}

type schema struct {
	conn *pgxpool.Pool
	log  *zap.Logger
}

func (s *schema) tableExists(ctx context.Context, table string) bool {
	var exists bool
	err := s.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, table).Scan(&exists)
	if err != nil {
		s.log.Warn("schema check failed", zap.String("table", table), zap.Error(err))
		return true
	}
	return exists
}

func (s *schema) ensureTable(ctx context.Context, table, ddl string) {
	if s.tableExists(ctx, table) {
		return
	}
	if _, err := s.conn.Exec(ctx, ddl); err != nil {
		s.log.Error("failed to create table", zap.String("table", table), zap.Error(err))
		return
	}
	s.log.Info("table ensured", zap.String("table", table))
}

func (s *schema) ensureColumn(ctx context.Context, table, column, definition string) {
	var exists bool
	_ = s.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)`, table, column).Scan(&exists)
	if exists {
		return
	}
	if _, err := s.conn.Exec(ctx, `ALTER TABLE `+table+` ADD COLUMN IF NOT EXISTS `+column+` `+definition); err != nil {
		s.log.Error("failed to add column", zap.String("table", table), zap.String("column", column), zap.Error(err))
	}
}

// replaceCheck drops and re-adds a named CHECK constraint.
func (s *schema) replaceCheck(ctx context.Context, table, name, predicate string) {
	_, _ = s.conn.Exec(ctx, `ALTER TABLE `+table+` DROP CONSTRAINT IF EXISTS `+name)
	if _, err := s.conn.Exec(ctx, `ALTER TABLE `+table+` ADD CONSTRAINT `+name+` CHECK (`+predicate+`)`); err != nil {
		s.log.Warn("failed to update check constraint", zap.String("constraint", name), zap.Error(err))
	}
}

func (s *schema) exec(ctx context.Context, what, sql string) {
	if _, err := s.conn.Exec(ctx, sql); err != nil {
		s.log.Warn("schema step failed", zap.String("step", what), zap.Error(err))
	}
}

func (s *schema) ensureChangeTriggers(ctx context.Context, tables ...string) {
	s.exec(ctx, "change function", `
		CREATE OR REPLACE FUNCTION localfix_notify_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('`+ChangeChannel+`', json_build_object(
				'kind', lower(TG_OP),
				'table', TG_TABLE_NAME,
				'id', CASE WHEN TG_OP = 'DELETE' THEN OLD.id ELSE NEW.id END
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`)

	for _, table := range tables {
		s.exec(ctx, "change trigger "+table, `
			DROP TRIGGER IF EXISTS localfix_change ON `+table+`;
			CREATE TRIGGER localfix_change AFTER INSERT OR UPDATE OR DELETE ON `+table+`
			FOR EACH ROW EXECUTE FUNCTION localfix_notify_change()`)
	}
}
