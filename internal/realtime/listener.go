package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/model"
)

const (
	listenRetry  = 2 * time.Second
	standbyRetry = 5 * time.Second

	// listenerLockKey is the advisory lock held by the one instance that
	// listens when changes are fanned out through Redis.
	listenerLockKey int64 = 0x6c6f63616c666978
)

var errStandby = errors.New("another instance holds the change listener lock")

// RowStore re-reads the rows named by change notifications.
type RowStore interface {
	GetJob(ctx context.Context, id string) (model.Job, error)
	GetApplication(ctx context.Context, id string) (model.JobApplication, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
}

// Hydrate loads the current row for an id-only change. A row that is gone by
// the time it is read becomes a delete.
func Hydrate(ctx context.Context, rows RowStore, c Change) (Change, error) {
	if c.Kind == Delete || c.RowID == "" {
		return c, nil
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var (
		row any
		err error
	)
	switch c.Table {
	case "jobs":
		row, err = rows.GetJob(ctx, c.RowID)
	case "job_applications":
		row, err = rows.GetApplication(ctx, c.RowID)
	case "services":
		row, err = rows.GetService(ctx, c.RowID)
	case "bookings":
		row, err = rows.GetBooking(ctx, c.RowID)
	default:
		return c, fmt.Errorf("no loader for table %s", c.Table)
	}
	if apperr.IsNotFound(err) {
		c.Kind = Delete
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if c.Row, err = json.Marshal(row); err != nil {
		return c, fmt.Errorf("encode %s row: %w", c.Table, err)
	}
	return c, nil
}

// notifySession is the part of a pooled connection the listener drives.
type notifySession interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

type pooledSession struct {
	conn *pgxpool.Conn
}

func (s pooledSession) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

func (s pooledSession) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}

func (s pooledSession) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return s.conn.Conn().WaitForNotification(ctx)
}

// Listener holds one pooled connection on LISTEN localfix_changes, re-reads
// each changed row and forwards the change to out.
type Listener struct {
	pool      *pgxpool.Pool
	rows      RowStore
	out       Publisher
	log       *zap.Logger
	exclusive bool
}

func NewListener(pool *pgxpool.Pool, rows RowStore, out Publisher, log *zap.Logger) *Listener {
	return &Listener{pool: pool, rows: rows, out: out, log: log}
}

// Exclusive makes the listener take a cluster-wide advisory lock first, so
// only one instance publishes changes to a shared fan-out channel. The others
// stand by and take over when the holder's connection goes away.
func (l *Listener) Exclusive() *Listener {
	l.exclusive = true
	return l
}

// Run reconnects until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		wait := listenRetry
		if errors.Is(err, errStandby) {
			l.log.Debug("change listener on standby")
			wait = standbyRetry
		} else {
			l.log.Warn("change listener interrupted", zap.Error(err), zap.Duration("retry_in", wait))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer func() {
		// Never hand a LISTENing or lock-holding connection back to the pool.
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock_all()")
		conn.Release()
	}()
	return l.serve(ctx, pooledSession{conn: conn})
}

func (l *Listener) serve(ctx context.Context, s notifySession) error {
	if l.exclusive {
		var held bool
		if err := s.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", listenerLockKey).Scan(&held); err != nil {
			return fmt.Errorf("listener lock: %w", err)
		}
		if !held {
			return errStandby
		}
	}

	if _, err := s.Exec(ctx, "LISTEN "+db.ChangeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info("listening for changes", zap.String("channel", db.ChangeChannel), zap.Bool("exclusive", l.exclusive))

	for {
		n, err := s.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c, err := ParseChange([]byte(n.Payload))
		if err != nil {
			l.log.Warn("bad change notification", zap.Error(err))
			continue
		}
		if c, err = Hydrate(ctx, l.rows, c); err != nil {
			l.log.Warn("changed row not loaded", zap.String("table", c.Table), zap.String("id", c.RowID), zap.Error(err))
			continue
		}
		if err := l.out.Publish(ctx, c); err != nil {
			l.log.Warn("change not published", zap.String("table", c.Table), zap.Error(err))
		}
	}
}
