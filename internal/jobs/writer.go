// Package jobs implements job posting, applications and the contact reveal,
// including the write path that tolerates a drifting jobs table.
package jobs

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/model"
)

// MaxInsertCalls bounds the store calls a single Insert may make.
const MaxInsertCalls = 4

const budgetTypeConstraint = "jobs_budget_type_check"

// JobInserter is the one store call the writer retries.
type JobInserter interface {
	InsertJob(ctx context.Context, payload map[string]any) (model.Job, error)
}

// rewrite is one rung of the ladder. Rungs sharing a slot consume each
// other, so the owner-column renames can never undo one another.
type rewrite struct {
	name   string
	slot   string
	detect func(se *db.StoreError, payload map[string]any) bool
	apply  func(payload map[string]any)
}

var ladder = []rewrite{
	{name: "drop required_skills", slot: "required_skills", detect: unknownColumn("required_skills"), apply: drop("required_skills")},
	{name: "rename poster_id to client_id", slot: "owner", detect: unknownColumn("poster_id"), apply: rename("poster_id", "client_id")},
	{name: "rename client_id to poster_id", slot: "owner", detect: unknownColumn("client_id"), apply: rename("client_id", "poster_id")},
	{name: "drop budget_type", slot: "budget_type", detect: budgetTypeRejected, apply: drop("budget_type")},
}

func unknownColumn(col string) func(*db.StoreError, map[string]any) bool {
	return func(se *db.StoreError, payload map[string]any) bool {
		if se.Code != db.CodeUndefinedColumn && se.Code != db.CodeSchemaCacheColumn {
			return false
		}
		if _, ok := payload[col]; !ok {
			return false
		}
		if se.Column != "" {
			return se.Column == col
		}
		return strings.Contains(se.Message, col)
	}
}

func budgetTypeRejected(se *db.StoreError, payload map[string]any) bool {
	if se.Code != db.CodeCheckViolation {
		return false
	}
	if _, ok := payload["budget_type"]; !ok {
		return false
	}
	return se.Constraint == budgetTypeConstraint || strings.Contains(se.Message, budgetTypeConstraint)
}

func drop(key string) func(map[string]any) {
	return func(p map[string]any) { delete(p, key) }
}

func rename(from, to string) func(map[string]any) {
	return func(p map[string]any) {
		if v, ok := p[from]; ok {
			p[to] = v
			delete(p, from)
		}
	}
}

// Sanitize coerces budget_type into {fixed, hourly} and clamps budget at zero.
func Sanitize(p map[string]any) {
	if v, ok := p["budget_type"]; ok {
		if s, _ := v.(string); s != model.BudgetFixed && s != model.BudgetHourly {
			p["budget_type"] = model.BudgetFixed
		}
	}
	if v, ok := p["budget"]; ok {
		p["budget"] = math.Max(0, toNumber(v))
	}
}

func toNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// InsertResult reports what the ladder did to get a row in.
type InsertResult struct {
	Job     model.Job
	Applied []string
	Calls   int
}

// Writer inserts jobs through the retry ladder.
type Writer struct {
	store JobInserter
	log   *zap.Logger
}

func NewWriter(store JobInserter, log *zap.Logger) *Writer {
	return &Writer{store: store, log: log}
}

// Insert writes payload, rewriting it after each store rejection the ladder
// recognises. The caller's map is not modified.
func (w *Writer) Insert(ctx context.Context, payload map[string]any) (InsertResult, error) {
	p := make(map[string]any, len(payload))
	for k, v := range payload {
		p[k] = v
	}

	used := map[string]bool{}
	var res InsertResult
	for res.Calls < MaxInsertCalls {
		res.Calls++
		job, err := w.store.InsertJob(ctx, p)
		if err == nil {
			res.Job = job
			if len(res.Applied) > 0 {
				w.log.Info("job inserted after rewrites", zap.Strings("rewrites", res.Applied), zap.Int("calls", res.Calls))
			}
			return res, nil
		}

		se, ok := db.AsStoreError(err)
		if !ok {
			return res, classify(err)
		}
		r := next(se, p, used)
		if r == nil {
			return res, rejection(se, res.Applied)
		}

		w.log.Warn("job insert rejected, rewriting payload",
			zap.String("code", se.Code), zap.String("rewrite", r.name), zap.Int("call", res.Calls))
		used[r.slot] = true
		r.apply(p)
		Sanitize(p)
		res.Applied = append(res.Applied, r.name)
	}
	return res, apperr.SchemaDrift(nil, "job insert still rejected after %d attempts", res.Calls).
		WithDetails(map[string]any{"rewrites": res.Applied})
}

func next(se *db.StoreError, p map[string]any, used map[string]bool) *rewrite {
	for i := range ladder {
		r := &ladder[i]
		if used[r.slot] {
			continue
		}
		if r.detect(se, p) {
			return r
		}
	}
	return nil
}

func classify(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Transport(err, "job insert failed")
}

// rejection maps a store error the ladder cannot repair.
func rejection(se *db.StoreError, applied []string) error {
	switch se.Code {
	case db.CodeUndefinedColumn, db.CodeSchemaCacheColumn, db.CodeCheckViolation:
		return apperr.SchemaDrift(se, "jobs table rejected the write").
			WithDetails(map[string]any{"code": se.Code, "message": se.Message, "rewrites": applied})
	case db.CodeUniqueViolation:
		return apperr.Conflict("job already exists")
	case db.CodeForeignKey:
		return apperr.Validation("job references an unknown profile")
	}
	return apperr.Transport(se, "job insert failed")
}
