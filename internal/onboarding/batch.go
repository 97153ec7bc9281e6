package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/onboard/internal/logging"
)

const (
	DefaultRowWorkers = 4
	DefaultRowTimeout = 30 * time.Second

	reasonEmailExists = "email already exists"
	reasonRowTimeout  = "provisioning timed out"
)

// Orchestrator runs validation, the duplicate-email guard and provisioning
// over every row of a batch. A batch never aborts: each row ends up in
// exactly one of BatchResult.Successful or BatchResult.Failed.
type Orchestrator struct {
	provisioner *Provisioner
	students    StudentStore
	workers     int
	rowTimeout  time.Duration
}

// NewOrchestrator returns an Orchestrator provisioning up to workers rows at
// once, each bounded by rowTimeout. Zero values select the defaults.
func NewOrchestrator(p *Provisioner, students StudentStore, workers int, rowTimeout time.Duration) *Orchestrator {
	if workers <= 0 {
		workers = DefaultRowWorkers
	}
	if rowTimeout <= 0 {
		rowTimeout = DefaultRowTimeout
	}
	return &Orchestrator{
		provisioner: p,
		students:    students,
		workers:     workers,
		rowTimeout:  rowTimeout,
	}
}

// rowOutcome is the result slot of one row. Exactly one field is set.
type rowOutcome struct {
	ok     *Provisioned
	failed *FailedRow
}

func succeeded(row Row, p Provisioned) rowOutcome {
	p.Row = row.Line
	return rowOutcome{ok: &p}
}

func failed(row Row, reason string, err error) rowOutcome {
	return rowOutcome{failed: &FailedRow{Row: row, Reason: reason, Err: err}}
}

// batchAccumulator collects outcomes in input order.
type batchAccumulator struct {
	successful []Provisioned
	failed     []FailedRow
}

func (a batchAccumulator) add(o rowOutcome) batchAccumulator {
	switch {
	case o.ok != nil:
		a.successful = append(a.successful, *o.ok)
	case o.failed != nil:
		a.failed = append(a.failed, *o.failed)
	}
	return a
}

func (a batchAccumulator) result(total int) BatchResult {
	return BatchResult{Successful: a.successful, Failed: a.failed, Total: total}
}

// Run processes rows and returns the partitioned result.
func (o *Orchestrator) Run(ctx context.Context, rows []Row, universityID uuid.UUID) BatchResult {
	outcomes := make([]rowOutcome, len(rows))
	inputs := make([]StudentInput, len(rows))
	pending := make([]int, 0, len(rows))

	// Validation and the in-batch duplicate check are sequential so the first
	// occurrence of an email always wins.
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		res := ValidateRow(row)
		if !res.Valid {
			outcomes[i] = failed(row, res.Reason(), fmt.Errorf("%w: %s", ErrValidation, res.Reason()))
			continue
		}
		in := res.Input()
		key := strings.ToLower(in.Email)
		if _, dup := seen[key]; dup {
			outcomes[i] = failed(row, reasonEmailExists, ErrDuplicateRecord)
			continue
		}
		seen[key] = struct{}{}
		inputs[i] = in
		pending = append(pending, i)
	}

	// Plain Group rather than WithContext: one row failing never cancels the others.
	var g errgroup.Group
	g.SetLimit(o.workers)
	for _, i := range pending {
		g.Go(func() error {
			outcomes[i] = o.runRow(ctx, rows[i], inputs[i], universityID)
			return nil
		})
	}
	_ = g.Wait()

	var acc batchAccumulator
	for _, out := range outcomes {
		acc = acc.add(out)
	}
	return acc.result(len(rows))
}

func (o *Orchestrator) runRow(ctx context.Context, row Row, in StudentInput, universityID uuid.UUID) (out rowOutcome) {
	ctx, log := logging.WithFields(ctx, "row", row.Line)

	defer func() {
		if r := recover(); r != nil {
			log.Error("row provisioning panicked", "panic", r)
			out = failed(row, ErrRowPanic.Error(), fmt.Errorf("%w: %v", ErrRowPanic, r))
		}
	}()

	rowCtx, cancel := context.WithTimeout(ctx, o.rowTimeout)
	defer cancel()

	existing, err := o.students.FindByEmail(rowCtx, in.Email)
	if err != nil {
		return o.rowFailed(rowCtx, log, row, fmt.Errorf("look up %s: %w", in.Email, err))
	}
	if existing != nil {
		return failed(row, reasonEmailExists, ErrDuplicateRecord)
	}

	p, err := o.provisioner.Provision(rowCtx, in, universityID)
	if err != nil {
		return o.rowFailed(rowCtx, log, row, err)
	}
	return succeeded(row, p)
}

func (o *Orchestrator) rowFailed(rowCtx context.Context, log *slog.Logger, row Row, err error) rowOutcome {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return failed(row, reasonEmailExists, fmt.Errorf("%w: %w", ErrDuplicateRecord, err))
	case errors.Is(rowCtx.Err(), context.DeadlineExceeded):
		log.Debug("row timed out", "error", err)
		return failed(row, reasonRowTimeout, fmt.Errorf("%w: %w", ErrRowTimeout, err))
	case errors.Is(err, ErrRowPanic):
		return failed(row, ErrRowPanic.Error(), err)
	default:
		log.Debug("row failed", "error", err)
		return failed(row, err.Error(), err)
	}
}
