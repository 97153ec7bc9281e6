package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxStoredFailures = 1000
	DefaultJobListLimit      = 20
)

// Tracker owns the upload job lifecycle. A job is created processing, updated
// once parsing is done and finalized once the batch completes. A fatal parse
// error finalizes it as failed instead.
type Tracker struct {
	store             JobStore
	maxStoredFailures int
	now               func() time.Time
}

// NewTracker returns a Tracker keeping at most maxStoredFailures error log
// entries per job. Counts are always exact.
func NewTracker(store JobStore, maxStoredFailures int) *Tracker {
	if maxStoredFailures <= 0 {
		maxStoredFailures = DefaultMaxStoredFailures
	}
	return &Tracker{
		store:             store,
		maxStoredFailures: maxStoredFailures,
		now:               time.Now,
	}
}

// Create inserts a new processing job.
func (t *Tracker) Create(ctx context.Context, universityID uuid.UUID, fileName, filePath string) (*Job, error) {
	job := &Job{
		ID:           uuid.New(),
		UniversityID: universityID,
		FileName:     fileName,
		FilePath:     filePath,
		Status:       JobProcessing,
		ErrorLog:     []JobError{},
		CreatedAt:    t.now().UTC(),
	}
	if err := t.store.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Resume loads an existing job created by the caller. Only processing jobs
// can be resumed.
func (t *Tracker) Resume(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrJobFinalized)
	}
	return job, nil
}

// RecordParsed stores the tokenizer outcome. With a nil parseErr the job gets
// its row counts and stays processing; otherwise it is finalized as failed.
func (t *Tracker) RecordParsed(ctx context.Context, job *Job, parsed *ParseResult, parseErr error) error {
	next := *job

	var (
		header      []string
		diagnostics []RowDiagnostic
	)
	if parsed != nil {
		header, diagnostics = parsed.Header, parsed.Diagnostics
	}

	if parseErr != nil {
		now := t.now().UTC()
		next.Status = JobFailed
		next.TotalRecords = 0
		next.SkippedRecords = len(diagnostics)
		next.ErrorLog = t.capped(append([]JobError{{Reason: parseErr.Error(), Stage: StageParse}}, diagnosticEntries(header, diagnostics)...))
		next.CompletedAt = &now
	} else {
		next.TotalRecords = len(parsed.Rows)
		next.SkippedRecords = len(diagnostics)
		next.ErrorLog = t.capped(diagnosticEntries(header, diagnostics))
	}

	if err := t.store.UpdateJob(ctx, &next); err != nil {
		return fmt.Errorf("record parse of job %s: %w", job.ID, err)
	}
	*job = next
	return nil
}

// Complete finalizes the job with the batch outcome.
func (t *Tracker) Complete(ctx context.Context, job *Job, result BatchResult) error {
	now := t.now().UTC()
	next := *job
	next.Status = JobCompleted
	next.SuccessfulRecords = len(result.Successful)
	next.FailedRecords = len(result.Failed)
	next.CompletedAt = &now

	log := append([]JobError{}, job.ErrorLog...)
	for _, f := range result.Failed {
		log = append(log, failedEntry(f))
	}
	next.ErrorLog = t.capped(log)

	if err := t.store.UpdateJob(ctx, &next); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	*job = next
	return nil
}

// Get returns a job by ID.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return t.store.GetJob(ctx, id)
}

// List returns a university's most recent jobs, newest first.
func (t *Tracker) List(ctx context.Context, universityID uuid.UUID, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultJobListLimit
	}
	return t.store.ListJobs(ctx, universityID, limit)
}

func (t *Tracker) capped(log []JobError) []JobError {
	if log == nil {
		return []JobError{}
	}
	if len(log) > t.maxStoredFailures {
		return log[:t.maxStoredFailures]
	}
	return log
}

// diagnosticEntries keys each skipped line's cells by header position; cells
// past the header are kept as col_N.
func diagnosticEntries(header []string, diags []RowDiagnostic) []JobError {
	out := make([]JobError, 0, len(diags))
	for _, d := range diags {
		entry := JobError{Row: d.Row, Reason: d.Reason, Stage: StageParse}
		if len(d.Values) > 0 {
			entry.Data = make(map[string]string, len(d.Values))
			for i, v := range d.Values {
				key := fmt.Sprintf("col_%d", i+1)
				if i < len(header) {
					key = header[i]
				}
				entry.Data[key] = v
			}
		}
		out = append(out, entry)
	}
	return out
}

func failedEntry(f FailedRow) JobError {
	stage := StageProvision
	if errors.Is(f.Err, ErrValidation) {
		stage = StageValidate
	}
	return JobError{Row: f.Row.Line, Data: f.Row.Fields(), Reason: f.Reason, Stage: stage}
}
