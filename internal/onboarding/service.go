package onboarding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/onboard/internal/logging"
)

// Stores groups the persistence ports the service needs.
type Stores struct {
	Identities IdentityStore
	Profiles   ProfileStore
	Students   StudentStore
	Jobs       JobStore
}

// Options tunes the service. Zero values select the package defaults.
type Options struct {
	MaxConcurrentImports int
	MaxWaitTime          time.Duration
	RowWorkers           int
	RowTimeout           time.Duration
	CredentialLength     int
	MaxStoredFailures    int
}

// Service is the entry point of the onboarding pipeline.
type Service struct {
	tracker      *Tracker
	orchestrator *Orchestrator
	limiter      *ImportLimiter
}

// NewService wires the pipeline to its stores.
func NewService(stores Stores, opts Options) *Service {
	provisioner := NewProvisioner(stores.Identities, stores.Profiles, stores.Students, opts.CredentialLength)
	return &Service{
		tracker:      NewTracker(stores.Jobs, opts.MaxStoredFailures),
		orchestrator: NewOrchestrator(provisioner, stores.Students, opts.RowWorkers, opts.RowTimeout),
		limiter:      NewImportLimiter(opts.MaxConcurrentImports, opts.MaxWaitTime),
	}
}

// ImportRequest is one bulk upload.
type ImportRequest struct {
	CSVText      string
	UniversityID uuid.UUID
	JobID        uuid.UUID // existing processing job; uuid.Nil creates one
	FileName     string
	FilePath     string
}

// RowFailure is a failed row as reported to the caller.
type RowFailure struct {
	Row    int               `json:"row"`
	Data   map[string]string `json:"data"`
	Reason string            `json:"reason"`
	Code   string            `json:"code"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	JobID       uuid.UUID       `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Total       int             `json:"total"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	Successful  []Provisioned   `json:"successful"`
	FailedRows  []RowFailure    `json:"failed_rows"`
	Diagnostics []RowDiagnostic `json:"diagnostics,omitempty"`
	Duration    time.Duration   `json:"duration_ns"`
}

// Summary renders the operator-facing one-liner.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed out of %d", r.Succeeded, r.Failed, r.Total)
}

// Import parses, validates and provisions every row of req.CSVText.
//
// Only a malformed or schema-invalid CSV fails the call. In that case the
// job is already finalized as failed and the returned result still carries
// its ID. Once the batch starts it runs to completion even if ctx is
// cancelled, so the job never stays processing.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := time.Now()

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = context.WithoutCancel(ctx)

	job, err := s.openJob(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, log := logging.WithFields(ctx, "job_id", job.ID, "university_id", req.UniversityID)
	log.Info("import started", "file", job.FileName)

	parsed, parseErr := Parse(req.CSVText)
	if err := s.tracker.RecordParsed(ctx, job, parsed, parseErr); err != nil {
		return nil, err
	}
	if parseErr != nil {
		log.Warn("import rejected", "error", parseErr)
		return &ImportResult{
			JobID:    job.ID,
			Status:   job.Status,
			Skipped:  job.SkippedRecords,
			Duration: time.Since(start),
		}, parseErr
	}

	batch := s.orchestrator.Run(ctx, parsed.Rows, req.UniversityID)
	if err := s.tracker.Complete(ctx, job, batch); err != nil {
		return nil, err
	}

	res := &ImportResult{
		JobID:       job.ID,
		Status:      job.Status,
		Total:       batch.Total,
		Succeeded:   len(batch.Successful),
		Failed:      len(batch.Failed),
		Skipped:     len(parsed.Diagnostics),
		Successful:  batch.Successful,
		FailedRows:  failuresOf(batch.Failed),
		Diagnostics: parsed.Diagnostics,
		Duration:    time.Since(start),
	}

	log.Info("import completed",
		"total", res.Total,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", res.Duration,
	)
	return res, nil
}

func (s *Service) openJob(ctx context.Context, req ImportRequest) (*Job, error) {
	if req.JobID != uuid.Nil {
		job, err := s.tracker.Resume(ctx, req.JobID)
		if err != nil {
			return nil, err
		}
		if job.UniversityID != req.UniversityID {
			return nil, fmt.Errorf("job %s belongs to another university: %w", job.ID, ErrJobNotFound)
		}
		return job, nil
	}
	return s.tracker.Create(ctx, req.UniversityID, req.FileName, req.FilePath)
}

// Job returns one upload job.
func (s *Service) Job(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.tracker.Get(ctx, id)
}

// Jobs returns a university's upload history, newest first.
func (s *Service) Jobs(ctx context.Context, universityID uuid.UUID, limit int) ([]Job, error) {
	return s.tracker.List(ctx, universityID, limit)
}

// CreateJob registers a processing job ahead of the upload, for callers that
// store the file before importing it.
func (s *Service) CreateJob(ctx context.Context, universityID uuid.UUID, fileName, filePath string) (*Job, error) {
	return s.tracker.Create(ctx, universityID, fileName, filePath)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForDrain blocks until running imports finish or ctx ends.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func failuresOf(rows []FailedRow) []RowFailure {
	out := make([]RowFailure, 0, len(rows))
	for _, f := range rows {
		out = append(out, RowFailure{
			Row:    f.Row.Line,
			Data:   f.Row.Fields(),
			Reason: f.Reason,
			Code:   MapError(f.Err).Code,
		})
	}
	return out
}
