package onboarding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestTracker_Lifecycle(t *testing.T) {
	f := newFakeStores()
	tr := NewTracker(f, 0)
	ctx := context.Background()
	uni := uuid.New()

	job, err := tr.Create(ctx, uni, "students.csv", "uploads/students.csv")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.Status != JobProcessing {
		t.Errorf("Status = %s, want processing", job.Status)
	}

	parsed := &ParseResult{
		Rows:        []Row{testRow(1, "A", "a@x.com", "S1"), testRow(3, "", "b@x.com", "S2")},
		Diagnostics: []RowDiagnostic{{Row: 2, Reason: "column count mismatch", Values: []string{"x"}}},
	}
	if err := tr.RecordParsed(ctx, job, parsed, nil); err != nil {
		t.Fatalf("RecordParsed failed: %v", err)
	}
	if job.TotalRecords != 2 || job.SkippedRecords != 1 {
		t.Errorf("total/skipped = %d/%d, want 2/1", job.TotalRecords, job.SkippedRecords)
	}

	result := BatchResult{
		Successful: []Provisioned{{Row: 1}},
		Failed: []FailedRow{{
			Row:    parsed.Rows[1],
			Reason: "name is required",
			Err:    fmt.Errorf("%w: name is required", ErrValidation),
		}},
		Total: 2,
	}
	if err := tr.Complete(ctx, job, result); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	stored, err := tr.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != JobCompleted || stored.CompletedAt == nil {
		t.Errorf("stored = %+v, want completed with timestamp", stored)
	}
	if stored.SuccessfulRecords != 1 || stored.FailedRecords != 1 {
		t.Errorf("successful/failed = %d/%d, want 1/1", stored.SuccessfulRecords, stored.FailedRecords)
	}
	if len(stored.ErrorLog) != 2 {
		t.Fatalf("error log has %d entries, want 2", len(stored.ErrorLog))
	}
	if stored.ErrorLog[0].Stage != StageParse || stored.ErrorLog[1].Stage != StageValidate {
		t.Errorf("stages = %s,%s, want parse,validate", stored.ErrorLog[0].Stage, stored.ErrorLog[1].Stage)
	}
	if stored.ErrorLog[1].Data["email"] != "b@x.com" {
		t.Errorf("error log data = %v, want the row fields", stored.ErrorLog[1].Data)
	}
}

func TestTracker_ParseFailure(t *testing.T) {
	f := newFakeStores()
	tr := NewTracker(f, 0)
	ctx := context.Background()

	job, err := tr.Create(ctx, uuid.New(), "bad.csv", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	parseErr := &SchemaError{Missing: []string{"email"}}
	if err := tr.RecordParsed(ctx, job, nil, parseErr); err != nil {
		t.Fatalf("RecordParsed failed: %v", err)
	}
	if job.Status != JobFailed || job.CompletedAt == nil {
		t.Errorf("job = %+v, want failed with timestamp", job)
	}
	if job.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", job.TotalRecords)
	}
	if len(job.ErrorLog) != 1 || job.ErrorLog[0].Reason != parseErr.Error() {
		t.Errorf("ErrorLog = %+v, want the parse error", job.ErrorLog)
	}
}

func TestTracker_TerminalJobIsImmutable(t *testing.T) {
	f := newFakeStores()
	tr := NewTracker(f, 0)
	ctx := context.Background()

	job, _ := tr.Create(ctx, uuid.New(), "s.csv", "")
	if err := tr.RecordParsed(ctx, job, &ParseResult{Rows: []Row{testRow(1, "A", "a@x.com", "S1")}}, nil); err != nil {
		t.Fatalf("RecordParsed failed: %v", err)
	}
	if err := tr.Complete(ctx, job, BatchResult{Successful: []Provisioned{{Row: 1}}, Total: 1}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	err := tr.Complete(ctx, job, BatchResult{Total: 1})
	if !errors.Is(err, ErrJobFinalized) {
		t.Fatalf("second Complete = %v, want ErrJobFinalized", err)
	}
	if job.SuccessfulRecords != 1 {
		t.Errorf("handle changed after rejected update: %+v", job)
	}

	if _, err := tr.Resume(ctx, job.ID); !errors.Is(err, ErrJobFinalized) {
		t.Errorf("Resume = %v, want ErrJobFinalized", err)
	}
}

func TestTracker_ErrorLogCapped(t *testing.T) {
	f := newFakeStores()
	tr := NewTracker(f, 3)
	ctx := context.Background()

	job, _ := tr.Create(ctx, uuid.New(), "s.csv", "")
	_ = tr.RecordParsed(ctx, job, &ParseResult{Rows: make([]Row, 5)}, nil)

	var failedRows []FailedRow
	for i := 1; i <= 5; i++ {
		failedRows = append(failedRows, FailedRow{Row: Row{Line: i}, Reason: "x", Err: errInjected})
	}
	if err := tr.Complete(ctx, job, BatchResult{Failed: failedRows, Total: 5}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if job.FailedRecords != 5 {
		t.Errorf("FailedRecords = %d, want 5", job.FailedRecords)
	}
	if len(job.ErrorLog) != 3 {
		t.Errorf("error log has %d entries, want 3", len(job.ErrorLog))
	}
}

func TestTracker_ResumeUnknownJob(t *testing.T) {
	tr := NewTracker(newFakeStores(), 0)
	if _, err := tr.Resume(context.Background(), uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("got %v, want ErrJobNotFound", err)
	}
}
