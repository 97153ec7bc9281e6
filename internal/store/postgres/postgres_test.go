package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/onboard/internal/onboarding"
)

// testStore connects to TEST_DATABASE_URL and skips the test when unset.
func testStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, PoolConfig{URL: url, MaxConns: 4})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return New(pool, WithHashCost(bcrypt.MinCost)), pool
}

func uniqueEmail(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8] + "@test.edu"
}

func TestStore_IdentityLifecycle(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	email := uniqueEmail("id")

	id, err := s.CreateIdentity(ctx, email, "Secret1!")
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}

	ok, err := s.VerifyCredential(ctx, strings.ToUpper(email), "Secret1!")
	if err != nil || !ok {
		t.Errorf("VerifyCredential = %v, %v, want true", ok, err)
	}

	_, err = s.CreateIdentity(ctx, strings.ToUpper(email), "Other1!")
	if !errors.Is(err, onboarding.ErrDuplicateEmail) {
		t.Errorf("second CreateIdentity = %v, want ErrDuplicateEmail", err)
	}

	if err := s.DeleteIdentity(ctx, id); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	if ok, _ := s.VerifyCredential(ctx, email, "Secret1!"); ok {
		t.Error("identity still verifiable after delete")
	}
}

func TestStore_StudentRecord(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	uni := uuid.New()
	email := uniqueEmail("student")

	id, err := s.CreateIdentity(ctx, email, "Secret1!")
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := s.CreateProfile(ctx, id, onboarding.RoleStudent, uni); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if err := s.LinkUniversity(ctx, id, uni); err != nil {
		t.Fatalf("LinkUniversity failed: %v", err)
	}

	batch := 2024
	program := "CS"
	rec, err := s.CreateStudentRecord(ctx, onboarding.NewStudentRecord{
		ID:           id,
		UniversityID: uni,
		Input: onboarding.StudentInput{
			Name: "Alice", Email: email, StudentID: "S-" + uuid.NewString()[:8],
			Batch: &batch, DegreeProgram: &program,
		},
		TemporaryPassword: "Secret1!",
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateStudentRecord failed: %v", err)
	}
	if rec.Batch == nil || *rec.Batch != 2024 || rec.Semester != nil {
		t.Errorf("record = %+v, want batch 2024 and nil semester", rec)
	}

	found, err := s.FindByEmail(ctx, strings.ToUpper(email))
	if err != nil || found == nil || found.ID != id {
		t.Errorf("FindByEmail = %+v, %v, want the record", found, err)
	}

	missing, err := s.FindByEmail(ctx, uniqueEmail("nobody"))
	if err != nil || missing != nil {
		t.Errorf("FindByEmail(missing) = %+v, %v, want nil, nil", missing, err)
	}

	// Deleting the identity cascades to profile and student.
	if err := s.DeleteIdentity(ctx, id); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	if gone, _ := s.FindByEmail(ctx, email); gone != nil {
		t.Error("student record survived identity delete")
	}
}

func TestStore_JobLifecycle(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	tr := onboarding.NewTracker(s, 0)
	uni := uuid.New()

	job, err := tr.Create(ctx, uni, "s.csv", "uploads/s.csv")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	parsed := &onboarding.ParseResult{Rows: []onboarding.Row{{Line: 1, Name: "A"}}}
	if err := tr.RecordParsed(ctx, job, parsed, nil); err != nil {
		t.Fatalf("RecordParsed failed: %v", err)
	}
	failed := onboarding.BatchResult{
		Failed: []onboarding.FailedRow{{Row: parsed.Rows[0], Reason: "email is required"}},
		Total:  1,
	}
	if err := tr.Complete(ctx, job, failed); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != onboarding.JobCompleted || got.FailedRecords != 1 || got.CompletedAt == nil {
		t.Errorf("job = %+v, want completed with 1 failure", got)
	}
	if len(got.ErrorLog) != 1 || got.ErrorLog[0].Data["name"] != "A" {
		t.Errorf("ErrorLog = %+v, want one entry with row data", got.ErrorLog)
	}

	if err := s.UpdateJob(ctx, got); !errors.Is(err, onboarding.ErrJobFinalized) {
		t.Errorf("UpdateJob on finished job = %v, want ErrJobFinalized", err)
	}
	if _, err := s.GetJob(ctx, uuid.New()); !errors.Is(err, onboarding.ErrJobNotFound) {
		t.Errorf("GetJob(unknown) = %v, want ErrJobNotFound", err)
	}

	jobs, err := s.ListJobs(ctx, uni, 10)
	if err != nil || len(jobs) != 1 {
		t.Errorf("ListJobs = %d jobs, %v, want 1", len(jobs), err)
	}
}
