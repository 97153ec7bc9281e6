package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/onboard/internal/onboarding"
)

var errFault = errors.New("fault")

func TestStore_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateIdentity(ctx, "a@x.com", "pw"); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if _, err := s.CreateIdentity(ctx, "A@X.com", "pw"); !errors.Is(err, onboarding.ErrDuplicateEmail) {
		t.Errorf("got %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_InjectFault(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.InjectFault(OpCreateIdentity, func(email string) error {
		if email == "bad@x.com" {
			return errFault
		}
		return nil
	})

	if _, err := s.CreateIdentity(ctx, "bad@x.com", "pw"); !errors.Is(err, errFault) {
		t.Errorf("got %v, want injected fault", err)
	}
	if _, err := s.CreateIdentity(ctx, "good@x.com", "pw"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	s.InjectFault(OpCreateIdentity, nil)
	if _, err := s.CreateIdentity(ctx, "bad@x.com", "pw"); err != nil {
		t.Errorf("fault not removed: %v", err)
	}
}

func TestStore_JobsAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := &onboarding.Job{ID: uuid.New(), Status: onboarding.JobProcessing, ErrorLog: []onboarding.JobError{}}

	if err := s.InsertJob(ctx, job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	job.ErrorLog = append(job.ErrorLog, onboarding.JobError{Reason: "x"})

	got, _ := s.GetJob(ctx, job.ID)
	if len(got.ErrorLog) != 0 {
		t.Errorf("stored job aliased the caller's slice: %+v", got.ErrorLog)
	}
}

func TestStore_ListJobsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	uni := uuid.New()
	base := time.Now()

	for i := 0; i < 3; i++ {
		_ = s.InsertJob(ctx, &onboarding.Job{
			ID:           uuid.New(),
			UniversityID: uni,
			FileName:     string(rune('a' + i)),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	_ = s.InsertJob(ctx, &onboarding.Job{ID: uuid.New(), UniversityID: uuid.New()})

	jobs, err := s.ListJobs(ctx, uni, 2)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].FileName != "c" || jobs[1].FileName != "b" {
		t.Errorf("got %+v, want c then b", jobs)
	}
}

// The full pipeline against the memory store: the failing row leaves nothing
// behind and the job ends completed.
func TestStore_ImportRollsBackFailedRows(t *testing.T) {
	s := New()
	s.InjectFault(OpCreateStudent, func(email string) error {
		if email == "bad@x.com" {
			return errFault
		}
		return nil
	})
	svc := onboarding.NewService(onboarding.Stores{Identities: s, Profiles: s, Students: s, Jobs: s}, onboarding.Options{})
	uni := uuid.New()

	text := "name,email,student_id,batch,degree_program,semester\n" +
		"Good,good@x.com,S1,2024,CS,Fall\n" +
		"Bad,bad@x.com,S2,2024,CS,Fall\n"

	res, err := svc.Import(context.Background(), onboarding.ImportRequest{CSVText: text, UniversityID: uni})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 1/1", res.Succeeded, res.Failed)
	}
	if i, p, st := s.Counts(); i != 1 || p != 1 || st != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", i, p, st)
	}
	if !s.Linked(res.Successful[0].Student.ID, uni) {
		t.Error("successful student not linked to university")
	}

	job, _ := s.GetJob(context.Background(), res.JobID)
	if job.Status != onboarding.JobCompleted {
		t.Errorf("Status = %s, want completed", job.Status)
	}
}
