package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errInjected = errors.New("injected failure")

// fakeStores implements every store port in memory. The *Err hooks, when set,
// decide per call whether that operation fails.
type fakeStores struct {
	mu sync.Mutex

	identities map[uuid.UUID]string
	byEmail    map[string]uuid.UUID
	profiles   map[uuid.UUID]uuid.UUID
	links      map[uuid.UUID]uuid.UUID
	students   map[uuid.UUID]StudentRecord
	jobs       map[uuid.UUID]Job

	identityErr       func(email string) error
	profileErr        func(id uuid.UUID) error
	studentErr        func(rec NewStudentRecord) error
	linkErr           error
	linkPanics        bool
	deleteIdentityErr error
	identityDelay     time.Duration
	panicOn           string

	updates int
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		identities: make(map[uuid.UUID]string),
		byEmail:    make(map[string]uuid.UUID),
		profiles:   make(map[uuid.UUID]uuid.UUID),
		links:      make(map[uuid.UUID]uuid.UUID),
		students:   make(map[uuid.UUID]StudentRecord),
		jobs:       make(map[uuid.UUID]Job),
	}
}

func (f *fakeStores) CreateIdentity(ctx context.Context, email, credential string) (uuid.UUID, error) {
	if f.panicOn != "" && email == f.panicOn {
		panic("boom")
	}
	if f.identityDelay > 0 {
		select {
		case <-time.After(f.identityDelay):
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		}
	}
	if f.identityErr != nil {
		if err := f.identityErr(email); err != nil {
			return uuid.Nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := f.byEmail[key]; ok {
		return uuid.Nil, fmt.Errorf("create identity %s: %w", email, ErrDuplicateEmail)
	}
	id := uuid.New()
	f.identities[id] = email
	f.byEmail[key] = id
	return id, nil
}

func (f *fakeStores) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if f.deleteIdentityErr != nil {
		return f.deleteIdentityErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byEmail, strings.ToLower(f.identities[id]))
	delete(f.identities, id)
	return nil
}

func (f *fakeStores) CreateProfile(ctx context.Context, id uuid.UUID, role Role, universityID uuid.UUID) error {
	if f.profileErr != nil {
		if err := f.profileErr(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = universityID
	return nil
}

func (f *fakeStores) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, id)
	return nil
}

func (f *fakeStores) LinkUniversity(ctx context.Context, id, universityID uuid.UUID) error {
	if f.linkPanics {
		panic("link blew up")
	}
	if f.linkErr != nil {
		return f.linkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[id] = universityID
	return nil
}

func (f *fakeStores) CreateStudentRecord(ctx context.Context, rec NewStudentRecord) (StudentRecord, error) {
	if f.studentErr != nil {
		if err := f.studentErr(rec); err != nil {
			return StudentRecord{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := StudentRecord{
		ID:                rec.ID,
		UniversityID:      rec.UniversityID,
		Name:              rec.Input.Name,
		Email:             rec.Input.Email,
		StudentID:         rec.Input.StudentID,
		Batch:             rec.Input.Batch,
		DegreeProgram:     rec.Input.DegreeProgram,
		Semester:          rec.Input.Semester,
		TemporaryPassword: rec.TemporaryPassword,
		CreatedAt:         rec.CreatedAt,
	}
	f.students[rec.ID] = out
	return out, nil
}

func (f *fakeStores) FindByEmail(ctx context.Context, email string) (*StudentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if strings.EqualFold(s.Email, email) {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeStores) InsertJob(ctx context.Context, job *Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeStores) UpdateJob(ctx context.Context, job *Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	if cur.Status != JobProcessing {
		return ErrJobFinalized
	}
	f.updates++
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeStores) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &j, nil
}

func (f *fakeStores) ListJobs(ctx context.Context, universityID uuid.UUID, limit int) ([]Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Job
	for _, j := range f.jobs {
		if j.UniversityID == universityID {
			out = append(out, j)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStores) counts() (identities, profiles, students int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.identities), len(f.profiles), len(f.students)
}
