// Package memory implements the onboarding store ports in process memory.
// It backs STORE_DRIVER=memory and tests; faults can be injected per
// operation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/onboard/internal/onboarding"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpCreateIdentity Op = "create_identity"
	OpDeleteIdentity Op = "delete_identity"
	OpCreateProfile  Op = "create_profile"
	OpDeleteProfile  Op = "delete_profile"
	OpLinkUniversity Op = "link_university"
	OpCreateStudent  Op = "create_student"
	OpFindByEmail    Op = "find_by_email"
	OpInsertJob      Op = "insert_job"
	OpUpdateJob      Op = "update_job"
)

// Fault decides whether an operation fails. key is the email for identity,
// student and lookup operations and the ID otherwise.
type Fault func(key string) error

type profile struct {
	role         onboarding.Role
	universityID uuid.UUID
	linked       bool
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	identities map[uuid.UUID]string // id -> email
	emails     map[string]uuid.UUID // lower(email) -> id
	profiles   map[uuid.UUID]profile
	students   map[uuid.UUID]onboarding.StudentRecord
	jobs       map[uuid.UUID]onboarding.Job

	faults map[Op]Fault
}

func New() *Store {
	return &Store{
		identities: make(map[uuid.UUID]string),
		emails:     make(map[string]uuid.UUID),
		profiles:   make(map[uuid.UUID]profile),
		students:   make(map[uuid.UUID]onboarding.StudentRecord),
		jobs:       make(map[uuid.UUID]onboarding.Job),
		faults:     make(map[Op]Fault),
	}
}

var (
	_ onboarding.IdentityStore = (*Store)(nil)
	_ onboarding.ProfileStore  = (*Store)(nil)
	_ onboarding.StudentStore  = (*Store)(nil)
	_ onboarding.JobStore      = (*Store)(nil)
)

// InjectFault installs f for op. A nil f removes the fault.
func (s *Store) InjectFault(op Op, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = f
}

func (s *Store) fault(op Op, key string) error {
	s.mu.RLock()
	f := s.faults[op]
	s.mu.RUnlock()
	if f == nil {
		return nil
	}
	return f(key)
}

func (s *Store) CreateIdentity(ctx context.Context, email, credential string) (uuid.UUID, error) {
	if err := s.fault(OpCreateIdentity, email); err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.emails[key]; ok {
		return uuid.Nil, fmt.Errorf("identity %s: %w", email, onboarding.ErrDuplicateEmail)
	}
	id := uuid.New()
	s.identities[id] = email
	s.emails[key] = id
	return id, nil
}

func (s *Store) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if err := s.fault(OpDeleteIdentity, id.String()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if email, ok := s.identities[id]; ok {
		delete(s.emails, strings.ToLower(email))
		delete(s.identities, id)
	}
	return nil
}

func (s *Store) CreateProfile(ctx context.Context, id uuid.UUID, role onboarding.Role, universityID uuid.UUID) error {
	if err := s.fault(OpCreateProfile, id.String()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[id]; !ok {
		return fmt.Errorf("create profile: identity %s does not exist", id)
	}
	s.profiles[id] = profile{role: role, universityID: universityID}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if err := s.fault(OpDeleteProfile, id.String()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
	return nil
}

func (s *Store) LinkUniversity(ctx context.Context, id, universityID uuid.UUID) error {
	if err := s.fault(OpLinkUniversity, id.String()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("link university: profile %s does not exist", id)
	}
	p.universityID = universityID
	p.linked = true
	s.profiles[id] = p
	return nil
}

func (s *Store) CreateStudentRecord(ctx context.Context, rec onboarding.NewStudentRecord) (onboarding.StudentRecord, error) {
	if err := s.fault(OpCreateStudent, rec.Input.Email); err != nil {
		return onboarding.StudentRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.students {
		if existing.UniversityID == rec.UniversityID && existing.StudentID == rec.Input.StudentID {
			return onboarding.StudentRecord{}, fmt.Errorf("student id %s already used", rec.Input.StudentID)
		}
	}

	out := onboarding.StudentRecord{
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
	s.students[rec.ID] = out
	return out, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*onboarding.StudentRecord, error) {
	if err := s.fault(OpFindByEmail, email); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.students {
		if strings.EqualFold(rec.Email, email) {
			rec := rec
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertJob(ctx context.Context, job *onboarding.Job) error {
	if err := s.fault(OpInsertJob, job.ID.String()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, job *onboarding.Job) error {
	if err := s.fault(OpUpdateJob, job.ID.String()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[job.ID]
	if !ok {
		return onboarding.ErrJobNotFound
	}
	if cur.Status != onboarding.JobProcessing {
		return onboarding.ErrJobFinalized
	}
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*onboarding.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, onboarding.ErrJobNotFound
	}
	job = cloneJob(job)
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, universityID uuid.UUID, limit int) ([]onboarding.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := []onboarding.Job{}
	for _, job := range s.jobs {
		if job.UniversityID == universityID {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Counts reports how many identities, profiles and student records exist.
func (s *Store) Counts() (identities, profiles, students int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), len(s.profiles), len(s.students)
}

// Linked reports whether the identity's profile was linked to universityID.
func (s *Store) Linked(id, universityID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return ok && p.linked && p.universityID == universityID
}

func cloneJob(j onboarding.Job) onboarding.Job {
	if j.ErrorLog != nil {
		j.ErrorLog = append([]onboarding.JobError(nil), j.ErrorLog...)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
