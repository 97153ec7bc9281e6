package onboarding

import (
	"context"

	"github.com/google/uuid"
)

// IdentityStore owns login credentials.
// CreateIdentity returns an error wrapping ErrDuplicateEmail when the email is taken.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, email, credential string) (uuid.UUID, error)
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// ProfileStore owns role profiles keyed by identity ID.
type ProfileStore interface {
	CreateProfile(ctx context.Context, id uuid.UUID, role Role, universityID uuid.UUID) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	LinkUniversity(ctx context.Context, id, universityID uuid.UUID) error
}

// StudentStore owns student records.
// FindByEmail returns nil, nil when no record matches.
type StudentStore interface {
	CreateStudentRecord(ctx context.Context, rec NewStudentRecord) (StudentRecord, error)
	FindByEmail(ctx context.Context, email string) (*StudentRecord, error)
}

// JobStore persists upload jobs.
// UpdateJob must refuse to touch a job that is no longer processing and
// return ErrJobFinalized. GetJob returns ErrJobNotFound for unknown IDs.
type JobStore interface {
	InsertJob(ctx context.Context, job *Job) error
	UpdateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, universityID uuid.UUID, limit int) ([]Job, error)
}
