package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/onboard/internal/logging"
)

// undoTimeout bounds each compensating action. Undo runs detached from the
// row context so a timed-out row still gets cleaned up.
const undoTimeout = 10 * time.Second

// Provisioner creates the identity, role profile and student record for one
// student. All three exist afterwards or, on error, none of them do (unless
// the ProvisionError reports an incomplete rollback).
type Provisioner struct {
	identities       IdentityStore
	profiles         ProfileStore
	students         StudentStore
	credentialLength int
	now              func() time.Time
}

// NewProvisioner wires a Provisioner to its stores. A credentialLength of
// zero uses DefaultCredentialLength.
func NewProvisioner(identities IdentityStore, profiles ProfileStore, students StudentStore, credentialLength int) *Provisioner {
	if credentialLength == 0 {
		credentialLength = DefaultCredentialLength
	}
	return &Provisioner{
		identities:       identities,
		profiles:         profiles,
		students:         students,
		credentialLength: credentialLength,
		now:              time.Now,
	}
}

// compensation undoes one completed step.
type compensation struct {
	step ProvisionStep
	undo func(ctx context.Context) error
}

type compensationStack []compensation

func (s *compensationStack) push(step ProvisionStep, undo func(ctx context.Context) error) {
	*s = append(*s, compensation{step: step, undo: undo})
}

// unwind pops and runs every undo action, newest first, and joins their
// failures. Popped actions never run twice, even if an undo panics.
func (s *compensationStack) unwind(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for len(*s) > 0 {
		c := (*s)[len(*s)-1]
		*s = (*s)[:len(*s)-1]
		undoCtx, cancel := context.WithTimeout(ctx, undoTimeout)
		err := c.undo(undoCtx)
		cancel()
		if err != nil {
			logging.FromContext(ctx).Error("compensation failed", "step", c.step, "error", err)
			errs = append(errs, fmt.Errorf("undo %s: %w", c.step, err))
		}
	}
	return errors.Join(errs...)
}

// Provision creates the account for one validated row. A panic in a store
// is recovered, the completed steps are undone and the panic is reported as
// a ProvisionError wrapping ErrRowPanic.
func (p *Provisioner) Provision(ctx context.Context, in StudentInput, universityID uuid.UUID) (out Provisioned, err error) {
	credential, err := GenerateCredential(p.credentialLength)
	if err != nil {
		return Provisioned{}, &ProvisionError{Step: StepIdentity, Err: err}
	}

	var stack compensationStack
	current := StepIdentity
	fail := func(step ProvisionStep, cause error) (Provisioned, error) {
		return Provisioned{}, &ProvisionError{Step: step, Err: cause, UndoErr: stack.unwind(ctx)}
	}

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("provisioning panicked", "step", current, "panic", r)
			out, err = fail(current, fmt.Errorf("%w: %v", ErrRowPanic, r))
		}
	}()

	id, err := p.identities.CreateIdentity(ctx, in.Email, credential)
	if err != nil {
		return fail(StepIdentity, err)
	}
	stack.push(StepIdentity, func(ctx context.Context) error {
		return p.identities.DeleteIdentity(ctx, id)
	})

	current = StepProfile

	if err := p.profiles.CreateProfile(ctx, id, RoleStudent, universityID); err != nil {
		return fail(StepProfile, err)
	}
	stack.push(StepProfile, func(ctx context.Context) error {
		return p.profiles.DeleteProfile(ctx, id)
	})

	current = StepStudent

	rec, err := p.students.CreateStudentRecord(ctx, NewStudentRecord{
		ID:                id,
		UniversityID:      universityID,
		Input:             in,
		TemporaryPassword: credential,
		CreatedAt:         p.now().UTC(),
	})
	if err != nil {
		return fail(StepStudent, err)
	}

	p.linkUniversity(ctx, id, universityID)

	return Provisioned{Student: rec, Credential: credential}, nil
}

// linkUniversity is best effort: the account is complete without the link,
// so failures and panics are only logged.
func (p *Provisioner) linkUniversity(ctx context.Context, id, universityID uuid.UUID) {
	log := logging.FromContext(ctx).With("identity_id", id, "university_id", universityID)
	defer func() {
		if r := recover(); r != nil {
			log.Warn("link university panicked", "panic", r)
		}
	}()

	if err := p.profiles.LinkUniversity(ctx, id, universityID); err != nil {
		log.Warn("link university failed", "error", err)
	}
}
