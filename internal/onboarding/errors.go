package onboarding

import (
	"errors"
	"fmt"
	"strings"
)

// Whole-import errors. Only these abort an import; the job moves to failed.
var (
	ErrMalformedInput = errors.New("malformed csv input")
	ErrSchema         = errors.New("csv schema mismatch")
)

// Per-row errors. They are recorded against the row and the batch continues.
var (
	ErrValidation       = errors.New("row validation failed")
	ErrDuplicateRecord  = errors.New("duplicate student record")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrIdentityCreation = errors.New("identity creation failed")
	ErrProfileCreation  = errors.New("profile creation failed")
	ErrStudentRecord    = errors.New("student record creation failed")
	ErrRowTimeout       = errors.New("row provisioning timed out")
	ErrRowPanic         = errors.New("unexpected error while provisioning row")
)

// Job and service errors.
var (
	ErrJobNotFound    = errors.New("upload job not found")
	ErrJobFinalized   = errors.New("upload job already finalized")
	ErrTooManyImports = errors.New("too many concurrent imports, please try again later")
)

// SchemaError lists the required columns missing from the CSV header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ProvisionStep names a step of account provisioning.
type ProvisionStep string

const (
	StepIdentity ProvisionStep = "identity"
	StepProfile  ProvisionStep = "profile"
	StepStudent  ProvisionStep = "student"
)

// ProvisionError is returned by the Provisioner when a step fails.
// UndoErr is set when one or more compensating actions failed as well.
type ProvisionError struct {
	Step    ProvisionStep
	Err     error
	UndoErr error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.kind(), e.Err)
	if e.UndoErr != nil {
		msg += fmt.Sprintf(" (rollback incomplete: %v)", e.UndoErr)
	}
	return msg
}

// Unwrap exposes both the step sentinel and the underlying cause to errors.Is.
func (e *ProvisionError) Unwrap() []error {
	return []error{e.kind(), e.Err}
}

func (e *ProvisionError) kind() error {
	switch e.Step {
	case StepIdentity:
		return ErrIdentityCreation
	case StepProfile:
		return ErrProfileCreation
	default:
		return ErrStudentRecord
	}
}
