package onboarding

// messages.go maps pipeline errors to operator-facing messages with a
// support code.
//
// # Error Codes Reference
//
// CSV errors (whole upload rejected, job marked failed):
//
//	CSV001 - The file could not be read as a student CSV
//	         Action: Include a header line and at least one data row
//	CSV002 - Required columns are missing
//	         Action: Add the missing columns named in the error
//
// Row errors (recorded per row, the rest of the batch continues):
//
//	ROW001 - Row failed validation
//	ROW002 - Email already registered
//	ROW003 - Login account could not be created
//	ROW004 - Student profile or record could not be created
//	ROW005 - Row could not be processed in time, or crashed
//
// Job errors:
//
//	JOB001 - Upload job not found
//	JOB002 - Upload job already finished
//
// Import errors:
//
//	IMP001 - Too many imports running
//
// ERR000 is the fallback. Check the logs for the original error.

import (
	"errors"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorMapping struct {
	target error
	msg    UserMessage
}

// errorMappings is checked in order with errors.Is; the first match wins.
// ErrDuplicateEmail precedes ErrIdentityCreation because a duplicate identity
// wraps both.
var errorMappings = []errorMapping{
	{ErrMalformedInput, UserMessage{
		Message: "The file could not be read as a student CSV",
		Action:  "Include a header line and at least one data row with the same number of columns",
		Code:    "CSV001",
	}},
	{ErrSchema, UserMessage{
		Message: "Required columns are missing",
		Action:  "Add the missing columns: name, email, student_id, batch, degree_program, semester",
		Code:    "CSV002",
	}},
	{ErrValidation, UserMessage{
		Message: "Row failed validation",
		Action:  "Fix the listed fields and re-upload the failed rows",
		Code:    "ROW001",
	}},
	{ErrDuplicateRecord, UserMessage{
		Message: "Email already registered",
		Action:  "Remove the duplicate row or use a different email",
		Code:    "ROW002",
	}},
	{ErrDuplicateEmail, UserMessage{
		Message: "Email already registered",
		Action:  "Remove the duplicate row or use a different email",
		Code:    "ROW002",
	}},
	{ErrIdentityCreation, UserMessage{
		Message: "Login account could not be created",
		Action:  "Re-upload the failed rows; contact support if it persists",
		Code:    "ROW003",
	}},
	{ErrProfileCreation, UserMessage{
		Message: "Student profile could not be created",
		Action:  "Re-upload the failed rows; contact support if it persists",
		Code:    "ROW004",
	}},
	{ErrStudentRecord, UserMessage{
		Message: "Student record could not be created",
		Action:  "Check for a reused student ID, then re-upload the failed rows",
		Code:    "ROW004",
	}},
	{ErrRowTimeout, UserMessage{
		Message: "Row could not be processed in time",
		Action:  "Re-upload the failed rows",
		Code:    "ROW005",
	}},
	{ErrRowPanic, UserMessage{
		Message: "Row could not be processed",
		Action:  "Re-upload the failed rows; contact support if it persists",
		Code:    "ROW005",
	}},
	{ErrJobNotFound, UserMessage{
		Message: "Upload job not found",
		Action:  "Check the job ID",
		Code:    "JOB001",
	}},
	{ErrJobFinalized, UserMessage{
		Message: "Upload job already finished",
		Action:  "Start a new upload",
		Code:    "JOB002",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a UserMessage. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}
	return defaultMessage
}

// String formats the message for display, e.g. in a failed-rows export.
func (m UserMessage) String() string {
	if m.Code == "" {
		return ""
	}
	return "[" + m.Code + "] " + m.Message + ". " + m.Action
}
