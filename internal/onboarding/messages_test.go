package onboarding

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"malformed input", fmt.Errorf("%w: need a header", ErrMalformedInput), "CSV001"},
		{"schema error", &SchemaError{Missing: []string{"email"}}, "CSV002"},
		{"validation", fmt.Errorf("%w: name is required", ErrValidation), "ROW001"},
		{"in-batch duplicate", ErrDuplicateRecord, "ROW002"},
		{
			"identity duplicate wins over identity failure",
			&ProvisionError{Step: StepIdentity, Err: ErrDuplicateEmail},
			"ROW002",
		},
		{"identity failure", &ProvisionError{Step: StepIdentity, Err: errInjected}, "ROW003"},
		{"profile failure", &ProvisionError{Step: StepProfile, Err: errInjected}, "ROW004"},
		{"student failure", &ProvisionError{Step: StepStudent, Err: errInjected}, "ROW004"},
		{"row timeout", fmt.Errorf("%w: deadline", ErrRowTimeout), "ROW005"},
		{"job not found", ErrJobNotFound, "JOB001"},
		{"job finalized", fmt.Errorf("job x is completed: %w", ErrJobFinalized), "JOB002"},
		{"too many imports", ErrTooManyImports, "IMP001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && (got.Message == "" || got.Action == "") {
				t.Errorf("message or action empty: %+v", got)
			}
		})
	}
}

func TestUserMessage_String(t *testing.T) {
	if got := (UserMessage{}).String(); got != "" {
		t.Errorf("zero value String() = %q, want empty", got)
	}
	got := MapError(ErrTooManyImports).String()
	want := "[IMP001] System is busy processing other uploads. Please wait a moment and try again"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
