package onboarding

import (
	"time"

	"github.com/google/uuid"
)

// Column names of the student CSV, in canonical order.
const (
	ColName          = "name"
	ColEmail         = "email"
	ColStudentID     = "student_id"
	ColBatch         = "batch"
	ColDegreeProgram = "degree_program"
	ColSemester      = "semester"
)

// RequiredColumns is the header set every student CSV must carry.
var RequiredColumns = []string{ColName, ColEmail, ColStudentID, ColBatch, ColDegreeProgram, ColSemester}

// Row is one parsed data line of a student CSV.
// Optional columns are nil when the cell is blank.
type Row struct {
	Line          int // 1-based position among the non-blank data lines
	Name          string
	Email         string
	StudentID     string
	Batch         *string
	DegreeProgram *string
	Semester      *string
}

// Values returns the row's cells in RequiredColumns order.
func (r Row) Values() []string {
	return []string{r.Name, r.Email, r.StudentID, deref(r.Batch), deref(r.DegreeProgram), deref(r.Semester)}
}

// Fields returns the row keyed by column name, used for error logs.
func (r Row) Fields() map[string]string {
	vals := r.Values()
	out := make(map[string]string, len(RequiredColumns))
	for i, col := range RequiredColumns {
		out[col] = vals[i]
	}
	return out
}

// StudentInput is a validated row ready for provisioning.
type StudentInput struct {
	Name          string
	Email         string
	StudentID     string
	Batch         *int
	DegreeProgram *string
	Semester      *string
}

// Role is the role recorded on a profile.
type Role string

const RoleStudent Role = "student"

// NewStudentRecord carries what the student store needs to create a record.
type NewStudentRecord struct {
	ID                uuid.UUID // identity ID; the record shares it
	UniversityID      uuid.UUID
	Input             StudentInput
	TemporaryPassword string
	CreatedAt         time.Time
}

// StudentRecord is a stored student.
type StudentRecord struct {
	ID                uuid.UUID `json:"id"`
	UniversityID      uuid.UUID `json:"university_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	StudentID         string    `json:"student_id"`
	Batch             *int      `json:"batch,omitempty"`
	DegreeProgram     *string   `json:"degree_program,omitempty"`
	Semester          *string   `json:"semester,omitempty"`
	TemporaryPassword string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// Provisioned is the outcome of a successful row.
type Provisioned struct {
	Row        int           `json:"row"`
	Student    StudentRecord `json:"student"`
	Credential string        `json:"temporary_password"`
}

// FailedRow is a row the batch could not provision.
type FailedRow struct {
	Row    Row    `json:"-"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// BatchResult is what the orchestrator returns for one run.
type BatchResult struct {
	Successful []Provisioned
	Failed     []FailedRow
	Total      int
}

// JobStatus is the lifecycle state of an upload job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Error log stages.
const (
	StageParse     = "parse"
	StageValidate  = "validate"
	StageProvision = "provision"
)

// JobError is one entry of a job's error log.
type JobError struct {
	Row    int               `json:"row"`
	Data   map[string]string `json:"data,omitempty"`
	Reason string            `json:"reason"`
	Stage  string            `json:"stage"`
}

// Job is the persisted record of one bulk upload.
type Job struct {
	ID                uuid.UUID  `json:"id"`
	UniversityID      uuid.UUID  `json:"university_id"`
	FileName          string     `json:"file_name"`
	FilePath          string     `json:"file_path,omitempty"`
	Status            JobStatus  `json:"status"`
	TotalRecords      int        `json:"total_records"`
	SuccessfulRecords int        `json:"successful_records"`
	FailedRecords     int        `json:"failed_records"`
	SkippedRecords    int        `json:"skipped_records"`
	ErrorLog          []JobError `json:"error_log"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
