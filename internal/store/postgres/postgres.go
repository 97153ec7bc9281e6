// Package postgres implements the onboarding store ports on PostgreSQL
// using pgx.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/onboard/internal/onboarding"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PoolConfig configures Connect.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Store implements onboarding.IdentityStore, ProfileStore, StudentStore and
// JobStore.
type Store struct {
	db       DBTX
	hashCost int
}

// Option configures a Store.
type Option func(*Store)

// WithHashCost sets the bcrypt cost used for identity credentials.
func WithHashCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

func New(db DBTX, opts ...Option) *Store {
	s := &Store{db: db, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ onboarding.IdentityStore = (*Store)(nil)
	_ onboarding.ProfileStore  = (*Store)(nil)
	_ onboarding.StudentStore  = (*Store)(nil)
	_ onboarding.JobStore      = (*Store)(nil)
)

// --- identities ---

func (s *Store) CreateIdentity(ctx context.Context, email, credential string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), s.hashCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash credential: %w", err)
	}

	id := uuid.New()
	_, err = s.db.Exec(ctx,
		`INSERT INTO identities (id, email, password_hash) VALUES ($1, $2, $3)`,
		pgUUID(id), email, string(hash),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("identity %s: %w", email, onboarding.ErrDuplicateEmail)
		}
		return uuid.Nil, fmt.Errorf("insert identity: %w", err)
	}
	return id, nil
}

func (s *Store) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, pgUUID(id)); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// VerifyCredential reports whether credential matches the identity's stored hash.
func (s *Store) VerifyCredential(ctx context.Context, email, credential string) (bool, error) {
	var hash string
	err := s.db.QueryRow(ctx,
		`SELECT password_hash FROM identities WHERE lower(email) = lower($1)`, email,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get identity: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil, nil
}

// --- profiles ---

func (s *Store) CreateProfile(ctx context.Context, id uuid.UUID, role onboarding.Role, universityID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO profiles (id, role, university_id) VALUES ($1, $2, $3)`,
		pgUUID(id), string(role), pgUUID(universityID),
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, pgUUID(id)); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// LinkUniversity is idempotent: relinking to the same university is a no-op.
func (s *Store) LinkUniversity(ctx context.Context, id, universityID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE profiles
		    SET university_id = $2, linked_at = COALESCE(linked_at, now())
		  WHERE id = $1`,
		pgUUID(id), pgUUID(universityID),
	)
	if err != nil {
		return fmt.Errorf("link university: %w", err)
	}
	return nil
}

// --- students ---

const studentColumns = `id, university_id, student_id, name, email, batch,
	degree_program, semester, temporary_password, created_at`

func (s *Store) CreateStudentRecord(ctx context.Context, rec onboarding.NewStudentRecord) (onboarding.StudentRecord, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO students (`+studentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+studentColumns,
		pgUUID(rec.ID),
		pgUUID(rec.UniversityID),
		rec.Input.StudentID,
		rec.Input.Name,
		rec.Input.Email,
		pgInt4(rec.Input.Batch),
		pgText(rec.Input.DegreeProgram),
		pgText(rec.Input.Semester),
		rec.TemporaryPassword,
		pgTimestamptz(&rec.CreatedAt),
	)

	out, err := scanStudent(row)
	if err != nil {
		if isUniqueViolation(err) {
			return onboarding.StudentRecord{}, fmt.Errorf("student id %s already used: %w", rec.Input.StudentID, err)
		}
		return onboarding.StudentRecord{}, fmt.Errorf("insert student: %w", err)
	}
	return out, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*onboarding.StudentRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE lower(email) = lower($1) LIMIT 1`, email)

	rec, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find student by email: %w", err)
	}
	return &rec, nil
}

func scanStudent(row pgx.Row) (onboarding.StudentRecord, error) {
	var (
		id, uni   pgtype.UUID
		batch     pgtype.Int4
		program   pgtype.Text
		semester  pgtype.Text
		createdAt pgtype.Timestamptz
		rec       onboarding.StudentRecord
	)
	err := row.Scan(&id, &uni, &rec.StudentID, &rec.Name, &rec.Email, &batch,
		&program, &semester, &rec.TemporaryPassword, &createdAt)
	if err != nil {
		return onboarding.StudentRecord{}, err
	}

	rec.ID = fromPgUUID(id)
	rec.UniversityID = fromPgUUID(uni)
	rec.Batch = fromPgInt4(batch)
	rec.DegreeProgram = fromPgText(program)
	rec.Semester = fromPgText(semester)
	if t := fromPgTimestamptz(createdAt); t != nil {
		rec.CreatedAt = *t
	}
	return rec, nil
}

// --- upload jobs ---

const jobColumns = `id, university_id, file_name, file_path, status, total_records,
	successful_records, failed_records, skipped_records, error_log, created_at, completed_at`

func (s *Store) InsertJob(ctx context.Context, job *onboarding.Job) error {
	errorLog, err := json.Marshal(nonNilLog(job.ErrorLog))
	if err != nil {
		return fmt.Errorf("encode error log: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO upload_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgUUID(job.ID),
		pgUUID(job.UniversityID),
		job.FileName,
		job.FilePath,
		string(job.Status),
		job.TotalRecords,
		job.SuccessfulRecords,
		job.FailedRecords,
		job.SkippedRecords,
		errorLog,
		pgTimestamptz(&job.CreatedAt),
		pgTimestamptz(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert upload job: %w", err)
	}
	return nil
}

// UpdateJob only touches jobs that are still processing.
func (s *Store) UpdateJob(ctx context.Context, job *onboarding.Job) error {
	errorLog, err := json.Marshal(nonNilLog(job.ErrorLog))
	if err != nil {
		return fmt.Errorf("encode error log: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE upload_jobs
		    SET status = $2,
		        total_records = $3,
		        successful_records = $4,
		        failed_records = $5,
		        skipped_records = $6,
		        error_log = $7,
		        completed_at = $8
		  WHERE id = $1 AND status = 'processing'`,
		pgUUID(job.ID),
		string(job.Status),
		job.TotalRecords,
		job.SuccessfulRecords,
		job.FailedRecords,
		job.SkippedRecords,
		errorLog,
		pgTimestamptz(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update upload job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetJob(ctx, job.ID); err != nil {
			return err
		}
		return onboarding.ErrJobFinalized
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*onboarding.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM upload_jobs WHERE id = $1`, pgUUID(id))

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, onboarding.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload job: %w", err)
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, universityID uuid.UUID, limit int) ([]onboarding.Job, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM upload_jobs
		  WHERE university_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		pgUUID(universityID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list upload jobs: %w", err)
	}
	defer rows.Close()

	jobs := []onboarding.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (onboarding.Job, error) {
	var (
		id, uni     pgtype.UUID
		status      string
		errorLog    []byte
		createdAt   pgtype.Timestamptz
		completedAt pgtype.Timestamptz
		job         onboarding.Job
	)
	err := row.Scan(&id, &uni, &job.FileName, &job.FilePath, &status, &job.TotalRecords,
		&job.SuccessfulRecords, &job.FailedRecords, &job.SkippedRecords, &errorLog,
		&createdAt, &completedAt)
	if err != nil {
		return onboarding.Job{}, err
	}

	job.ID = fromPgUUID(id)
	job.UniversityID = fromPgUUID(uni)
	job.Status = onboarding.JobStatus(status)
	if err := json.Unmarshal(errorLog, &job.ErrorLog); err != nil {
		return onboarding.Job{}, fmt.Errorf("decode error log: %w", err)
	}
	if t := fromPgTimestamptz(createdAt); t != nil {
		job.CreatedAt = *t
	}
	job.CompletedAt = fromPgTimestamptz(completedAt)
	return job, nil
}

func nonNilLog(log []onboarding.JobError) []onboarding.JobError {
	if log == nil {
		return []onboarding.JobError{}
	}
	return log
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
