package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/onboard/internal/logging"
	"github.com/JonMunkholm/onboard/internal/onboarding"
)

const defaultUploadName = "upload.csv"

// handleImport runs a bulk student upload for a university.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	universityID, ok := uuidParam(w, r, "universityID")
	if !ok {
		return
	}

	var jobID uuid.UUID
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid job_id")
			return
		}
		jobID = id
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	text, name, err := readUpload(r, s.cfg.Import.MaxFileSize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	res, err := s.service.Import(r.Context(), onboarding.ImportRequest{
		CSVText:      text,
		UniversityID: universityID,
		JobID:        jobID,
		FileName:     name,
	})
	if err != nil {
		body := ErrorResponse{}
		if res != nil {
			body.JobID = &res.JobID
			body.Diagnostics = res.Diagnostics
		}
		s.respondErrorWith(w, r, err, body)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		if err := ImportSummary(res).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render import summary", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// readUpload returns the CSV text from a multipart "file" field or the raw
// request body, plus a file name for the job record.
func readUpload(r *http.Request, maxSize int64) (string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", "", err
			}
			return "", "", fmt.Errorf("file too large or invalid form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", errors.New("no file provided")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", "", fmt.Errorf("read file: %w", err)
		}
		return string(data), header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", err
	}
	if len(data) == 0 {
		return "", "", errors.New("empty request body")
	}
	name := r.URL.Query().Get("file_name")
	if name == "" {
		name = defaultUploadName
	}
	return string(data), name, nil
}

// handleCreateJob registers a processing job ahead of the upload.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	universityID, ok := uuidParam(w, r, "universityID")
	if !ok {
		return
	}

	q := r.URL.Query()
	name := q.Get("file_name")
	if name == "" {
		name = defaultUploadName
	}

	job, err := s.service.CreateJob(r.Context(), universityID, name, q.Get("file_path"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, job)
}

// handleListJobs returns a university's upload history, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	universityID, ok := uuidParam(w, r, "universityID")
	if !ok {
		return
	}

	jobs, err := s.service.Jobs(r.Context(), universityID, parseIntParam(r, "limit", onboarding.DefaultJobListLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, jobs)
}

// handleGetJob returns one upload job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := uuidParam(w, r, "jobID")
	if !ok {
		return
	}

	job, err := s.service.Job(r.Context(), jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

// handleExportFailedRows downloads a job's failed rows as a CSV that can be
// corrected and uploaded again.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	jobID, ok := uuidParam(w, r, "jobID")
	if !ok {
		return
	}

	job, err := s.service.Job(r.Context(), jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("failed_rows_%s.csv", strings.ReplaceAll(job.ID.String(), "-", ""))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := onboarding.WriteFailedRows(w, job); err != nil {
		logging.FromContext(r.Context()).Error("export failed rows", "job_id", job.ID, "error", err)
	}
}

// failedRowsPath is the export route for a job's failed rows.
func failedRowsPath(jobID uuid.UUID) string {
	return "/api/upload-jobs/" + jobID.String() + "/failed-rows"
}

type healthResponse struct {
	Status  string                   `json:"status"`
	Imports onboarding.LimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:  "ok",
		Imports: s.service.LimiterStatus(),
	})
}

// uuidParam parses a UUID path parameter, writing a 400 when invalid.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
