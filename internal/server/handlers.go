package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/pipeline"
)

// MaxReposLimit caps the max_repos query parameter
const MaxReposLimit = 100

// IntegrityResponse reports whether a stored hash still matches its record
type IntegrityResponse struct {
	VerificationID int64  `json:"verification_id"`
	Hash           string `json:"hash"`
	Valid          bool   `json:"valid"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if s.deps.Database != nil {
		resp.Services = map[string]string{"database": "healthy"}
		if err := s.deps.Database.Ping(r.Context()); err != nil {
			s.logger.Error("database health check failed", zap.Error(err))
			resp.Services["database"] = "unhealthy"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	s.jsonResponse(w, status, resp)
}

// readRequest parses the multipart upload into a pipeline request
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		return pipeline.Request{}, &ErrValidation{Field: "resume_pdf", Message: fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Request{}, &ErrValidation{Field: "resume_pdf", Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)}
		}
		return pipeline.Request{}, &ErrValidation{Field: "resume_pdf", Message: "Resume PDF file is required"}
	}

	file, header, err := r.FormFile("resume_pdf")
	if err != nil {
		return pipeline.Request{}, &ErrValidation{Field: "resume_pdf", Message: "Resume PDF file is required"}
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("failed to read upload: %w", err)
	}

	return pipeline.Request{
		Document:     data,
		DocumentName: header.Filename,
		Username:     r.FormValue("github_username"),
	}, nil
}

// handleVerify runs a verification and returns the persisted record
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	record, err := s.deps.Verifier.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

// handleVerifyStream runs a verification and streams progress via SSE
func (s *Server) handleVerifyStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	verifier := s.deps.Verifier.WithProgress(func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent(EventStep, event); err != nil {
			s.logger.Warn("failed to write SSE event", zap.Error(err))
		}
	})

	record, err := verifier.Run(r.Context(), req)
	if err != nil {
		if HTTPStatus(err) >= http.StatusInternalServerError {
			s.logger.Error("streamed verification failed", zap.String(logging.FieldRequest, requestID(r.Context())), zap.Error(err))
		}
		err = sse.WriteError(HTTPStatus(err), err.Error())
	} else {
		err = sse.WriteComplete(record)
	}
	if err != nil {
		s.logger.Warn("failed to write SSE event", zap.Error(err))
	}
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ErrValidation{Field: "id", Message: fmt.Sprintf("invalid verification id %q", raw)}
	}
	return id, nil
}

// handleGetVerification returns a stored record
func (s *Server) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	record, err := s.deps.Records.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

// handleCheckIntegrity recomputes a record's hash from its verified skills
func (s *Server) handleCheckIntegrity(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	record, err := s.deps.Records.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, IntegrityResponse{
		VerificationID: record.ID,
		Hash:           record.IntegrityHash,
		Valid:          s.deps.Hasher.Verify(record.SubjectUsername, record.Result.VerifiedSkillNames(), record.IntegrityHash),
	})
}

// accountParams reads the username path segment and optional max_repos query
func accountParams(r *http.Request) (string, int, error) {
	username, err := pipeline.NormalizeUsername(chi.URLParam(r, "username"))
	if err != nil {
		return "", 0, err
	}

	maxRepos := 0
	if raw := r.URL.Query().Get("max_repos"); raw != "" {
		maxRepos, err = strconv.Atoi(raw)
		if err != nil || maxRepos <= 0 || maxRepos > MaxReposLimit {
			return "", 0, &ErrValidation{Field: "max_repos", Message: fmt.Sprintf("must be an integer between 1 and %d", MaxReposLimit)}
		}
	}
	return username, maxRepos, nil
}

func (s *Server) handleAccountLanguages(w http.ResponseWriter, r *http.Request) {
	username, maxRepos, err := accountParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	languages, err := s.deps.Accounts.AccountLanguages(r.Context(), username, maxRepos)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, languages)
}

func (s *Server) handleAccountTechnologies(w http.ResponseWriter, r *http.Request) {
	username, maxRepos, err := accountParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	technologies, err := s.deps.Accounts.AccountTechnologies(r.Context(), username, maxRepos)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, technologies)
}

func (s *Server) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	username, maxRepos, err := accountParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summary, err := s.deps.Accounts.AccountSummary(r.Context(), username, maxRepos)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleClearCache drops every cached entry
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Clear(r.Context()); err != nil {
			s.fail(w, r, fmt.Errorf("failed to clear cache: %w", err))
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}
