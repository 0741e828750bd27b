// Package httpapi exposes the intake and document services to the kiosk.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tallpine/kioskdocs/internal/artifacts"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/records"
	"github.com/tallpine/kioskdocs/internal/render"
	"github.com/tallpine/kioskdocs/internal/services"
)

// Documents is implemented by services.DocumentService.
type Documents interface {
	Status(ctx context.Context, jobID string, t models.DocumentType) (*models.DocumentResponse, error)
	View(ctx context.Context, jobID string, t models.DocumentType) (*models.DocumentResponse, error)
	Generate(ctx context.Context, jobID string, t models.DocumentType) (*models.DocumentResponse, error)
	GenerateAll(ctx context.Context, jobID string) []services.Outcome
	Preview(ctx context.Context, jobID string, t models.DocumentType, calibrate bool) (*render.Result, error)
	Versions(ctx context.Context, jobID string, t models.DocumentType) ([]models.ArtifactVersion, error)
	MarkPrinted(ctx context.Context, jobID string, t models.DocumentType, actor string) (*models.DocumentResponse, error)
}

// Intake is implemented by services.IntakeService.
type Intake interface {
	CreateJob(ctx context.Context, req *models.IntakeRequest) (*models.IntakeResponse, error)
	AdvanceJob(ctx context.Context, jobID string, req *models.AdvanceRequest) (*models.AdvanceResponse, error)
}

type Server struct {
	Documents Documents
	Intake    Intake
	Logger    *slog.Logger
}

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger()))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/jobs", s.handleCreateJob)
	r.Route("/jobs/{jobId}", func(r chi.Router) {
		r.Post("/advance", s.handleAdvance)
		r.Post("/documents/generate", s.handleGenerateAll)
		r.Route("/documents/{docType}", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Get("/status", s.handleStatus)
			r.Post("/generate", s.handleGenerate)
			r.Get("/preview", s.handlePreview)
			r.Post("/printed", s.handlePrinted)
			r.Get("/versions", s.handleVersions)
		})
	})
	return r
}

func (s Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("Handled request.",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid intake JSON: %w", err))
		return
	}
	resp, err := s.Intake.CreateJob(r.Context(), &req)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req models.AdvanceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid advance JSON: %w", err))
			return
		}
	}
	resp, err := s.Intake.AdvanceJob(r.Context(), chi.URLParam(r, "jobId"), &req)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type documentOutcome struct {
	DocType  models.DocumentType      `json:"docType"`
	Document *models.DocumentResponse `json:"document,omitempty"`
	Error    *models.ErrorResponse    `json:"error,omitempty"`
}

func (s Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	outcomes := s.Documents.GenerateAll(r.Context(), chi.URLParam(r, "jobId"))
	resp := make([]documentOutcome, 0, len(outcomes))
	status := http.StatusOK
	for _, o := range outcomes {
		out := documentOutcome{DocType: o.DocType, Document: o.Response}
		if o.Err != nil {
			code, body := classify(o.Err)
			if errors.Is(o.Err, records.ErrNotFound) {
				status = code
			}
			out.Error = &body
		}
		resp = append(resp, out)
	}
	writeJSON(w, status, resp)
}

// docType parses the {docType} path segment, writing a 404 if it is unknown.
func docType(w http.ResponseWriter, r *http.Request) (models.DocumentType, bool) {
	t, err := models.ParseDocumentType(chi.URLParam(r, "docType"))
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return "", false
	}
	return t, true
}

func (s Server) handleView(w http.ResponseWriter, r *http.Request) {
	t, ok := docType(w, r)
	if !ok {
		return
	}
	resp, err := s.Documents.View(r.Context(), chi.URLParam(r, "jobId"), t)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := docType(w, r)
	if !ok {
		return
	}
	resp, err := s.Documents.Status(r.Context(), chi.URLParam(r, "jobId"), t)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	t, ok := docType(w, r)
	if !ok {
		return
	}
	resp, err := s.Documents.Generate(r.Context(), chi.URLParam(r, "jobId"), t)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	t, ok := docType(w, r)
	if !ok {
		return
	}
	calibrate := false
	if raw := r.URL.Query().Get("calibrate"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid calibrate flag: %s", raw))
			return
		}
		calibrate = v
	}
	res, err := s.Documents.Preview(r.Context(), chi.URLParam(r, "jobId"), t, calibrate)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Field-Misses", strconv.Itoa(res.Diagnostics.Count()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Bytes)
}

type printedRequest struct {
	Actor string `json:"actor"`
}

func (s Server) handlePrinted(w http.ResponseWriter, r *http.Request) {
	t, ok := docType(w, r)
	if !ok {
		return
	}
	var req printedRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
	}
	resp, err := s.Documents.MarkPrinted(r.Context(), chi.URLParam(r, "jobId"), t, req.Actor)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	t, ok := docType(w, r)
	if !ok {
		return
	}
	versions, err := s.Documents.Versions(r.Context(), chi.URLParam(r, "jobId"), t)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if versions == nil {
		versions = []models.ArtifactVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

// classify maps service errors onto the three states the kiosk shows:
// template missing, failed with retry, and caller errors.
func classify(err error) (int, models.ErrorResponse) {
	var (
		cfgErr   *services.ConfigurationError
		invalid  *render.TemplateInvalidError
		loadErr  *render.TemplateLoadError
		readErr  *artifacts.StorageReadError
		storeErr *artifacts.StorageWriteError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusConflict, models.ErrorResponse{State: models.StateTemplateMissing, Message: err.Error()}
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest, models.ErrorResponse{Message: err.Error()}
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound, models.ErrorResponse{Message: err.Error()}
	case errors.Is(err, records.ErrVersionConflict):
		return http.StatusConflict, models.ErrorResponse{State: models.StateFailed, Message: err.Error(), Retry: true}
	case errors.As(err, &invalid), errors.As(err, &loadErr):
		return http.StatusBadGateway, models.ErrorResponse{State: models.StateFailed, Message: err.Error(), Retry: true}
	case errors.As(err, &readErr), errors.As(err, &storeErr):
		return http.StatusBadGateway, models.ErrorResponse{State: models.StateFailed, Message: err.Error(), Retry: true}
	}
	return http.StatusInternalServerError, models.ErrorResponse{State: models.StateFailed, Message: err.Error(), Retry: true}
}

func (s Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger().Error("Request failed.", "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, models.ErrorResponse{Message: err.Error()})
}
