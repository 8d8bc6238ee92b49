package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kalambet/pagewise/internal/notebook"
	"github.com/kalambet/pagewise/internal/storage"
)

const (
	maxUploadSize      = 50 << 20 // 50MB
	maxRequestBodySize = 1 << 20  // 1MB
	multipartMemory    = 8 << 20
)

// Notebooks is the notebook service as seen by the HTTP layer.
type Notebooks interface {
	Ingest(ctx context.Context, in notebook.IngestInput) (notebook.IngestResult, error)
	Query(ctx context.Context, sessionID, question string) (notebook.Answer, error)
	List(ctx context.Context) ([]storage.Notebook, error)
	Delete(ctx context.Context, id string) error
	OpenFile(ctx context.Context, id, fileName string) (*os.File, error)
}

type NotebookDeps struct {
	Notebooks Notebooks
	// Token guards upload and delete when non-empty.
	Token   string
	Origins []string
	Logger  *slog.Logger
}

type queryRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
	Question  string `json:"question" validate:"required,max=4000"`
	// Stream is accepted for compatibility; answers are never streamed.
	Stream bool `json:"stream"`
}

type uploadResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	SessionID      string  `json:"session_id"`
	FileName       string  `json:"filename"`
	ChunkCount     int     `json:"chunk_count"`
	ProcessingTime float64 `json:"processing_time"`
}

type queryMetadata struct {
	Model     string `json:"model"`
	CanAnswer bool   `json:"can_answer"`
}

type queryResponse struct {
	Success        bool                 `json:"success"`
	Answer         string               `json:"answer"`
	Source         string               `json:"source"`
	PDFSources     []notebook.PDFSource `json:"pdf_sources"`
	WebSources     []notebook.WebSource `json:"web_sources"`
	ChunksUsed     int                  `json:"chunks_used"`
	ProcessingTime float64              `json:"processing_time"`
	Metadata       queryMetadata        `json:"metadata"`
}

type notebookItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FileName     string `json:"file_name"`
	CreatedAt    string `json:"created_at"`
	SourcesCount int    `json:"sources_count"`
	ChunkCount   int    `json:"chunk_count"`
}

// NewNotebookHandler returns the notebook service HTTP API.
func NewNotebookHandler(deps NotebookDeps) http.Handler {
	r := newRouter(deps.Origins, deps.Logger)
	v := newValidator()

	r.Get("/health", handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handleHealth)
		r.Post("/query", handleQuery(deps, v))
		r.Get("/notebooks", handleListNotebooks(deps))
		r.Get("/notebooks/{id}/pdf/{file_name}", handleServePDF(deps))

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))
			r.Post("/upload", handleUpload(deps))
			r.Delete("/notebooks/{id}", handleDeleteNotebook(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}

func handleUpload(deps NotebookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "file exceeds the %d MB upload limit", maxUploadSize>>20)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, hdr, err := r.FormFile("pdf")
		if errors.Is(err, http.ErrMissingFile) {
			file, hdr, err = r.FormFile("file")
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "pdf file is required")
			return
		}
		defer file.Close()

		name := r.FormValue("name")
		if name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		res, err := deps.Notebooks.Ingest(r.Context(), notebook.IngestInput{
			Name:     name,
			FileName: hdr.Filename,
			Body:     file,
		})
		if err != nil {
			serviceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{
			Success:        true,
			Message:        fmt.Sprintf("Notebook %q created with %d chunks", name, res.ChunkCount),
			SessionID:      res.SessionID,
			FileName:       res.FileName,
			ChunkCount:     res.ChunkCount,
			ProcessingTime: res.ProcessingTime,
		})
	}
}

func handleQuery(deps NotebookDeps, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := v.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
			return
		}

		ans, err := deps.Notebooks.Query(r.Context(), req.SessionID, req.Question)
		if err != nil {
			serviceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, queryResponse{
			Success:        true,
			Answer:         ans.Answer,
			Source:         ans.Source,
			PDFSources:     ans.PDFSources,
			WebSources:     ans.WebSources,
			ChunksUsed:     ans.ChunksUsed,
			ProcessingTime: ans.ProcessingTime,
			Metadata: queryMetadata{
				Model:     ans.Model,
				CanAnswer: ans.CanAnswer,
			},
		})
	}
}

func handleListNotebooks(deps NotebookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Notebooks.List(r.Context())
		if err != nil {
			serviceError(w, err)
			return
		}

		items := make([]notebookItem, len(list))
		for i, nb := range list {
			items[i] = notebookItem{
				ID:           nb.ID,
				Name:         nb.Name,
				FileName:     nb.FileName,
				CreatedAt:    nb.CreatedAt.UTC().Format(time.RFC3339),
				SourcesCount: nb.SourcesCount,
				ChunkCount:   nb.ChunkCount,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"notebooks": items,
		})
	}
}

func handleDeleteNotebook(deps NotebookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Notebooks.Delete(r.Context(), id); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Notebook %s deleted", id),
		})
	}
}

func handleServePDF(deps NotebookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := deps.Notebooks.OpenFile(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "file_name"))
		if err != nil {
			serviceError(w, err)
			return
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "stat pdf: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", st.Name()))
		http.ServeContent(w, r, st.Name(), st.ModTime(), f)
	}
}
