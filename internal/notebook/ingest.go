package notebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/pagewise/internal/document"
	"github.com/kalambet/pagewise/internal/storage"
)

// IngestInput is one uploaded PDF.
type IngestInput struct {
	Name     string
	FileName string
	Body     io.Reader
}

// IngestResult describes a created notebook.
type IngestResult struct {
	SessionID      string
	FileName       string
	ChunkCount     int
	ProcessingTime float64
}

// Ingest stores the PDF, indexes its text and records the notebook. The row
// is written only after the index is on disk; on any failure the stored file
// and index are removed and no row is written.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	start := time.Now()

	fileName := filepath.Base(strings.TrimSpace(in.FileName))
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return IngestResult{}, ErrUnsupportedFile
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return IngestResult{}, fmt.Errorf("%w: notebook name is required", ErrInvalidInput)
	}

	id := uuid.NewString()
	log := s.log.With("session_id", id, "file_name", fileName)

	n, err := s.ingest(ctx, id, name, fileName, in.Body)
	if err != nil {
		if rmErr := os.RemoveAll(s.pdfDir(id)); rmErr != nil {
			log.Warn("cleanup: removing stored pdf failed", "error", rmErr)
		}
		if rmErr := s.retriever.Forget(id); rmErr != nil {
			log.Warn("cleanup: removing index failed", "error", rmErr)
		}
		return IngestResult{}, err
	}

	res := IngestResult{
		SessionID:      id,
		FileName:       fileName,
		ChunkCount:     n,
		ProcessingTime: since(start),
	}
	log.Info("notebook created", "chunks", n, "duration_s", res.ProcessingTime)
	return res, nil
}

func (s *Service) ingest(ctx context.Context, id, name, fileName string, body io.Reader) (int, error) {
	dir := s.pdfDir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, fmt.Errorf("creating notebook dir: %w", err)
	}
	path := filepath.Join(dir, fileName)
	if err := writeFile(path, body); err != nil {
		return 0, fmt.Errorf("saving pdf: %w", err)
	}

	pages, err := document.ExtractFile(path)
	if err != nil {
		if errors.Is(err, document.ErrNoText) {
			return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return 0, fmt.Errorf("PDF processing failed: %w", err)
	}
	chunks, err := document.Split(pages, fileName, s.splitter)
	if err != nil {
		return 0, fmt.Errorf("PDF processing failed: %w", err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, document.ErrNoText)
	}

	n, err := s.retriever.Index(ctx, id, chunks)
	if err != nil {
		return 0, fmt.Errorf("indexing notebook: %w", err)
	}

	err = s.store.CreateNotebook(storage.Notebook{
		ID:           id,
		Name:         name,
		FileName:     fileName,
		CreatedAt:    s.now().UTC(),
		SourcesCount: 1,
		ChunkCount:   n,
	})
	if err != nil {
		return 0, fmt.Errorf("recording notebook: %w", err)
	}
	return n, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
