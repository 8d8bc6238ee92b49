package notebook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/pagewise/internal/storage"
)

// List returns every notebook, newest first.
func (s *Service) List(_ context.Context) ([]storage.Notebook, error) {
	return s.store.ListNotebooks()
}

// Get returns one notebook.
func (s *Service) Get(_ context.Context, id string) (storage.Notebook, error) {
	nb, err := s.store.GetNotebook(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Notebook{}, ErrNotFound
	}
	return nb, err
}

// Delete removes the notebook row, then its stored files and index. File
// removal is best effort; a second Delete of the same id is ErrNotFound.
func (s *Service) Delete(_ context.Context, id string) error {
	if err := s.store.DeleteNotebook(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting notebook: %w", err)
	}

	log := s.log.With("session_id", id)
	if err := os.RemoveAll(s.pdfDir(id)); err != nil {
		log.Warn("removing stored pdf failed", "error", err)
	}
	if err := s.retriever.Forget(id); err != nil {
		log.Warn("removing index failed", "error", err)
	}
	log.Info("notebook deleted")
	return nil
}

// OpenFile opens a stored document of notebook id. Only the base name of
// fileName is used, so callers cannot escape the notebook directory.
func (s *Service) OpenFile(ctx context.Context, id, fileName string) (*os.File, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == ".." || name == string(filepath.Separator) || id != filepath.Base(id) {
		return nil, ErrNotFound
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.pdfDir(id), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
