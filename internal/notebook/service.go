// Package notebook implements PDF notebooks: ingestion into a per-notebook
// similarity index, grounded question answering with a web-search fallback,
// and the notebook lifecycle.
//
// Notebook IDs are generated by Ingest and never supplied by clients, so no
// two requests ever write the same notebook concurrently.
package notebook

import (
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kalambet/pagewise/internal/document"
	"github.com/kalambet/pagewise/internal/engine"
	"github.com/kalambet/pagewise/internal/retrieval"
	"github.com/kalambet/pagewise/internal/storage"
	"github.com/kalambet/pagewise/internal/websearch"
	"github.com/tmc/langchaingo/textsplitter"
)

var (
	// ErrNotFound is returned for unknown notebooks, notebooks whose index is
	// missing, and stored files that do not exist.
	ErrNotFound = errors.New("notebook not found")

	// ErrNoInformation is returned when the notebook cannot answer a question
	// and the web search produced nothing either.
	ErrNoInformation = errors.New("no information found in PDF and web search failed")

	// ErrUnsupportedFile is returned for uploads that are not PDFs.
	ErrUnsupportedFile = errors.New("only PDF files are supported")

	// ErrInvalidInput covers empty names, empty questions and documents
	// without extractable text.
	ErrInvalidInput = errors.New("invalid input")
)

// PDFDir and IndexDir locate the notebook file trees under a data directory.
func PDFDir(dataDir string) string   { return filepath.Join(dataDir, "pdfs") }
func IndexDir(dataDir string) string { return filepath.Join(dataDir, "index") }

// Options configure a Service. Zero values select the defaults.
type Options struct {
	DataDir       string
	TopK          int
	ChunkSize     int
	ChunkOverlap  int
	MaxPDFSources int
	MaxWebSources int
	Logger        *slog.Logger
}

func (o *Options) setDefaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.MaxPDFSources <= 0 {
		o.MaxPDFSources = 5
	}
	if o.MaxWebSources <= 0 {
		o.MaxWebSources = 3
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Service is the notebook service. It is safe for concurrent use.
type Service struct {
	store     *storage.Store
	retriever *retrieval.Retriever
	llm       engine.Completer
	web       websearch.Searcher
	splitter  textsplitter.TextSplitter
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// New wires a Service. The retriever's index store must be rooted at
// IndexDir(opts.DataDir).
func New(store *storage.Store, retriever *retrieval.Retriever, llm engine.Completer, web websearch.Searcher, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		store:     store,
		retriever: retriever,
		llm:       llm,
		web:       web,
		splitter:  document.NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		opts:      opts,
		log:       opts.Logger,
		now:       time.Now,
	}
}

// Model names the completion model used for answers.
func (s *Service) Model() string { return s.llm.Model() }

func (s *Service) pdfDir(id string) string {
	return filepath.Join(PDFDir(s.opts.DataDir), id)
}

func since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
