package notebook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/pagewise/internal/engine"
	"github.com/kalambet/pagewise/internal/retrieval"
	"github.com/kalambet/pagewise/internal/websearch"
)

// Answer sources.
const (
	SourcePDF = "pdf"
	SourceWeb = "web"
)

// PDFSource cites a page range of a notebook document.
type PDFSource struct {
	FileName  string `json:"file_name"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
}

// WebSource cites a web search result.
type WebSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Answer is the result of Query. Exactly one of PDFSources and WebSources is
// set, matching Source.
type Answer struct {
	Answer         string
	Source         string
	PDFSources     []PDFSource
	WebSources     []WebSource
	ChunksUsed     int
	ProcessingTime float64
	Model          string
	CanAnswer      bool
}

// Query answers a question from the notebook's document when the retrieved
// context is judged sufficient, and from a web search otherwise.
func (s *Service) Query(ctx context.Context, sessionID, question string) (Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if _, err := s.Get(ctx, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Answer{}, err
		}
		return Answer{}, fmt.Errorf("loading notebook: %w", err)
	}

	chunks, err := s.retriever.Retrieve(ctx, sessionID, question, s.opts.TopK)
	if err != nil {
		if errors.Is(err, retrieval.ErrIndexNotFound) {
			return Answer{}, ErrNotFound
		}
		return Answer{}, err
	}

	docText := joinContext(chunks)
	ok, err := s.sufficient(ctx, question, docText)
	if err != nil {
		return Answer{}, err
	}

	var ans Answer
	if ok {
		ans, err = s.answerFromPDF(ctx, question, docText, chunks)
	} else {
		ans, err = s.answerFromWeb(ctx, question)
	}
	if err != nil {
		return Answer{}, err
	}

	ans.CanAnswer = ok
	ans.Model = s.llm.Model()
	ans.ProcessingTime = since(start)
	s.log.Info("query answered",
		"session_id", sessionID,
		"source", ans.Source,
		"chunks_used", ans.ChunksUsed,
		"duration_s", ans.ProcessingTime,
	)
	return ans, nil
}

// sufficient asks the model whether docText answers question. Empty text is
// insufficient without a model call.
func (s *Service) sufficient(ctx context.Context, question, docText string) (bool, error) {
	if strings.TrimSpace(docText) == "" {
		return false, nil
	}
	resp, err := s.llm.Complete(ctx, engine.Request{
		Prompt:      fmt.Sprintf(sufficiencyPrompt, docText, question),
		Temperature: answerTemperature,
	})
	if err != nil {
		return false, fmt.Errorf("checking context: %w", err)
	}
	return strings.Contains(strings.ToUpper(resp), "YES"), nil
}

func (s *Service) answerFromPDF(ctx context.Context, question, docText string, chunks []retrieval.ScoredChunk) (Answer, error) {
	text, err := s.llm.Complete(ctx, engine.Request{
		Prompt:      fmt.Sprintf(answerPrompt, docText, question),
		Temperature: answerTemperature,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}
	return Answer{
		Answer:     strings.TrimSpace(text),
		Source:     SourcePDF,
		PDFSources: pdfSources(chunks, s.opts.MaxPDFSources),
		ChunksUsed: len(chunks),
	}, nil
}

func (s *Service) answerFromWeb(ctx context.Context, question string) (Answer, error) {
	results, err := s.web.Search(ctx, question, websearch.Options{
		Depth:      websearch.DepthBasic,
		MaxResults: s.opts.MaxWebSources,
	})
	if err != nil {
		s.log.Warn("web search failed", "error", err)
		results = nil
	}
	if len(results) > s.opts.MaxWebSources {
		results = results[:s.opts.MaxWebSources]
	}
	if len(results) == 0 {
		return Answer{}, ErrNoInformation
	}

	text, err := s.llm.Complete(ctx, engine.Request{
		Prompt:      fmt.Sprintf(webAnswerPrompt, question, webContext(results)),
		Temperature: answerTemperature,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]WebSource, len(results))
	for i, r := range results {
		sources[i] = WebSource{Title: r.Title, URL: r.URL, Snippet: r.Content}
	}
	return Answer{
		Answer:     strings.TrimSpace(text),
		Source:     SourceWeb,
		WebSources: sources,
	}, nil
}

// pdfSources deduplicates citations by file and page range, keeping
// retrieval order, and caps the list at limit.
func pdfSources(chunks []retrieval.ScoredChunk, limit int) []PDFSource {
	seen := make(map[PDFSource]struct{}, len(chunks))
	out := make([]PDFSource, 0, min(len(chunks), limit))
	for _, c := range chunks {
		src := PDFSource{FileName: c.FileName, PageStart: c.PageStart, PageEnd: c.PageEnd}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
		if len(out) == limit {
			break
		}
	}
	return out
}
