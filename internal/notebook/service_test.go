package notebook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/pagewise/internal/document"
	"github.com/kalambet/pagewise/internal/document/documenttest"
	"github.com/kalambet/pagewise/internal/engine"
	"github.com/kalambet/pagewise/internal/retrieval"
	"github.com/kalambet/pagewise/internal/storage"
	"github.com/kalambet/pagewise/internal/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	temps   []float64
	gate    string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, req engine.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	f.temps = append(f.temps, req.Temperature)
	if f.err != nil {
		return "", f.err
	}
	if strings.HasPrefix(req.Prompt, "You are evaluating") {
		return f.gate, nil
	}
	return "  generated answer\n", nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeWeb struct {
	calls   int
	results []websearch.Result
	err     error
}

func (f *fakeWeb) Search(_ context.Context, _ string, _ websearch.Options) ([]websearch.Result, error) {
	f.calls++
	return f.results, f.err
}

type fakeEmbedder struct {
	err error
}

// Embed maps text to letter counts plus a constant so vectors are never zero.
func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 27)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		v[26] = 0.01
		out[i] = v
	}
	return out, nil
}

type fixture struct {
	svc   *Service
	store *storage.Store
	llm   *fakeLLM
	web   *fakeWeb
	emb   *fakeEmbedder
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	idx, err := retrieval.NewIndexStore(IndexDir(dir))
	require.NoError(t, err)

	f := &fixture{store: store, llm: &fakeLLM{gate: "YES"}, web: &fakeWeb{}, emb: &fakeEmbedder{}, dir: dir}
	f.svc = New(store, retrieval.NewRetriever(retrieval.NewEmbedder(f.emb), idx), f.llm, f.web, Options{DataDir: dir})
	return f
}

const (
	page1 = "Project Falcon launches on March 3 from the northern site."
	page2 = "The total budget for Project Falcon is four million euros."
)

func (f *fixture) ingest(t *testing.T) IngestResult {
	t.Helper()
	res, err := f.svc.Ingest(context.Background(), IngestInput{
		Name:     "Falcon",
		FileName: "falcon.pdf",
		Body:     bytes.NewReader(documenttest.PDF(t, page1, page2)),
	})
	require.NoError(t, err)
	return res
}

func TestIngest_CreatesNotebook(t *testing.T) {
	f := newFixture(t)
	data := documenttest.PDF(t, page1, page2)

	res, err := f.svc.Ingest(context.Background(), IngestInput{Name: "Falcon", FileName: "falcon.PDF", Body: bytes.NewReader(data)})
	require.NoError(t, err)

	pages, err := document.ExtractPages(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	chunks, err := document.Split(pages, "falcon.PDF", document.NewSplitter(1000, 200))
	require.NoError(t, err)
	assert.Equal(t, len(chunks), res.ChunkCount)
	assert.Equal(t, "falcon.PDF", res.FileName)
	assert.NotEmpty(t, res.SessionID)

	nb, err := f.store.GetNotebook(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Falcon", nb.Name)
	assert.Equal(t, 1, nb.SourcesCount)
	assert.Equal(t, res.ChunkCount, nb.ChunkCount)

	assert.FileExists(t, filepath.Join(PDFDir(f.dir), res.SessionID, "falcon.PDF"))
	assert.DirExists(t, filepath.Join(IndexDir(f.dir), res.SessionID))
}

func TestIngest_RejectsNonPDF(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Name: "n", FileName: "notes.txt", Body: strings.NewReader("hi")})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, statErr := os.Stat(PDFDir(f.dir))
	assert.True(t, os.IsNotExist(statErr), "no pdf dir should be created")
}

func TestIngest_RequiresName(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ingest(context.Background(), IngestInput{Name: " ", FileName: "a.pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func assertNothingPersisted(t *testing.T, f *fixture) {
	t.Helper()
	list, err := f.store.ListNotebooks()
	require.NoError(t, err)
	assert.Empty(t, list)

	entries, _ := os.ReadDir(PDFDir(f.dir))
	assert.Empty(t, entries, "pdf dirs left behind")
	entries, _ = os.ReadDir(IndexDir(f.dir))
	assert.Empty(t, entries, "index dirs left behind")
}

func TestIngest_BlankDocumentCleansUp(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Name: "blank", FileName: "blank.pdf", Body: bytes.NewReader(documenttest.PDF(t, ""))})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assertNothingPersisted(t, f)
}

func TestIngest_CorruptPDFCleansUp(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Name: "bad", FileName: "bad.pdf", Body: strings.NewReader("not a pdf at all")})
	require.Error(t, err)
	assertNothingPersisted(t, f)
}

func TestIngest_EmbeddingFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.emb.err = errors.New("invalid api key")

	_, err := f.svc.Ingest(context.Background(), IngestInput{Name: "x", FileName: "x.pdf", Body: bytes.NewReader(documenttest.PDF(t, page1))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assertNothingPersisted(t, f)
}

func TestQuery_UnknownNotebook(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Query(context.Background(), "no-such-id", "anything?")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.llm.calls())
}

func TestQuery_MissingIndexIsNotFound(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	_, err := f.svc.Query(context.Background(), res.SessionID, "when?")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(IndexDir(f.dir), res.SessionID)))

	_, err = f.svc.Query(context.Background(), res.SessionID, "when?")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuery_MissingIndexWithEmbedderDown(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	require.NoError(t, os.RemoveAll(filepath.Join(IndexDir(f.dir), res.SessionID)))
	f.emb.err = errors.New("embedding service unavailable")

	_, err := f.svc.Query(context.Background(), res.SessionID, "when?")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.llm.calls())
}

func TestQuery_EmptyQuestion(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)

	_, err := f.svc.Query(context.Background(), res.SessionID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQuery_AnswersFromDocument(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)

	ans, err := f.svc.Query(context.Background(), res.SessionID, "When does Project Falcon launch?")
	require.NoError(t, err)

	assert.Equal(t, SourcePDF, ans.Source)
	assert.Equal(t, "generated answer", ans.Answer)
	assert.True(t, ans.CanAnswer)
	assert.Equal(t, "fake-model", ans.Model)
	assert.Equal(t, res.ChunkCount, ans.ChunksUsed)
	assert.Nil(t, ans.WebSources)
	require.NotEmpty(t, ans.PDFSources)
	for _, src := range ans.PDFSources {
		assert.Equal(t, "falcon.pdf", src.FileName)
		assert.Equal(t, src.PageStart, src.PageEnd)
	}
	assert.Contains(t, ans.PDFSources, PDFSource{FileName: "falcon.pdf", PageStart: 1, PageEnd: 1})
	assert.Zero(t, f.web.calls)

	require.Equal(t, 2, f.llm.calls())
	assert.Contains(t, f.llm.prompts[0], "March 3")
	assert.Contains(t, f.llm.prompts[1], "Context from PDF:")
	assert.Equal(t, []float64{0, 0}, f.llm.temps, "gate and answer run deterministically")
}

func TestQuery_GateIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	f.llm.gate = "yes, it does"

	ans, err := f.svc.Query(context.Background(), res.SessionID, "budget?")
	require.NoError(t, err)
	assert.Equal(t, SourcePDF, ans.Source)
}

func TestQuery_FallsBackToWeb(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	f.llm.gate = "NO"
	f.web.results = []websearch.Result{
		{Title: "A", URL: "https://a.example", Content: "alpha"},
		{Title: "B", URL: "https://b.example", Content: "beta"},
		{Title: "C", URL: "https://c.example", Content: "gamma"},
		{Title: "D", URL: "https://d.example", Content: "delta"},
	}

	ans, err := f.svc.Query(context.Background(), res.SessionID, "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, SourceWeb, ans.Source)
	assert.False(t, ans.CanAnswer)
	assert.Nil(t, ans.PDFSources)
	assert.Zero(t, ans.ChunksUsed)
	require.Len(t, ans.WebSources, 3)
	assert.Equal(t, WebSource{Title: "A", URL: "https://a.example", Snippet: "alpha"}, ans.WebSources[0])
	assert.Equal(t, 1, f.web.calls)
	assert.Contains(t, f.llm.prompts[len(f.llm.prompts)-1], "Title: C\nURL: https://c.example\nContent: gamma")
	assert.Equal(t, []float64{0, 0}, f.llm.temps, "gate and web answer run deterministically")
}

func TestQuery_WebFailureIsNoInformation(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	f.llm.gate = "NO"
	f.web.err = errors.New("tavily down")

	_, err := f.svc.Query(context.Background(), res.SessionID, "unrelated?")
	assert.ErrorIs(t, err, ErrNoInformation)
	assert.Equal(t, 1, f.llm.calls(), "only the gate should have run")
}

func TestQuery_CompletionErrorPropagates(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	f.llm.err = errors.New("upstream 500")

	_, err := f.svc.Query(context.Background(), res.SessionID, "when?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")
}

func TestSufficient_EmptyContextSkipsModel(t *testing.T) {
	f := newFixture(t)

	ok, err := f.svc.sufficient(context.Background(), "q", " \n\n ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, f.llm.calls())
}

func TestPDFSources_DedupAndCap(t *testing.T) {
	chunk := func(file string, page int) retrieval.ScoredChunk {
		return retrieval.ScoredChunk{Chunk: document.Chunk{FileName: file, PageStart: page, PageEnd: page}}
	}
	chunks := []retrieval.ScoredChunk{
		chunk("a.pdf", 3), chunk("a.pdf", 3), chunk("a.pdf", 1),
		chunk("b.pdf", 3), chunk("a.pdf", 1), chunk("c.pdf", 9),
	}

	got := pdfSources(chunks, 10)
	assert.Equal(t, []PDFSource{
		{FileName: "a.pdf", PageStart: 3, PageEnd: 3},
		{FileName: "a.pdf", PageStart: 1, PageEnd: 1},
		{FileName: "b.pdf", PageStart: 3, PageEnd: 3},
		{FileName: "c.pdf", PageStart: 9, PageEnd: 9},
	}, got)

	assert.Len(t, pdfSources(chunks, 2), 2)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, res.SessionID))
	assert.NoDirExists(t, filepath.Join(PDFDir(f.dir), res.SessionID))
	assert.NoDirExists(t, filepath.Join(IndexDir(f.dir), res.SessionID))

	_, err := f.svc.Query(ctx, res.SessionID, "when?")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, res.SessionID), ErrNotFound)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpenFile(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)
	ctx := context.Background()

	file, err := f.svc.OpenFile(ctx, res.SessionID, "falcon.pdf")
	require.NoError(t, err)
	head := make([]byte, 5)
	_, err = file.Read(head)
	file.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(head))

	for _, name := range []string{"../../db.sqlite", ".", "..", "/", "missing.pdf"} {
		_, err := f.svc.OpenFile(ctx, res.SessionID, name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q", name)
	}
	_, err = f.svc.OpenFile(ctx, "../"+res.SessionID, "falcon.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.OpenFile(ctx, "unknown", "falcon.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.ingest(t)
	second := f.ingest(t)

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.SessionID, list[0].ID)
	assert.Equal(t, first.SessionID, list[1].ID)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(t)

	nb, err := f.svc.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Falcon", nb.Name)

	_, err = f.svc.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}
