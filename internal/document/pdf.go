// Package document turns uploaded PDFs into page-tagged text chunks.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a document has no extractable text on any page.
var ErrNoText = errors.New("document contains no extractable text")

// Page is the plain text of one 1-based page.
type Page struct {
	Number int
	Text   string
}

// ExtractPages reads every page of the PDF in r. Pages without text are
// omitted; a document where every page is empty yields ErrNoText.
func ExtractPages(r io.ReaderAt, size int64) (pages []Page, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("reading pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	n := reader.NumPage()
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

// ExtractFile is ExtractPages for a file on disk.
func ExtractFile(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ExtractPages(f, st.Size())
}
