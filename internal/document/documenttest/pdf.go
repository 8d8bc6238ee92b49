// Package documenttest builds small PDFs for tests.
package documenttest

import (
	"bytes"
	"testing"

	"github.com/go-pdf/fpdf"
)

// PDF returns an uncompressed PDF with one page per argument. Each line of
// a page's text is drawn as its own text object.
func PDF(t testing.TB, pages ...string) []byte {
	t.Helper()

	f := fpdf.New("P", "mm", "A4", "")
	f.SetCompression(false)
	f.SetFont("Helvetica", "", 11)
	for _, page := range pages {
		f.AddPage()
		y := 20.0
		for _, line := range bytes.Split([]byte(page), []byte("\n")) {
			if len(line) > 0 {
				f.Text(15, y, string(line))
			}
			y += 6
		}
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		t.Fatalf("rendering pdf: %v", err)
	}
	return buf.Bytes()
}
