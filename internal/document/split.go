package document

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is one window of page text with its provenance. Chunks never span
// pages, so PageStart and PageEnd are equal for chunks produced by Split.
type Chunk struct {
	Text      string
	FileName  string
	PageStart int
	PageEnd   int
}

// NewSplitter returns the recursive character splitter used for ingestion:
// paragraph, line, then word boundaries, measuring size in runes.
func NewSplitter(size, overlap int) textsplitter.TextSplitter {
	if overlap >= size {
		overlap = size / 5
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}

// Split windows each page independently and tags every window with the file
// name and page number. Whitespace-only windows are dropped.
func Split(pages []Page, fileName string, sp textsplitter.TextSplitter) ([]Chunk, error) {
	var chunks []Chunk
	for _, p := range pages {
		parts, err := sp.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting page %d: %w", p.Number, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Text:      part,
				FileName:  fileName,
				PageStart: p.Number,
				PageEnd:   p.Number,
			})
		}
	}
	return chunks, nil
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
