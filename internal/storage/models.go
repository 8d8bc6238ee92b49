package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Notebook is the metadata row of one ingested session. Its index and stored
// files live on disk under the same ID.
type Notebook struct {
	ID           string
	Name         string
	FileName     string
	CreatedAt    time.Time
	SourcesCount int
	ChunkCount   int
}
