// Package janitor removes notebook files left behind by interrupted
// ingestions: stored PDFs and indexes with no notebook row, and stale
// partial index builds.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kalambet/pagewise/internal/retrieval"
)

// NotebookLister reports the IDs of all recorded notebooks.
type NotebookLister interface {
	NotebookIDs() (map[string]struct{}, error)
}

// Report summarizes one sweep.
type Report struct {
	Scanned int
	Removed []string
}

// Janitor sweeps per-notebook directories under a set of roots. Every
// immediate subdirectory of a root is named after a notebook ID, optionally
// with the partial-build suffix.
type Janitor struct {
	store  NotebookLister
	roots  []string
	grace  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Janitor. Directories younger than grace are never removed, so
// ingestions still in flight are left alone.
func New(store NotebookLister, grace time.Duration, roots ...string) *Janitor {
	return &Janitor{
		store:  store,
		roots:  roots,
		grace:  grace,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// Sweep removes every orphaned directory older than the grace period.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	ids, err := j.store.NotebookIDs()
	if err != nil {
		return Report{}, fmt.Errorf("listing notebooks: %w", err)
	}

	var rep Report
	var errs []error
	cutoff := j.now().Add(-j.grace)
	for _, root := range j.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			if !e.IsDir() {
				continue
			}
			rep.Scanned++

			name := e.Name()
			id, partial := strings.CutSuffix(name, retrieval.PartialSuffix)
			if _, known := ids[id]; known && !partial {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}

			path := filepath.Join(root, name)
			if err := os.RemoveAll(path); err != nil {
				errs = append(errs, err)
				continue
			}
			rep.Removed = append(rep.Removed, path)
			j.logger.Info("janitor: removed orphan", "path", path)
		}
	}
	return rep, errors.Join(errs...)
}

// Schedule registers a sweep on c using a cron spec such as "@every 15m".
func (j *Janitor) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		rep, err := j.Sweep(context.Background())
		if err != nil {
			j.logger.Warn("janitor sweep failed", "error", err)
		}
		j.logger.Debug("janitor sweep done", "scanned", rep.Scanned, "removed", len(rep.Removed))
	})
	if err != nil {
		return 0, fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	return id, nil
}

// NewCron returns a scheduler that logs through slog and never overlaps runs
// of the same job.
func NewCron(logger *slog.Logger) *cron.Cron {
	if logger == nil {
		logger = slog.Default()
	}
	l := cronLogger{logger}
	return cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
