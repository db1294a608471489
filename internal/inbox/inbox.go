// Package inbox imports Datajud payloads dropped into a watched directory.
package inbox

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/storage"
)

// Subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

const settleDelay = 200 * time.Millisecond

// Importer merges a raw payload. *caseservice.Service satisfies it.
type Importer interface {
	Import(ctx context.Context, payload []byte) (*caseservice.RefreshResult, error)
}

// Outcome is the fate of one inbox file.
type Outcome string

const (
	Imported Outcome = "imported"
	Rejected Outcome = "rejected"
	Skipped  Outcome = "skipped"
)

// Inbox moves payload files through import.
type Inbox struct {
	files    storage.Provider
	importer Importer
	logger   *slog.Logger
}

// New creates an Inbox.
func New(files storage.Provider, importer Importer, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{files: files, importer: importer, logger: logger}
}

// Process imports one file. Payloads that cannot be decoded go to failed/,
// imported ones to processed/. Other errors leave the file for a retry.
func (in *Inbox) Process(ctx context.Context, rel string) (Outcome, error) {
	data, err := in.files.Read(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return Skipped, nil
	}
	if err != nil {
		return Skipped, err
	}

	res, err := in.importer.Import(ctx, data)
	switch {
	case err == nil:
		if mvErr := in.files.Move(rel, filepath.Join(ProcessedDir, filepath.Base(rel))); mvErr != nil {
			return Imported, mvErr
		}
		in.logger.Info("inbox: imported",
			slog.String("path", rel),
			slog.String("case_id", res.CaseID),
			slog.Int("added", res.Added))
		return Imported, nil

	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrNotFound):
		in.logger.Warn("inbox: rejected", slog.String("path", rel), slog.String("error", err.Error()))
		if mvErr := in.files.Move(rel, filepath.Join(FailedDir, filepath.Base(rel))); mvErr != nil {
			return Rejected, mvErr
		}
		return Rejected, nil

	default:
		return Skipped, err
	}
}

// Scan processes every payload already waiting in the inbox.
func (in *Inbox) Scan(ctx context.Context) (map[Outcome]int, error) {
	files, err := in.files.List("")
	if err != nil {
		return nil, err
	}
	counts := make(map[Outcome]int)
	for _, f := range files {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		out, err := in.Process(ctx, f.Path)
		if err != nil {
			in.logger.Warn("inbox: process failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		}
		counts[out]++
	}
	return counts, nil
}

// Watch scans the inbox, then imports payloads as they appear until ctx
// is cancelled. Bursts of writes to a file are settled before import.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := in.files.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", root))

	if counts, err := in.Scan(ctx); err != nil {
		in.logger.Warn("inbox: startup scan failed", slog.String("error", err.Error()))
	} else if len(counts) > 0 {
		in.logger.Info("inbox: startup scan",
			slog.Int("imported", counts[Imported]),
			slog.Int("rejected", counts[Rejected]))
	}

	pending := make(map[string]struct{})
	var settle *time.Timer
	var settleCh <-chan time.Time
	schedule := func() {
		if settle == nil {
			settle = time.NewTimer(settleDelay)
			settleCh = settle.C
		} else {
			settle.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for rel := range pending {
				if _, err := in.Process(ctx, rel); err != nil {
					in.logger.Warn("inbox: process failed", slog.String("path", rel), slog.String("error", err.Error()))
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !storage.IsPayload(ev.Name) {
				continue
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil || filepath.Dir(rel) != "." {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
