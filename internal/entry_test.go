package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/testutil"
)

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(dir, "tribuna.db")

	good := filepath.Join(dir, "good.json")
	at := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	_ = os.WriteFile(good, testutil.Payload(testutil.SampleNumber, testutil.Mov{Code: 26, Name: "Distribuição", At: at}), 0o644)
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("[]"), 0o644)
	missing := filepath.Join(dir, "missing.json")

	results, err := ImportFiles(context.Background(), []string{good, bad, missing}, WithConfig(cfg), WithLogOutput(os.Stderr))
	if err != nil {
		t.Fatalf("ImportFiles: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Err != nil || results[0].Result.Added != 1 {
		t.Errorf("good = %+v", results[0])
	}
	if !errors.Is(results[1].Err, apperr.ErrInvalidInput) {
		t.Errorf("bad err = %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, os.ErrNotExist) {
		t.Errorf("missing err = %v", results[2].Err)
	}

	// Importing again finds the same payload.
	results, _ = ImportFiles(context.Background(), []string{good}, WithConfig(cfg))
	if results[0].Err != nil || !results[0].Result.Unchanged {
		t.Errorf("re-import = %+v", results[0])
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("expected error without config")
	}
}
