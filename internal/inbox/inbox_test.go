package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/storage"
	"github.com/starford/tribuna/internal/testutil"
)

var at = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// inboxTestEnv sets up an inbox dir, storage and a service over a temp DB.
func inboxTestEnv(t *testing.T) (string, *Inbox, *caseservice.Service) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "inbox")
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := caseservice.NewService(testutil.TestDB(t), nil, caseservice.WithLogger(logger))
	return dir, New(files, svc, logger), svc
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestScan(t *testing.T) {
	dir, in, svc := inboxTestEnv(t)
	good := testutil.Payload(testutil.SampleNumber, testutil.Mov{Code: 26, Name: "Distribuição", At: at})
	_ = os.WriteFile(filepath.Join(dir, "good.json"), good, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"hits":{"hits":[]}}`), 0o644)

	counts, err := in.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if counts[Imported] != 1 || counts[Rejected] != 2 {
		t.Errorf("counts = %v", counts)
	}
	if !exists(filepath.Join(dir, ProcessedDir, "good.json")) {
		t.Error("good.json not moved to processed/")
	}
	if !exists(filepath.Join(dir, FailedDir, "bad.json")) || !exists(filepath.Join(dir, FailedDir, "empty.json")) {
		t.Error("rejected files not moved to failed/")
	}

	cases, total, _ := svc.ListCases(context.Background(), 10, 0)
	if total != 1 || cases[0].Number != testutil.SampleNumber || cases[0].Unread != 1 {
		t.Errorf("cases = %+v", cases)
	}
}

func TestProcess_MissingFileSkipped(t *testing.T) {
	_, in, _ := inboxTestEnv(t)
	out, err := in.Process(context.Background(), "gone.json")
	if err != nil || out != Skipped {
		t.Errorf("Process = %v, %v", out, err)
	}
}

func TestWatch_ImportsNewFile(t *testing.T) {
	dir, in, svc := inboxTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = in.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)
	payload := testutil.Payload(testutil.SampleNumber,
		testutil.Mov{Code: 26, Name: "Distribuição", At: at},
		testutil.Mov{Code: 51, Name: "Audiência", At: at.Add(time.Hour)})
	_ = os.WriteFile(filepath.Join(dir, "drop.json"), payload, 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return exists(filepath.Join(dir, ProcessedDir, "drop.json"))
	}, "dropped file not processed by watcher")

	_, total, _ := svc.ListCases(context.Background(), 10, 0)
	if total != 1 {
		t.Errorf("total cases = %d", total)
	}
}
