// Package testutil provides shared test helpers for databases and Datajud payloads.
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/datajud"
	"github.com/starford/tribuna/internal/store"
)

// SampleNumber is a TJSP case number.
const SampleNumber = "00012345620248260100"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tribuna-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Mov is a movement as it appears in a Datajud payload.
type Mov struct {
	Code int
	Name string
	At   time.Time
}

// Payload renders a minimal Datajud _search response for number.
func Payload(number string, movs ...Mov) []byte {
	items := make([]map[string]any, len(movs))
	for i, m := range movs {
		items[i] = map[string]any{
			"codigo":   m.Code,
			"nome":     m.Name,
			"dataHora": m.At.UTC().Format(time.RFC3339),
		}
	}
	doc := map[string]any{
		"hits": map[string]any{
			"hits": []any{
				map[string]any{"_source": map[string]any{
					"numeroProcesso": number,
					"tribunal":       "TJSP",
					"classe":         map[string]any{"codigo": 7, "nome": "Procedimento Comum Cível"},
					"sistema":        map[string]any{"codigo": 1, "nome": "SAJ"},
					"movimentos":     items,
				}},
			},
		},
	}
	out, _ := json.Marshal(doc)
	return out
}

// FakeFetcher serves canned payloads keyed by normalized number.
type FakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	calls    int
	Err      error
	Delay    time.Duration
}

// NewFakeFetcher creates an empty FakeFetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{payloads: make(map[string][]byte)}
}

// Set registers the payload returned for number.
func (f *FakeFetcher) Set(number string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[number] = payload
}

// Calls returns how many lookups were made.
func (f *FakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Lookup implements datajud.Fetcher.
func (f *FakeFetcher) Lookup(ctx context.Context, number string) (*datajud.Process, error) {
	f.mu.Lock()
	f.calls++
	payload, ok := f.payloads[number]
	err, delay := f.Err, f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return datajud.Decode(payload)
}
