package datajud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/tribuna/internal/apperr"
)

const samplePayload = `{
  "hits": {
    "total": {"value": 1},
    "hits": [{
      "_source": {
        "numeroProcesso": "00012345620248260100",
        "tribunal": "TJSP",
        "dataAjuizamento": "2024-01-10T00:00:00.000Z",
        "classe": {"codigo": 7, "nome": "Procedimento Comum Cível"},
        "sistema": {"codigo": 1, "nome": "SAJ"},
        "orgaoJulgador": {"codigo": 1, "nome": "1ª Vara Cível"},
        "movimentos": [
          {"codigo": 26, "nome": "Distribuição", "dataHora": "2024-01-10T10:00:00.000Z",
           "complementosTabelados": [{"codigo": 2, "valor": 1, "nome": "sorteio", "descricao": "tipo_de_distribuicao_redistribuicao"}]},
          {"codigo": 11010, "nome": " Mero expediente ", "dataHora": "2024-02-01T13:15:31"},
          {"codigo": 60, "nome": "Expedição de documento", "dataHora": "20240305090000"},
          {"codigo": 1, "nome": "sem data", "dataHora": "ontem"}
        ]
      }
    }]
  }
}`

func TestDecode(t *testing.T) {
	p, err := Decode([]byte(samplePayload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Number != "00012345620248260100" || p.Tribunal != "TJSP" || p.System != "SAJ" {
		t.Errorf("process = %+v", p)
	}
	if p.FiledAt == nil || !p.FiledAt.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("filed_at = %v", p.FiledAt)
	}
	if len(p.Movements) != 3 {
		t.Fatalf("movements = %d, want 3 (undated one skipped)", len(p.Movements))
	}
	first := p.Movements[0]
	if first.Code != 26 || first.SourceSystem != "SAJ" {
		t.Errorf("first = %+v", first)
	}
	var supp []map[string]any
	if err := json.Unmarshal([]byte(first.Supplement), &supp); err != nil || supp[0]["nome"] != "sorteio" {
		t.Errorf("supplement = %q (%v)", first.Supplement, err)
	}
	if p.Movements[1].Name != "Mero expediente" || p.Movements[1].Supplement != "" {
		t.Errorf("second = %+v", p.Movements[1])
	}
	if !p.Movements[2].Date.Equal(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("compact date = %v", p.Movements[2].Date)
	}
	if p.PayloadHash == "" {
		t.Error("payload hash missing")
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte(`{"hits":{"hits":[]}}`)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty hits err = %v, want ErrNotFound", err)
	}
	if _, err := Decode([]byte(`not json`)); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad json err = %v, want ErrInvalidInput", err)
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-01-10T10:00:00.000Z", "2024-01-10T07:00:00-03:00", "2024-01-10T10:00:00", "20240110100000"} {
		got, err := ParseTime(s)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", s, err)
			continue
		}
		if !got.Equal(time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("ParseTime(%q) = %v", s, got)
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientLookup(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, quietLogger())
	p, err := c.Lookup(context.Background(), "0001234-56.2024.8.26.0100")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotPath != "/api_publica_tjsp/_search" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "APIKey secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if !strings.Contains(gotBody, `"numeroProcesso":"00012345620248260100"`) {
		t.Errorf("body = %s", gotBody)
	}
	if len(p.Movements) != 3 {
		t.Errorf("movements = %d", len(p.Movements))
	}
}

func TestClientLookup_Rejections(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "", time.Second, quietLogger())
	for _, n := range []string{"", "1234", "N/A"} {
		if _, err := c.Lookup(context.Background(), n); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Lookup(%q) err = %v, want ErrInvalidInput", n, err)
		}
	}
	// STF (87) is not on Datajud; 99 is unmapped.
	for _, n := range []string{"00000000000000870000", "00000000000000990000"} {
		if _, err := c.Endpoint(n); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Endpoint(%q) err = %v, want ErrInvalidInput", n, err)
		}
	}
}

func TestClientLookup_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, quietLogger())
	if _, err := c.Lookup(context.Background(), "00012345620248260100"); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}
