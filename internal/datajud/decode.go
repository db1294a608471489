// Package datajud talks to the CNJ Datajud public API and decodes its
// _search responses into docket movements.
package datajud

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/checksum"
	"github.com/starford/tribuna/internal/cnj"
	"github.com/starford/tribuna/internal/movement"
)

// Process is the subset of a Datajud hit that tribuna keeps.
type Process struct {
	Number      string              `json:"number"`
	Tribunal    string              `json:"tribunal"`
	Class       string              `json:"class,omitempty"`
	Court       string              `json:"court,omitempty"`
	System      string              `json:"system,omitempty"`
	FiledAt     *time.Time          `json:"filed_at,omitempty"`
	Movements   []movement.Movement `json:"movements"`
	PayloadHash string              `json:"-"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source source `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type named struct {
	Codigo int    `json:"codigo"`
	Nome   string `json:"nome"`
}

type source struct {
	NumeroProcesso  string      `json:"numeroProcesso"`
	Tribunal        string      `json:"tribunal"`
	DataAjuizamento string      `json:"dataAjuizamento"`
	Classe          named       `json:"classe"`
	Sistema         named       `json:"sistema"`
	OrgaoJulgador   named       `json:"orgaoJulgador"`
	Movimentos      []movimento `json:"movimentos"`
}

type movimento struct {
	Codigo                int             `json:"codigo"`
	Nome                  string          `json:"nome"`
	DataHora              string          `json:"dataHora"`
	ComplementosTabelados json.RawMessage `json:"complementosTabelados"`
}

// Layouts seen in dataHora and dataAjuizamento across tribunals.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102150405",
	"2006-01-02",
}

// ParseTime parses a Datajud timestamp. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("datajud: unrecognised timestamp %q", s)
}

// Decode parses a _search response. When several hits are returned the
// first one wins; Datajud may index the same process once per grade.
// Movements with unparseable dates are skipped.
func Decode(payload []byte) (*Process, error) {
	var resp searchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("datajud: decode: %w: %w", apperr.ErrInvalidInput, err)
	}
	if len(resp.Hits.Hits) == 0 {
		return nil, fmt.Errorf("datajud: no hits: %w", apperr.ErrNotFound)
	}
	src := resp.Hits.Hits[0].Source

	p := &Process{
		Number:      cnj.Normalize(src.NumeroProcesso),
		Tribunal:    src.Tribunal,
		Class:       src.Classe.Nome,
		Court:       src.OrgaoJulgador.Nome,
		System:      src.Sistema.Nome,
		PayloadHash: checksum.SumJSON(payload),
	}
	if src.DataAjuizamento != "" {
		if t, err := ParseTime(src.DataAjuizamento); err == nil {
			p.FiledAt = &t
		}
	}

	p.Movements = make([]movement.Movement, 0, len(src.Movimentos))
	for _, mv := range src.Movimentos {
		date, err := ParseTime(mv.DataHora)
		if err != nil {
			continue
		}
		p.Movements = append(p.Movements, movement.Movement{
			Code:         mv.Codigo,
			Name:         strings.TrimSpace(mv.Nome),
			Date:         date,
			Supplement:   supplementText(mv.ComplementosTabelados),
			SourceSystem: p.System,
		})
	}
	return p, nil
}

// supplementText compacts the complements array; absent or empty arrays
// yield "".
func supplementText(raw json.RawMessage) string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return ""
	}
	out, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(out)
}
