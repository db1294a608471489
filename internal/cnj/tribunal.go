package cnj

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the branch of justice a tribunal belongs to.
type Kind string

const (
	KindState     Kind = "estadual"
	KindLabor     Kind = "trabalho"
	KindElectoral Kind = "eleitoral"
	KindFederal   Kind = "federal"
	KindSuperior  Kind = "superior"
)

// Degraded abbreviation returned for empty or short input.
const NotAvailable = "N/A"

const (
	nameUnidentified = "Não identificado"
	nameMalformed    = "Formato inválido"
)

// Descriptor names a tribunal.
type Descriptor struct {
	Code         string `json:"code,omitempty"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"display_name"`
	Kind         Kind   `json:"kind,omitempty"`
	// Alias is the Datajud index suffix (api_publica_<alias>); empty when the
	// tribunal is not published there.
	Alias string `json:"datajud_alias,omitempty"`
}

// Known reports whether d came from the tribunal table.
func (d Descriptor) Known() bool {
	return d.Kind != ""
}

// Label is the short badge followed by the long name.
func (d Descriptor) Label() string {
	if d.Abbreviation == d.DisplayName || d.DisplayName == "" {
		return d.Abbreviation
	}
	return d.Abbreviation + " - " + d.DisplayName
}

// ResolveTribunal maps raw to its tribunal. It never fails: empty input,
// input shorter than Length digits and unmapped codes each produce a
// recognisable descriptor instead.
func ResolveTribunal(raw string) Descriptor {
	d := Normalize(raw)
	switch {
	case d == "":
		return Descriptor{Abbreviation: NotAvailable, DisplayName: nameUnidentified}
	case len(d) < Length:
		return Descriptor{Abbreviation: NotAvailable, DisplayName: nameMalformed}
	}
	return Lookup(d[branchEnd:tribunalEnd])
}

// Lookup returns the descriptor for a two-digit tribunal code, or a
// synthesized "TR<code>" descriptor when the code is not mapped.
func Lookup(code string) Descriptor {
	if desc, ok := tribunals[code]; ok {
		return desc
	}
	return Descriptor{
		Code:         code,
		Abbreviation: "TR" + code,
		DisplayName:  "Tribunal " + code,
	}
}

// Tribunals returns every mapped tribunal ordered by code.
func Tribunals() []Descriptor {
	out := make([]Descriptor, 0, len(tribunals))
	for _, d := range tribunals {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Descriptor) int { return strings.Compare(a.Code, b.Code) })
	return out
}

type state struct {
	uf        string
	court     string // name used by the state court
	electoral string // name used by the electoral court
}

// Ordered as in the CNJ state court numbering.
var states = []state{
	{"AC", "do Acre", "do Acre"},
	{"AL", "de Alagoas", "de Alagoas"},
	{"AP", "do Amapá", "do Amapá"},
	{"AM", "do Amazonas", "do Amazonas"},
	{"BA", "da Bahia", "da Bahia"},
	{"CE", "do Ceará", "do Ceará"},
	{"DF", "do Distrito Federal e Territórios", "do Distrito Federal"},
	{"ES", "do Espírito Santo", "do Espírito Santo"},
	{"GO", "de Goiás", "de Goiás"},
	{"MA", "do Maranhão", "do Maranhão"},
	{"MT", "de Mato Grosso", "de Mato Grosso"},
	{"MS", "de Mato Grosso do Sul", "de Mato Grosso do Sul"},
	{"MG", "de Minas Gerais", "de Minas Gerais"},
	{"PA", "do Pará", "do Pará"},
	{"PB", "da Paraíba", "da Paraíba"},
	{"PR", "do Paraná", "do Paraná"},
	{"PE", "de Pernambuco", "de Pernambuco"},
	{"PI", "do Piauí", "do Piauí"},
	{"RJ", "do Rio de Janeiro", "do Rio de Janeiro"},
	{"RN", "do Rio Grande do Norte", "do Rio Grande do Norte"},
	{"RS", "do Rio Grande do Sul", "do Rio Grande do Sul"},
	{"RO", "de Rondônia", "de Rondônia"},
	{"RR", "de Roraima", "de Roraima"},
	{"SC", "de Santa Catarina", "de Santa Catarina"},
	{"SE", "de Sergipe", "de Sergipe"},
	{"SP", "de São Paulo", "de São Paulo"},
	{"TO", "do Tocantins", "do Tocantins"},
}

// Code ranges of the fixed table. 79 and 86 are unassigned.
const (
	firstState     = 1
	firstLabor     = 28
	laborCourts    = 24
	firstElectoral = 52
	firstFederal   = 80
	federalCourts  = 6
	firstSuperior  = 87
)

var superiors = []Descriptor{
	{Abbreviation: "STF", DisplayName: "Supremo Tribunal Federal"},
	{Abbreviation: "STJ", DisplayName: "Superior Tribunal de Justiça", Alias: "stj"},
	{Abbreviation: "TST", DisplayName: "Tribunal Superior do Trabalho", Alias: "tst"},
	{Abbreviation: "TSE", DisplayName: "Tribunal Superior Eleitoral", Alias: "tse"},
	{Abbreviation: "STM", DisplayName: "Superior Tribunal Militar", Alias: "stm"},
}

// tribunals is built once and never written afterwards.
var tribunals = buildTable()

func buildTable() map[string]Descriptor {
	t := make(map[string]Descriptor, 89)
	add := func(n int, d Descriptor) {
		d.Code = fmt.Sprintf("%02d", n)
		t[d.Code] = d
	}

	for i, s := range states {
		abbr, alias := "TJ"+s.uf, "tj"+strings.ToLower(s.uf)
		if s.uf == "DF" {
			abbr, alias = "TJDFT", "tjdft"
		}
		add(firstState+i, Descriptor{Abbreviation: abbr, DisplayName: "TJ " + s.court, Kind: KindState, Alias: alias})
	}
	for r := 1; r <= laborCourts; r++ {
		add(firstLabor+r-1, Descriptor{
			Abbreviation: fmt.Sprintf("TRT%d", r),
			DisplayName:  fmt.Sprintf("TRT da %dª Região", r),
			Kind:         KindLabor,
			Alias:        fmt.Sprintf("trt%d", r),
		})
	}
	for i, s := range states {
		alias := "tre-" + strings.ToLower(s.uf)
		if s.uf == "DF" {
			alias = "tre-dft"
		}
		add(firstElectoral+i, Descriptor{Abbreviation: "TRE-" + s.uf, DisplayName: "TRE " + s.electoral, Kind: KindElectoral, Alias: alias})
	}
	for r := 1; r <= federalCourts; r++ {
		add(firstFederal+r-1, Descriptor{
			Abbreviation: fmt.Sprintf("TRF%d", r),
			DisplayName:  fmt.Sprintf("TRF da %dª Região", r),
			Kind:         KindFederal,
			Alias:        fmt.Sprintf("trf%d", r),
		})
	}
	for i, d := range superiors {
		d.Kind = KindSuperior
		add(firstSuperior+i, d)
	}
	return t
}
