// Package cnj resolves CNJ unified case numbers (NNNNNNN-DD.AAAA.J.TR.OOOO)
// to the tribunal that issued them.
package cnj

import "strings"

// Length is the number of digits in a canonical CNJ number.
const Length = 20

// Segment offsets into the digits-only form.
const (
	sequenceEnd = 7
	checkEnd    = 9
	yearEnd     = 13
	branchEnd   = 14
	tribunalEnd = 16
)

// Normalize strips every character that is not an ASCII digit.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Segments is a CNJ number split into its digit groups.
type Segments struct {
	Sequence string `json:"sequence"`
	Check    string `json:"check"`
	Year     string `json:"year"`
	Branch   string `json:"branch"`
	Tribunal string `json:"tribunal"`
	Origin   string `json:"origin"`
}

// Split returns the digit groups of raw. ok is false when raw does not
// normalize to at least Length digits. Digits past Length are ignored.
func Split(raw string) (Segments, bool) {
	d := Normalize(raw)
	if len(d) < Length {
		return Segments{}, false
	}
	return Segments{
		Sequence: d[:sequenceEnd],
		Check:    d[sequenceEnd:checkEnd],
		Year:     d[checkEnd:yearEnd],
		Branch:   d[yearEnd:branchEnd],
		Tribunal: d[branchEnd:tribunalEnd],
		Origin:   d[tribunalEnd:Length],
	}, true
}

// Format renders raw in the masked form 0001234-56.2024.8.26.0100.
// Inputs shorter than Length digits are returned normalized but unmasked.
func Format(raw string) string {
	s, ok := Split(raw)
	if !ok {
		return Normalize(raw)
	}
	return s.Sequence + "-" + s.Check + "." + s.Year + "." + s.Branch + "." + s.Tribunal + "." + s.Origin
}

// Valid reports whether raw normalizes to exactly Length digits.
func Valid(raw string) bool {
	return len(Normalize(raw)) == Length
}
