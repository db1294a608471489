package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/tribuna/internal/cnj"
)

// TribunalsURI identifies the tribunal table resource.
const TribunalsURI = "tribuna://tribunals"

// TribunalTable renders the CNJ tribunal table as Markdown.
func TribunalTable() string {
	var b strings.Builder
	b.WriteString("# CNJ tribunal codes\n\n")
	b.WriteString("Digits 15-16 of a 20-digit CNJ number (NNNNNNN-DD.AAAA.J.TR.OOOO) select the tribunal.\n")
	b.WriteString("Unlisted codes resolve to `TR<code>`; malformed numbers resolve to `N/A`.\n\n")
	b.WriteString("| Code | Abbreviation | Name | Branch | Datajud alias |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, d := range cnj.Tribunals() {
		alias := d.Alias
		if alias == "" {
			alias = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", d.Code, d.Abbreviation, d.DisplayName, d.Kind, alias)
	}
	return b.String()
}
