package present

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vondutchi/vondutch-patcher/internal/session"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC800"))
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// Addresses renders a Scan Result's address entries as an aligned
// table: address, label, still_valid, current_value.
func Addresses(entries []session.AddressEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no addresses")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-18s %-24s %-10s %s", "ADDRESS", "LABEL", "VALID", "VALUE")))
	b.WriteString("\n")
	for _, e := range entries {
		valid := "-"
		if e.StillValid != nil {
			if *e.StillValid {
				valid = "true"
			} else {
				valid = "false"
			}
		}
		value := "-"
		if e.CurrentValue != nil {
			value = fmt.Sprintf("%v", *e.CurrentValue)
		}
		row := fmt.Sprintf("%-18s %-24s %-10s %s", Address(e.Address), e.Label, valid, value)
		b.WriteString(cellStyle.Render(row))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Signatures renders a Scan Result's signature entries with the hex
// byte dump colorized.
func Signatures(entries []session.SignatureEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no signatures")
	}
	var b strings.Builder
	for _, s := range entries {
		b.WriteString(fmt.Sprintf("%s start=0x%X mask=%s pattern=%s\n",
			Address(s.Address), s.Start, s.Mask, HexBytes(s.Pattern)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// References renders each reference chain as an arrow-joined path.
func References(entries []session.ReferenceEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no references")
	}
	var b strings.Builder
	for _, r := range entries {
		b.WriteString(strings.Join(r.Chain, " -> "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
