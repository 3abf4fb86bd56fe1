// Package present renders scan results to the terminal. It is
// intentionally kept outside the core internal/ packages: nothing in
// access, codec, search, snapshot, candidate, dynamic, tracer,
// signature, patch, or session imports it, so the engine never
// depends on how its output happens to be displayed.
package present

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// ColorDisabled mirrors the usual NO_COLOR convention.
func ColorDisabled() bool {
	return os.Getenv("MEMSCAN_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// HexBytes colorizes a signature's space-joined uppercase hex byte
// dump using the same lexer/style/formatter lookup chain the disasm
// colorizer uses, so the domain's own hex output shares that texture.
func HexBytes(pattern string) string {
	if ColorDisabled() || pattern == "" {
		return pattern
	}

	lexer := lexers.Get("nasm")
	if lexer == nil {
		return pattern
	}
	style := pickStyle("dracula", "monokai")
	formatter := pickFormatter("terminal16m", "terminal256")

	iterator, err := lexer.Tokenise(nil, pattern)
	if err != nil {
		return pattern
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return pattern
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func pickStyle(names ...string) *chroma.Style {
	for _, name := range names {
		if s := styles.Get(name); s != nil {
			return s
		}
	}
	return styles.Fallback
}

func pickFormatter(names ...string) chroma.Formatter {
	for _, name := range names {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// Address formats an address with a yellow accent, matching the
// disassembly colorizer's label coloring.
func Address(addr uint64) string {
	if ColorDisabled() {
		return fmt.Sprintf("0x%X", addr)
	}
	return fmt.Sprintf("\033[38;2;255;200;0m0x%X\033[0m", addr)
}

// Trend formats a candidate's still/increase/decrease marker: green
// for increases, red for decreases, gray for unchanged.
func Trend(symbol string) string {
	if ColorDisabled() {
		return symbol
	}
	switch symbol {
	case "+":
		return "\033[38;2;0;255;0m+\033[0m"
	case "-":
		return "\033[38;2;255;80;80m-\033[0m"
	default:
		return "\033[38;2;150;150;150m=\033[0m"
	}
}
