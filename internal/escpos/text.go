package escpos

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Substitutions maps glyphs the active code page cannot print to ASCII.
// Currency glyphs become their ISO code so amounts stay unambiguous.
var Substitutions = map[rune]string{
	'₦':      "NGN",
	'€':      "EUR",
	'£':      "GBP",
	'¥':      "JPY",
	'₹':      "INR",
	'₵':      "GHS",
	'₩':      "KRW",
	'₽':      "RUB",
	'¢':      "c",
	'‘':      "'",
	'’':      "'",
	'‚':      ",",
	'“':      `"`,
	'”':      `"`,
	'„':      `"`,
	'–':      "-",
	'—':      "-",
	'−':      "-",
	'…':      "...",
	'•':      "*",
	'×':      "x",
	'\u00a0': " ",
	'\t':     " ",
	'ß':      "ss",
	'Æ':      "AE",
	'æ':      "ae",
	'Ø':      "O",
	'ø':      "o",
	'Œ':      "OE",
	'œ':      "oe",
}

// Replacement stands in for anything else outside printable ASCII.
const Replacement = '?'

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize returns s using only printable ASCII.
func Sanitize(s string) string {
	if isPrintableASCII(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 0x20 && r < 0x7F:
			b.WriteRune(r)
		case Substitutions[r] != "":
			b.WriteString(Substitutions[r])
		default:
			b.WriteRune(fold(r))
		}
	}
	return b.String()
}

// CurrencyPrefix renders a currency symbol as a printable amount prefix.
func CurrencyPrefix(symbol string) string {
	symbol = strings.TrimSpace(Sanitize(symbol))
	if symbol == "" {
		return ""
	}
	if len(symbol) > 1 {
		return symbol + " "
	}
	return symbol
}

func fold(r rune) rune {
	out, _, err := transform.String(stripMarks, string(r))
	if err != nil {
		return Replacement
	}
	rs := []rune(out)
	if len(rs) == 1 && rs[0] >= 0x20 && rs[0] < 0x7F {
		return rs[0]
	}
	return Replacement
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] >= 0x7F {
			return false
		}
	}
	return true
}

// Wrap splits s into lines of at most width runes, breaking on spaces where
// possible and hard-splitting words longer than a line.
func Wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, w := range words {
		for len(w) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, w[:width])
			w = w[width:]
		}
		switch {
		case cur == "":
			cur = w
		case len(cur)+1+len(w) <= width:
			cur += " " + w
		default:
			lines = append(lines, cur)
			cur = w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// Columns left-aligns left and right-aligns right within width. The left
// side is truncated so right never moves.
func Columns(left, right string, width int) string {
	room := width - len(right) - 1
	if room < 0 {
		room = 0
	}
	if len(left) > room {
		left = left[:room]
	}
	pad := width - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}
