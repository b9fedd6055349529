// Package lexer rewrites host-environment text into JSON text.
//
// The host has no string escape character. A quote inside a string literal is
// written twice (""), and the literal may itself have been round-tripped
// through an outer quoted context, so quote runs of any length appear inside
// strings. Normalize resolves those runs into single-backslash escapes.
//
// The lexer does not validate structure. Unbalanced brackets or unterminated
// strings pass through and fail later when the output is parsed.
package lexer

import (
	"strings"

	"github.com/rivo/uniseg"
)

const (
	quote     = `"`
	backslash = `\`
	nullToken = "null"
)

// Host tokens that mean "no value" outside of strings.
var nilTokens = map[string]struct{}{
	"nil":    {},
	"<null>": {},
}

// Normalize returns raw with host quote-doubling converted to JSON escapes.
func Normalize(raw string) string {
	gs := graphemes(raw)

	var b strings.Builder
	b.Grow(len(raw) + len(raw)/8)

	inString := false
	for i := 0; i < len(gs); i++ {
		g := gs[i]
		if !inString {
			switch {
			case g == quote:
				if opensString(gs, i) {
					inString = true
				}
				b.WriteString(quote)
			case isTerminator(g) || isBlank(g):
				b.WriteString(g)
			default:
				i = writeBareToken(&b, gs, i)
			}
			continue
		}

		switch g {
		case quote:
			run := quoteRun(gs, i)
			next := nextSignificant(gs, i+run)
			switch {
			case run%2 == 0:
				writeEscapedQuotes(&b, run/2)
			case next == "" || isTerminator(next):
				writeEscapedQuotes(&b, (run-1)/2)
				b.WriteString(quote)
				inString = false
			default:
				writeEscapedQuotes(&b, run)
			}
			i += run - 1
		case backslash:
			if i+1 < len(gs) && gs[i+1] == backslash {
				i++
			}
			b.WriteString(`\\`)
		default:
			writeStringContent(&b, g)
		}
	}
	return b.String()
}

// graphemes splits raw into grapheme clusters. A quote or backslash is always
// its own element: a combining mark after it would otherwise join the cluster
// and hide the quote from the state machine.
func graphemes(raw string) []string {
	out := make([]string, 0, len(raw))
	gr := uniseg.NewGraphemes(raw)
	for gr.Next() {
		g := gr.Str()
		if len(g) > 1 && (g[0] == quote[0] || g[0] == backslash[0]) {
			out = append(out, g[:1], g[1:])
			continue
		}
		out = append(out, g)
	}
	return out
}

func isTerminator(g string) bool {
	return g == "[" || g == "]" || g == ","
}

func isBlank(g string) bool {
	switch g {
	case " ", "\t", "\n", "\r", "\r\n":
		return true
	}
	return false
}

// opensString reports whether the quote at i may start a string literal: only
// directly after a structural boundary or at the start of input.
func opensString(gs []string, i int) bool {
	prev := prevSignificant(gs, i)
	return prev == "" || isTerminator(prev)
}

func prevSignificant(gs []string, i int) string {
	for j := i - 1; j >= 0; j-- {
		if !isBlank(gs[j]) {
			return gs[j]
		}
	}
	return ""
}

func nextSignificant(gs []string, i int) string {
	for j := i; j < len(gs); j++ {
		if !isBlank(gs[j]) {
			return gs[j]
		}
	}
	return ""
}

func quoteRun(gs []string, i int) int {
	n := 0
	for j := i; j < len(gs) && gs[j] == quote; j++ {
		n++
	}
	return n
}

func writeEscapedQuotes(b *strings.Builder, n int) {
	for k := 0; k < n; k++ {
		b.WriteString(`\"`)
	}
}

// writeBareToken copies an unquoted token (number, boolean, nil) starting at i
// and returns the index of its last grapheme.
func writeBareToken(b *strings.Builder, gs []string, i int) int {
	end := i
	for end < len(gs) && !isTerminator(gs[end]) && !isBlank(gs[end]) && gs[end] != quote {
		end++
	}
	token := strings.Join(gs[i:end], "")
	if _, ok := nilTokens[token]; ok {
		b.WriteString(nullToken)
	} else {
		b.WriteString(token)
	}
	return end - 1
}

func writeStringContent(b *strings.Builder, g string) {
	switch g {
	case "\n":
		b.WriteString(`\n`)
	case "\r":
		b.WriteString(`\r`)
	case "\r\n":
		b.WriteString(`\r\n`)
	case "\t":
		b.WriteString(`\t`)
	default:
		if len(g) == 1 && g[0] < 0x20 {
			const hex = "0123456789abcdef"
			b.WriteString(`\u00`)
			b.WriteByte(hex[g[0]>>4])
			b.WriteByte(hex[g[0]&0x0f])
			return
		}
		b.WriteString(g)
	}
}
