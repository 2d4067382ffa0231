// Package quotes rewrites typographic quotation marks into straight ones.
//
// Double curly quotes become single straight quotes and single curly quotes
// become double straight quotes, except that a right single curly quote used
// as an apostrophe stays a single straight quote.
package quotes

import (
	"strings"
	"unicode"
)

const (
	leftDouble  = '“'
	rightDouble = '”'
	leftSingle  = '‘'
	rightSingle = '’'
)

// Normalize maps curly quotes to straight quotes in a single pass. Runs in
// O(n) and never looks more than one rune either side.
func Normalize(text string) string {
	runes := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text))

	for i, r := range runes {
		switch r {
		case leftDouble, rightDouble:
			sb.WriteByte('\'')
		case leftSingle:
			sb.WriteByte('"')
		case rightSingle:
			prev, next := ' ', ' '
			if i > 0 {
				prev = runes[i-1]
			}
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if isApostrophe(prev, next) {
				sb.WriteByte('\'')
			} else {
				sb.WriteByte('"')
			}
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// isApostrophe classifies a right single quote from its neighbours: inside a
// word (don't) or after a trailing s (readers' ).
func isApostrophe(prev, next rune) bool {
	if unicode.IsLetter(prev) && unicode.IsLetter(next) {
		return true
	}
	return (prev == 's' || prev == 'S') && !isAlnum(next)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
