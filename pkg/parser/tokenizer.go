package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var continuation = regexp.MustCompile(`\\\r?\n`)

// FoldContinuations replaces backslash-newline line continuations with a
// single space.
func FoldContinuations(input string) string {
	return continuation.ReplaceAllString(input, " ")
}

// Tokenize splits a command line into shell-style words, respecting single and
// double quotes. Inside double quotes a backslash takes the next character
// literally; inside single quotes and outside quotes it is an ordinary
// character. A quoted empty string ('' or "") yields an empty word. An
// unterminated quote is not an error: the pending word is flushed at end of
// input.
func Tokenize(input string) []string {
	input = FoldContinuations(input)

	var tokens []string
	var current strings.Builder
	pending := false
	inSingle, inDouble := false, false

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '\\' && inDouble && i+1 < len(runes) {
			i++
			current.WriteRune(runes[i])
			pending = true
			continue
		}

		if ch == '\'' && !inDouble {
			inSingle = !inSingle
			pending = true
			continue
		}
		if ch == '"' && !inSingle {
			inDouble = !inDouble
			pending = true
			continue
		}

		if !inSingle && !inDouble && unicode.IsSpace(ch) {
			if pending {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			pending = false
			continue
		}

		current.WriteRune(ch)
		pending = true
	}

	if pending {
		tokens = append(tokens, current.String())
	}

	return tokens
}
