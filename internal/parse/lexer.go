// Package parse implements the minimal lexer and recursive-descent
// parser that satisfies spec.md §6's external `parse(text) →
// AST-or-null` contract: enough grammar to drive every internal/ast
// node internal/eval consumes (sequences, pipes, and/or, background,
// redirections, variable declarations, capture expressions, dynamic
// evaluation), reduced from the scanning shape of the teacher's
// internal/reader/lexer (token-at-a-time, rune-aware) to a single
// cursor over the whole line rather than a channel of tokens, since
// this grammar has no scripting-language blocks/methods/objects to
// suspend and resume across.
package parse

import (
	"strings"
	"unicode/utf8"

	"github.com/mltnhm/serenity/internal/ast"
)

// lexer scans runes from a fixed input string, tracking byte offset,
// line, and column for ast.Position.
type lexer struct {
	src    string
	offset int
	line   int
	column int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, column: 1}
}

func (l *lexer) pos() ast.Position {
	return ast.Position{Offset: l.offset, Line: l.line, Column: l.column}
}

func (l *lexer) eof() bool {
	return l.offset >= len(l.src)
}

func (l *lexer) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.offset:])

	return r
}

func (l *lexer) peekAt(ahead int) rune {
	save := l.offset

	var r rune

	for i := 0; i <= ahead; i++ {
		if save >= len(l.src) {
			return 0
		}

		var n int

		r, n = utf8.DecodeRuneInString(l.src[save:])
		save += n
	}

	return r
}

func (l *lexer) advance() rune {
	r, n := utf8.DecodeRuneInString(l.src[l.offset:])
	l.offset += n

	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}

	return r
}

// skipBlanks skips spaces and tabs (not newlines: those are sequence
// separators) and `#...` comments that run to end of line.
func (l *lexer) skipBlanks() {
	for !l.eof() {
		switch l.peek() {
		case ' ', '\t':
			l.advance()
		case '#':
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isWordBoundary(r rune) bool {
	switch r {
	case 0, ' ', '\t', '\n', '|', '&', ';', '<', '>', '(', ')':
		return true
	default:
		return false
	}
}

func isNameByte(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
