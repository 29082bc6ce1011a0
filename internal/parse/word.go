package parse

import (
	"fmt"
	"strings"

	"github.com/mltnhm/serenity/internal/ast"
)

// parseWord parses a maximal run of immediately-adjacent word parts
// (no intervening blanks), joining them with Juxtaposition the way
// `foo$bar"baz"` concatenates a bareword, a variable, and a quoted
// string into one value. Returns (nil, nil) when the cursor is not on
// a word at all.
func (p *parser) parseWord() (ast.Node, error) {
	var node ast.Node

	first := true

	for {
		if p.l.eof() || isWordBoundary(p.l.peek()) {
			break
		}

		part, consumed, err := p.parseWordPart(first)
		if err != nil {
			return nil, err
		}

		if !consumed {
			break
		}

		if node == nil {
			node = part
		} else {
			node = &ast.Juxtaposition{Position: node.Pos(), Left: node, Right: part}
		}

		first = false
	}

	return node, nil
}

// parseWordPart parses one part of a word starting at the cursor. It
// always consumes at least one rune when it returns consumed=true.
func (p *parser) parseWordPart(first bool) (ast.Node, bool, error) { //nolint:cyclop
	pos := p.l.pos()

	switch p.l.peek() {
	case '\'':
		text, err := p.scanSingleQuoted()
		if err != nil {
			return nil, false, err
		}

		return &ast.StringLiteral{Position: pos, Text: text}, true, nil

	case '"':
		inner, err := p.scanDoubleQuoted()
		if err != nil {
			return nil, false, err
		}

		return &ast.DoubleQuotedString{Position: pos, Inner: inner}, true, nil

	case '$':
		return p.parseDollar(pos)

	case '`':
		node, err := p.scanBacktick(pos)
		if err != nil {
			return nil, false, err
		}

		return node, true, nil

	case '~':
		if first {
			return p.parseTilde(pos), true, nil
		}

		return p.scanBareword(pos)

	default:
		return p.scanBareword(pos)
	}
}

// scanBareword consumes a maximal run of unquoted, non-special text
// (stopping at a word boundary, quote, `$`, backtick, or a literal
// `~` that would start a new tilde part) and classifies it as a glob
// pattern when it contains `*`, `?`, or `[`, a bareword literal
// otherwise. A backslash escapes the following rune literally.
func (p *parser) scanBareword(pos ast.Position) (ast.Node, bool, error) {
	var b strings.Builder

	for !p.l.eof() {
		r := p.l.peek()

		if isWordBoundary(r) || r == '\'' || r == '"' || r == '$' || r == '`' {
			break
		}

		if r == '\\' {
			p.l.advance()

			if p.l.eof() {
				return nil, false, fmt.Errorf("trailing backslash")
			}

			b.WriteRune(p.l.advance())

			continue
		}

		b.WriteRune(p.l.advance())
	}

	if b.Len() == 0 {
		return nil, false, nil
	}

	text := b.String()
	if hasGlobMeta(text) {
		return &ast.GlobPattern{Position: pos, Pattern: text}, true, nil
	}

	return &ast.BarewordLiteral{Position: pos, Text: text}, true, nil
}

func (p *parser) scanSingleQuoted() (string, error) {
	p.l.advance() // opening '

	var b strings.Builder

	for {
		if p.l.eof() {
			return "", fmt.Errorf("unterminated single-quoted string")
		}

		r := p.l.advance()
		if r == '\'' {
			return b.String(), nil
		}

		b.WriteRune(r)
	}
}

// scanDoubleQuoted scans the contents of a double-quoted string,
// building Inner as a nested ListConcatenate chain of the literal and
// interpolated parts so DoubleQuotedString's flatten-with-empty-
// separator reconstructs the original text (spec.md §4.1).
func (p *parser) scanDoubleQuoted() (ast.Node, error) { //nolint:cyclop
	p.l.advance() // opening "

	var (
		parts []ast.Node
		text  strings.Builder
	)

	flush := func() {
		if text.Len() == 0 {
			return
		}

		parts = append(parts, &ast.BarewordLiteral{Position: p.l.pos(), Text: text.String()})
		text.Reset()
	}

	for {
		if p.l.eof() {
			return nil, fmt.Errorf("unterminated double-quoted string")
		}

		switch p.l.peek() {
		case '"':
			p.l.advance()
			flush()

			return foldList(parts), nil

		case '\\':
			p.l.advance()

			if p.l.eof() {
				return nil, fmt.Errorf("trailing backslash")
			}

			text.WriteRune(p.l.advance())

		case '$':
			flush()

			pos := p.l.pos()

			part, consumed, err := p.parseDollar(pos)
			if err != nil {
				return nil, err
			}

			if consumed {
				parts = append(parts, part)
			}

		default:
			text.WriteRune(p.l.advance())
		}
	}
}

// foldList folds parts into a right-associative ListConcatenate
// chain, or CastToList{nil} (the empty list) when there are none.
func foldList(parts []ast.Node) ast.Node {
	if len(parts) == 0 {
		return &ast.CastToList{}
	}

	node := parts[len(parts)-1]
	for i := len(parts) - 2; i >= 0; i-- {
		node = &ast.ListConcatenate{Position: parts[i].Pos(), Element: parts[i], List: node}
	}

	return node
}

// parseDollar handles every `$...` form: `$(cmd)` capture, `$?`/`$$`
// specials, and `$name` simple variables. A bare `$` not followed by
// any of these is returned as literal text.
func (p *parser) parseDollar(pos ast.Position) (ast.Node, bool, error) {
	p.l.advance() // '$'

	if p.l.eof() {
		return &ast.BarewordLiteral{Position: pos, Text: "$"}, true, nil
	}

	switch {
	case p.l.peek() == '(':
		return p.parseCaptureExpr(pos)

	case p.l.peek() == '?' || p.l.peek() == '$':
		char := byte(p.l.advance())

		return &ast.SpecialVariableRef{Position: pos, Char: char}, true, nil

	case isNameByte(p.l.peek()):
		var b strings.Builder

		for !p.l.eof() && isNameByte(p.l.peek()) {
			b.WriteRune(p.l.advance())
		}

		return &ast.SimpleVariable{Position: pos, Name: b.String()}, true, nil

	default:
		return &ast.BarewordLiteral{Position: pos, Text: "$"}, true, nil
	}
}

// parseCaptureExpr parses `$(...)`: the text up to the matching close
// paren is re-parsed as a full statement and wrapped in an Execute
// node with CaptureStdout set, per spec.md §4.1's Execute contract.
func (p *parser) parseCaptureExpr(pos ast.Position) (ast.Node, bool, error) {
	p.l.advance() // '('

	inner, err := p.parseSequence()
	if err != nil {
		return nil, false, err
	}

	p.l.skipBlanks()

	if p.l.eof() || p.l.peek() != ')' {
		return nil, false, fmt.Errorf("unterminated capture expression")
	}

	p.l.advance()

	return &ast.Execute{Position: pos, Inner: inner, CaptureStdout: true}, true, nil
}

// parseTilde parses a `~[name]` prefix at the start of a word; the
// remainder of the word (e.g. `/rest`) is left for subsequent
// parseWordPart calls to join via Juxtaposition.
func (p *parser) parseTilde(pos ast.Position) ast.Node {
	p.l.advance() // '~'

	var b strings.Builder

	for !p.l.eof() && isTildeNameByte(p.l.peek()) {
		b.WriteRune(p.l.advance())
	}

	return &ast.TildePrefix{Position: pos, User: b.String()}
}

func isTildeNameByte(r rune) bool {
	return isNameByte(r) || r == '-' || r == '.'
}

// scanBacktick parses `` `word` `` as a DynamicEvaluate over the
// enclosed word, per spec.md §4.1's "a string result names a
// variable, otherwise its list projection is argv" contract.
func (p *parser) scanBacktick(pos ast.Position) (ast.Node, error) {
	p.l.advance() // opening `

	var inner ast.Node

	for first := true; !p.l.eof() && p.l.peek() != '`' && !isWordBoundary(p.l.peek()); first = false {
		part, consumed, err := p.parseWordPart(first)
		if err != nil {
			return nil, err
		}

		if !consumed {
			break
		}

		if inner == nil {
			inner = part
		} else {
			inner = &ast.Juxtaposition{Position: inner.Pos(), Left: inner, Right: part}
		}
	}

	if p.l.eof() || p.l.peek() != '`' {
		return nil, fmt.Errorf("unterminated dynamic-evaluation expression")
	}

	p.l.advance()

	if inner == nil {
		inner = &ast.BarewordLiteral{Position: pos, Text: ""}
	}

	return &ast.DynamicEvaluate{Position: pos, Inner: inner}, nil
}
