package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mltnhm/serenity/internal/ast"
	"github.com/mltnhm/serenity/internal/redirect"
)

type parser struct {
	l *lexer
}

// Parse turns text into an AST node, satisfying spec.md §6's
// `parse(text) → AST-or-null` contract. A blank or comment-only line
// returns (nil, nil). A malformed line returns a *ast.SyntaxError
// node (see IsSyntaxError) together with a non-nil error carrying the
// same position and a 10-character context window, per spec.md §7.
func Parse(text string) (ast.Node, error) {
	p := &parser{l: newLexer(text)}

	p.l.skipBlanks()

	for !p.l.eof() && p.l.peek() == '\n' {
		p.l.advance()
		p.l.skipBlanks()
	}

	if p.l.eof() {
		return nil, nil
	}

	node, err := p.parseSequence()
	if err != nil {
		return p.syntaxError(err)
	}

	p.l.skipBlanks()

	for !p.l.eof() && (p.l.peek() == '\n' || p.l.peek() == ';') {
		p.l.advance()
		p.l.skipBlanks()
	}

	if !p.l.eof() {
		return p.syntaxError(fmt.Errorf("unexpected %q", p.l.peek()))
	}

	return node, nil
}

// IsSyntaxError reports whether n is a *ast.SyntaxError node produced
// by Parse, satisfying spec.md §6's `AST::is_syntax_error` /
// `AST::syntax_error_node` accessors.
func IsSyntaxError(n ast.Node) (*ast.SyntaxError, bool) {
	se, ok := n.(*ast.SyntaxError)
	return se, ok
}

func (p *parser) syntaxError(cause error) (ast.Node, error) {
	pos := p.l.pos()

	start := pos.Offset - 5
	if start < 0 {
		start = 0
	}

	end := pos.Offset + 5
	if end > len(p.l.src) {
		end = len(p.l.src)
	}

	context := strings.ReplaceAll(p.l.src[start:end], "\n", " ")
	msg := fmt.Sprintf("%v near %q", cause, context)

	return &ast.SyntaxError{Position: pos, Message: msg}, fmt.Errorf("parse: %s", msg)
}

// parseSequence handles `;`/newline-separated statements and trailing
// `&` backgrounding.
func (p *parser) parseSequence() (ast.Node, error) {
	left, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}

	for {
		p.l.skipBlanks()

		switch {
		case p.l.eof():
			return left, nil

		case p.l.peek() == '&' && p.l.peekAt(1) != '&':
			p.l.advance()

			left = &ast.Background{Position: left.Pos(), Inner: left}

		case p.l.peek() == ';' || p.l.peek() == '\n':
			p.l.advance()
			p.l.skipBlanks()

			for !p.l.eof() && p.l.peek() == '\n' {
				p.l.advance()
				p.l.skipBlanks()
			}

			if p.l.eof() || p.atStatementEnd() {
				return left, nil
			}

			right, err := p.parseAndOr()
			if err != nil {
				return nil, err
			}

			left = &ast.Sequence{Position: left.Pos(), Left: left, Right: right}

		default:
			return left, nil
		}
	}
}

// atStatementEnd reports whether the cursor sits on a token that ends
// the whole program rather than starting another statement (a lone
// trailing `;` or closing paren).
func (p *parser) atStatementEnd() bool {
	return p.l.eof() || p.l.peek() == ')'
}

func (p *parser) parseAndOr() (ast.Node, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}

	for {
		p.l.skipBlanks()

		switch {
		case p.l.peek() == '&' && p.l.peekAt(1) == '&':
			p.l.advance()
			p.l.advance()
			p.skipBlanksAndNewlines()

			right, err := p.parsePipeline()
			if err != nil {
				return nil, err
			}

			left = &ast.And{Position: left.Pos(), Left: left, Right: right}

		case p.l.peek() == '|' && p.l.peekAt(1) == '|':
			p.l.advance()
			p.l.advance()
			p.skipBlanksAndNewlines()

			right, err := p.parsePipeline()
			if err != nil {
				return nil, err
			}

			left = &ast.Or{Position: left.Pos(), Left: left, Right: right}

		default:
			return left, nil
		}
	}
}

func (p *parser) skipBlanksAndNewlines() {
	p.l.skipBlanks()

	for !p.l.eof() && p.l.peek() == '\n' {
		p.l.advance()
		p.l.skipBlanks()
	}
}

func (p *parser) parsePipeline() (ast.Node, error) {
	left, err := p.parseCommand()
	if err != nil {
		return nil, err
	}

	for {
		p.l.skipBlanks()

		if p.l.peek() != '|' || p.l.peekAt(1) == '|' {
			return left, nil
		}

		p.l.advance()
		p.skipBlanksAndNewlines()

		right, err := p.parseCommand()
		if err != nil {
			return nil, err
		}

		left = &ast.Pipe{Position: left.Pos(), Left: left, Right: right}
	}
}

// parseCommand parses one pipeline stage: leading `name=value`
// assignments, then an interleaving of words and redirections. Each
// word/redirection evaluates to a Command value; they are folded into
// a single record via the same ListConcatenate/join_commands
// machinery internal/eval uses for cons-ing list elements (spec.md
// §4.1), which is how several words combine into one argv.
func (p *parser) parseCommand() (ast.Node, error) { //nolint:cyclop
	start := p.l.pos()

	var decls []ast.VariableDeclaration

	for {
		p.l.skipBlanks()

		name, ok := p.tryParseAssignmentName()
		if !ok {
			break
		}

		value, err := p.parseWord()
		if err != nil {
			return nil, err
		}

		if value == nil {
			value = &ast.BarewordLiteral{Position: p.l.pos(), Text: ""}
		}

		decls = append(decls, ast.VariableDeclaration{
			Name:  &ast.BarewordLiteral{Position: start, Text: name},
			Value: value,
		})
	}

	var parts []ast.Node

	for {
		p.l.skipBlanks()

		if p.atCommandBoundary() {
			break
		}

		redir, matched, err := p.tryParseRedirection()
		if err != nil {
			return nil, err
		}

		if matched {
			parts = append(parts, redir)
			continue
		}

		word, err := p.parseWord()
		if err != nil {
			return nil, err
		}

		if word == nil {
			break
		}

		parts = append(parts, &ast.CastToCommand{Position: word.Pos(), Inner: word})
	}

	var node ast.Node

	switch len(parts) {
	case 0:
		node = &ast.CastToCommand{Position: start, Inner: &ast.CastToList{Position: start}}
	case 1:
		node = parts[0]
	default:
		node = parts[len(parts)-1]
		for i := len(parts) - 2; i >= 0; i-- {
			node = &ast.ListConcatenate{Position: parts[i].Pos(), Element: parts[i], List: node}
		}
	}

	if len(decls) == 0 {
		return node, nil
	}

	declNode := &ast.VariableDeclarations{Position: start, Declarations: decls}

	if len(parts) == 0 {
		return declNode, nil
	}

	return &ast.Sequence{Position: start, Left: declNode, Right: node}, nil
}

func (p *parser) atCommandBoundary() bool {
	if p.l.eof() {
		return true
	}

	switch p.l.peek() {
	case ';', '\n', '|', '&', ')':
		return true
	default:
		return false
	}
}

// tryParseAssignmentName recognizes a `name=` prefix (no preceding
// word consumed yet in this command) without consuming it unless it
// matches; the trailing value word is left for the caller to parse.
func (p *parser) tryParseAssignmentName() (string, bool) {
	save := *p.l

	if !isAssignmentStart(p.l.peek()) {
		return "", false
	}

	var b strings.Builder

	for !p.l.eof() && isNameByte(p.l.peek()) {
		b.WriteRune(p.l.advance())
	}

	if p.l.eof() || p.l.peek() != '=' {
		*p.l = save
		return "", false
	}

	p.l.advance()

	return b.String(), true
}

func isAssignmentStart(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// tryParseRedirection recognizes `[N]<path`, `[N]>path`, `[N]>>path`,
// `[N]<>path`, and the fd-duplication/close forms `[N]>&M`, `[N]<&M`,
// `[N]>&-`, `[N]<&-`.
func (p *parser) tryParseRedirection() (ast.Node, bool, error) {
	save := *p.l

	fd, hasFd := p.tryParseFdPrefix()

	if p.l.eof() || (p.l.peek() != '<' && p.l.peek() != '>') {
		*p.l = save
		return nil, false, nil
	}

	pos := p.l.pos()
	isWrite := p.l.peek() == '>'

	p.l.advance()

	mode := redirect.Read
	if isWrite {
		mode = redirect.Write
	}

	if !p.l.eof() && p.l.peek() == '>' && isWrite {
		p.l.advance()

		mode = redirect.WriteAppend
	} else if !p.l.eof() && p.l.peek() == '>' && !isWrite {
		p.l.advance()

		mode = redirect.ReadWrite
	}

	defaultFd := 0
	if isWrite {
		defaultFd = 1
	}

	if !hasFd {
		fd = defaultFd
	}

	if !p.l.eof() && p.l.peek() == '&' {
		p.l.advance()

		if !p.l.eof() && p.l.peek() == '-' {
			p.l.advance()

			return &ast.RedirectionNode{Position: pos, Redirection: redirect.NewClose(fd)}, true, nil
		}

		target, ok := p.tryParseFdPrefix()
		if !ok {
			return nil, false, fmt.Errorf("expected file descriptor after '&'")
		}

		return &ast.RedirectionNode{Position: pos, Redirection: redirect.NewFd2Fd(target, fd)}, true, nil
	}

	p.l.skipBlanks()

	path, err := p.parseLiteralWord()
	if err != nil {
		return nil, false, err
	}

	return &ast.RedirectionNode{Position: pos, Redirection: redirect.NewPath(path, fd, mode)}, true, nil
}

func (p *parser) tryParseFdPrefix() (int, bool) {
	save := *p.l

	var b strings.Builder

	for !p.l.eof() && p.l.peek() >= '0' && p.l.peek() <= '9' {
		b.WriteRune(p.l.advance())
	}

	if b.Len() == 0 {
		*p.l = save
		return 0, false
	}

	n, err := strconv.Atoi(b.String())
	if err != nil {
		*p.l = save
		return 0, false
	}

	return n, true
}

// parseLiteralWord parses a single redirection-target word and
// requires it to reduce to literal text at parse time (bareword,
// quoted string, or glob pattern) — redirection targets with
// variable interpolation are outside this minimal grammar's scope.
func (p *parser) parseLiteralWord() (string, error) {
	word, err := p.parseWord()
	if err != nil {
		return "", err
	}

	if word == nil {
		return "", fmt.Errorf("expected a redirection target")
	}

	return literalText(word)
}

func literalText(n ast.Node) (string, error) { //nolint:cyclop
	switch v := n.(type) {
	case *ast.BarewordLiteral:
		return v.Text, nil
	case *ast.StringLiteral:
		return v.Text, nil
	case *ast.GlobPattern:
		return v.Pattern, nil
	case *ast.TildePrefix:
		if v.User == "" {
			return "~", nil
		}

		return "~" + v.User, nil
	case *ast.Juxtaposition:
		l, err := literalText(v.Left)
		if err != nil {
			return "", err
		}

		r, err := literalText(v.Right)
		if err != nil {
			return "", err
		}

		return l + r, nil
	default:
		return "", fmt.Errorf("redirection target must be a literal path")
	}
}
