package parse

import "testing"

func TestLexerAdvanceTracksPosition(t *testing.T) {
	l := newLexer("ab\ncd")

	if l.peek() != 'a' {
		t.Fatalf("peek() = %q, want 'a'", l.peek())
	}

	l.advance()
	l.advance()

	pos := l.pos()
	if pos.Line != 1 || pos.Column != 3 {
		t.Errorf("after two advances, pos = %+v, want line 1 col 3", pos)
	}

	l.advance() // consume the newline

	pos = l.pos()
	if pos.Line != 2 || pos.Column != 1 {
		t.Errorf("after the newline, pos = %+v, want line 2 col 1", pos)
	}
}

func TestLexerPeekAtLooksAhead(t *testing.T) {
	l := newLexer("abc")

	if got := l.peekAt(2); got != 'c' {
		t.Errorf("peekAt(2) = %q, want 'c'", got)
	}

	if got := l.peekAt(10); got != 0 {
		t.Errorf("peekAt out of range = %q, want 0", got)
	}
}

func TestLexerSkipBlanksSkipsSpacesTabsAndComments(t *testing.T) {
	l := newLexer("  \t # a comment\nrest")

	l.skipBlanks()

	if l.peek() != '\n' {
		t.Errorf("skipBlanks should stop at the newline, got %q", l.peek())
	}
}

func TestLexerEOF(t *testing.T) {
	l := newLexer("")

	if !l.eof() {
		t.Error("empty lexer should report eof")
	}

	if l.peek() != 0 {
		t.Errorf("peek() at eof = %q, want 0", l.peek())
	}
}

func TestHasGlobMeta(t *testing.T) {
	tests := map[string]bool{
		"plain":  false,
		"*.go":   true,
		"a?b":    true,
		"[abc]":  true,
		"no-op":  false,
	}

	for input, want := range tests {
		if got := hasGlobMeta(input); got != want {
			t.Errorf("hasGlobMeta(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestIsWordBoundary(t *testing.T) {
	boundaries := []rune{0, ' ', '\t', '\n', '|', '&', ';', '<', '>', '(', ')'}
	for _, r := range boundaries {
		if !isWordBoundary(r) {
			t.Errorf("isWordBoundary(%q) = false, want true", r)
		}
	}

	if isWordBoundary('x') {
		t.Error("isWordBoundary('x') should be false")
	}
}
