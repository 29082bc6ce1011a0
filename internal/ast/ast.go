// Package ast defines the node types the parser (external to the
// core, see spec.md §6) produces and the evaluator (internal/eval)
// consumes. Nodes hold strong references to their children; Values
// never refer back to nodes.
package ast

import "github.com/mltnhm/serenity/internal/redirect"

// Node is the common interface every AST node satisfies. It exists
// only as a marker; the evaluator type-switches on the concrete node
// types below, matching spec.md §4.1's "small visitor surface" over
// a sum type rather than a deep class hierarchy.
type Node interface {
	Pos() Position
}

// Position locates a node in the original source text, used for
// syntax-error reporting (§7).
type Position struct {
	Offset int
	Line   int
	Column int
}

// Pos implements Node for embedding.
func (p Position) Pos() Position { return p }

// BarewordLiteral is an unquoted literal token.
type BarewordLiteral struct {
	Position
	Text string
}

// StringLiteral is a single-quoted (non-interpolating) literal.
type StringLiteral struct {
	Position
	Text string
}

// DoubleQuotedString wraps an inner node whose list projection is
// concatenated with an empty separator.
type DoubleQuotedString struct {
	Position
	Inner Node
}

// GlobPattern is an unresolved glob pattern.
type GlobPattern struct {
	Position
	Pattern string
}

// TildePrefix is a `~` or `~user` prefix.
type TildePrefix struct {
	Position
	User string
}

// SimpleVariable is a `$name` reference.
type SimpleVariable struct {
	Position
	Name string
}

// SpecialVariableRef is a `$?`/`$$`/... single-character reference.
type SpecialVariableRef struct {
	Position
	Char byte
}

// Juxtaposition concatenates scalars or forms the cartesian product
// of list projections.
type Juxtaposition struct {
	Position
	Left, Right Node
}

// StringPartCompose joins list projections of both sides with single
// spaces into one String.
type StringPartCompose struct {
	Position
	Left, Right Node
}

// ListConcatenate prepends Element to List; if either evaluates to a
// command, the two are joined into a pipeline instead.
type ListConcatenate struct {
	Position
	Element Node
	List    Node
}

// CastToCommand wraps Inner's list projection as a fresh Command's
// argv, unless Inner already evaluates to a command.
type CastToCommand struct {
	Position
	Inner Node
}

// CastToList re-wraps Inner's elements as Strings, yielding a List.
// Inner may be nil, in which case this evaluates to the empty list.
type CastToList struct {
	Position
	Inner Node
}

// Sequence is `L ; R` (or a bare newline-separated pair).
type Sequence struct {
	Position
	Left, Right Node
}

// And is `L && R`.
type And struct {
	Position
	Left, Right Node
}

// Or is `L || R`.
type Or struct {
	Position
	Left, Right Node
}

// Pipe is `L | R`.
type Pipe struct {
	Position
	Left, Right Node
}

// Background is `inner &`.
type Background struct {
	Position
	Inner Node
}

// Execute is the gateway to process creation: `CaptureStdout` selects
// between running the pipeline for its Job value and capturing its
// stdout into a String.
type Execute struct {
	Position
	Inner         Node
	CaptureStdout bool
}

// VariableDeclaration is a single `name = value` binding inside a
// VariableDeclarations node.
type VariableDeclaration struct {
	Name  Node
	Value Node
}

// VariableDeclarations is `name=value name2=value2 ...` preceding a
// command, or a bare assignment statement.
type VariableDeclarations struct {
	Position
	Declarations []VariableDeclaration
}

// DynamicEvaluate is `$(...)`-as-name / backtick-style dynamic
// dereference: a string result names a variable, otherwise the list
// projection is argv.
type DynamicEvaluate struct {
	Position
	Inner Node
}

// Comment evaluates to empty.
type Comment struct {
	Position
	Text string
}

// SyntaxError evaluates to empty and stylizes its own position.
type SyntaxError struct {
	Position
	Message string
}

// RedirectionNode carries one redirection request; it evaluates to a
// Command with empty argv whose redirections hold that one entry.
type RedirectionNode struct {
	Position
	Redirection redirect.T
}
