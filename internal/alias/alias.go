// Package alias implements the Alias Expander (spec.md §4.2):
// recursive textual substitution of a command's leading argv token,
// re-parsing and re-evaluating the alias text and appending the
// original command's remaining argv and redirections to the result.
package alias

import (
	"fmt"

	"github.com/mltnhm/serenity/internal/ast"
	"github.com/mltnhm/serenity/internal/command"
	"github.com/mltnhm/serenity/internal/redirect"
	"github.com/mltnhm/serenity/internal/value"
)

// Reparser turns alias source text back into an AST node, the same
// way the top-level read-eval loop turns a line of input into one.
type Reparser func(text string) (ast.Node, error)

// Evaluator reduces an AST node to a Value, the same way
// internal/eval.Evaluate does (passed in rather than imported
// directly to avoid a dependency cycle: eval calls back into this
// package through Context.ExpandAliases).
type Evaluator func(node ast.Node) (value.T, error)

// Expand replaces each record in seq whose first argv token names an
// alias with the result of parsing and evaluating that alias's text,
// appending the record's remaining argv and redirections to the
// substitution's final stage. Substitution chains (an alias expanding
// to a command that is itself an alias) are followed recursively; a
// substitution whose own first token names an alias already seen
// earlier in the same chain is kept verbatim rather than re-expanded,
// which both satisfies the direct self-reference rule spec.md §4.2
// requires and breaks longer cycles (see DESIGN.md).
func Expand(seq command.Sequence, aliases map[string]string, reparse Reparser, evaluate Evaluator) (command.Sequence, error) {
	out := make(command.Sequence, 0, len(seq))

	for _, rec := range seq {
		expanded, err := expandRecord(rec, aliases, reparse, evaluate, nil)
		if err != nil {
			return nil, err
		}

		out = append(out, expanded...)
	}

	return out, nil
}

func expandRecord(
	rec *command.T,
	aliases map[string]string,
	reparse Reparser,
	evaluate Evaluator,
	seen map[string]bool,
) (command.Sequence, error) {
	if len(rec.Argv) == 0 {
		return command.Sequence{rec}, nil
	}

	name := rec.Argv[0]
	if seen[name] {
		return command.Sequence{rec}, nil
	}

	text, ok := aliases[name]
	if !ok {
		return command.Sequence{rec}, nil
	}

	node, err := reparse(text)
	if err != nil {
		return nil, fmt.Errorf("alias %q: %w", name, err)
	}

	v, err := evaluate(node)
	if err != nil {
		return nil, fmt.Errorf("alias %q: %w", name, err)
	}

	sub, ok := toCommandSequence(v)
	if !ok || len(sub) == 0 {
		return command.Sequence{rec}, nil
	}

	last := *sub[len(sub)-1]
	last.Argv = append(append([]string{}, last.Argv...), rec.Argv[1:]...)
	last.Redirections = append(append([]redirect.T{}, last.Redirections...), rec.Redirections...)

	nextSeen := make(map[string]bool, len(seen)+1)
	for k := range seen {
		nextSeen[k] = true
	}

	nextSeen[name] = true

	if len(sub) == 1 {
		return expandRecord(&last, aliases, reparse, evaluate, nextSeen)
	}

	firstExpanded, err := expandRecord(sub[0], aliases, reparse, evaluate, nextSeen)
	if err != nil {
		return nil, err
	}

	result := make(command.Sequence, 0, len(firstExpanded)+len(sub)-1)
	result = append(result, firstExpanded...)
	result = append(result, sub[1:len(sub)-1]...)
	result = append(result, &last)

	return result, nil
}

func toCommandSequence(v value.T) (command.Sequence, bool) {
	switch t := v.(type) {
	case *value.Command:
		return command.Sequence{t.Record}, true
	case *value.CommandSequence:
		return command.Sequence(t.Records), true
	default:
		return nil, false
	}
}
