// Package eval implements the AST Evaluator (spec.md §4.1): a
// tree-walking reduction of ast.Node values to value.T, including the
// composition rules for sequences, juxtapositions, pipes, logical
// conjunctions, background markers, capture expressions, variable
// declarations, and dynamic evaluation.
package eval

import (
	"fmt"
	"strings"

	"github.com/mltnhm/serenity/internal/ast"
	"github.com/mltnhm/serenity/internal/command"
	"github.com/mltnhm/serenity/internal/redirect"
	"github.com/mltnhm/serenity/internal/value"
)

// Context carries everything the evaluator needs from its
// collaborators (shell state, alias expander, glob/tilde expander,
// pipeline launcher, job controller) without importing any of those
// packages directly, avoiding import cycles and keeping the
// evaluator a pure function of its inputs.
type Context struct {
	// Locals is the local_variables table; VariableDeclarations
	// writes here and SimpleVariable reads (via Local) shadow it
	// over the environment.
	Locals map[string]value.T

	// Getenv looks up an environment variable.
	Getenv func(name string) (string, bool)

	// LastExitCode returns the last evaluated job's exit code, for $?.
	LastExitCode func() int

	// ProcessID returns the shell's own pid, for $$.
	ProcessID func() int

	// ExpandGlob performs filesystem glob expansion.
	ExpandGlob func(pattern string) ([]string, error)

	// ExpandTilde resolves a `~` or `~user` prefix to a home directory.
	ExpandTilde func(user string) (string, error)

	// ExpandAliases performs alias substitution on a resolved
	// command sequence before it reaches the launcher.
	ExpandAliases func(seq command.Sequence) (command.Sequence, error)

	// Launch hands a resolved, alias-expanded sequence to the
	// pipeline launcher and returns a job handle for its last stage.
	Launch func(seq command.Sequence) (value.JobHandle, error)

	// Capture runs seq with its final stage's stdout connected to a
	// pipe, reads that pipe to EOF (looping rather than capping at a
	// single buffer, per spec.md §9 open question (a)), blocks for
	// completion, and returns the raw captured text.
	Capture func(seq command.Sequence) (string, error)

	// BlockOnJob drives the job controller's event loop until job
	// exits or is suspended, returning its exit code. A nil job
	// (launch failure) is treated as exit code 1.
	BlockOnJob func(job value.JobHandle) int

	// IFS returns the current value of the IFS local variable,
	// defaulting to "\n" when unset.
	IFS func() string

	// KeepEmptySegments reflects the inline_exec_keep_empty_segments
	// option.
	KeepEmptySegments func() bool

	pipeSeq int
}

// Local implements value.Lookup.
func (c *Context) Local(name string) (value.T, bool) {
	v, ok := c.Locals[name]
	return v, ok
}

// Environ implements value.Lookup.
func (c *Context) Environ(name string) (string, bool) {
	if c.Getenv == nil {
		return "", false
	}

	return c.Getenv(name)
}

// LastStatus implements value.Lookup.
func (c *Context) LastStatus() int {
	if c.LastExitCode == nil {
		return 0
	}

	return c.LastExitCode()
}

// Pid implements value.Lookup.
func (c *Context) Pid() int {
	if c.ProcessID == nil {
		return 0
	}

	return c.ProcessID()
}

func (c *Context) nextPipeID() int {
	c.pipeSeq++
	return c.pipeSeq
}

func (c *Context) ifs() string {
	if c.IFS == nil {
		return "\n"
	}

	s := c.IFS()
	if s == "" {
		return "\n"
	}

	return s
}

// Evaluate reduces node to a Value under ctx.
func Evaluate(node ast.Node, ctx *Context) (value.T, error) { //nolint:cyclop,gocyclo
	switch n := node.(type) {
	case *ast.BarewordLiteral:
		return value.NewString(n.Text), nil

	case *ast.StringLiteral:
		return value.NewString(n.Text), nil

	case *ast.DoubleQuotedString:
		return evalDoubleQuoted(n, ctx)

	case *ast.GlobPattern:
		return &value.Glob{Pattern: n.Pattern, Expand: ctx.ExpandGlob}, nil

	case *ast.TildePrefix:
		return &value.Tilde{User: n.User, Resolve: ctx.ExpandTilde}, nil

	case *ast.SimpleVariable:
		return &value.SimpleVariable{Name: n.Name}, nil

	case *ast.SpecialVariableRef:
		return &value.SpecialVariable{Char: n.Char}, nil

	case *ast.Juxtaposition:
		return evalJuxtaposition(n, ctx)

	case *ast.StringPartCompose:
		return evalStringPartCompose(n, ctx)

	case *ast.ListConcatenate:
		return evalListConcatenate(n, ctx)

	case *ast.CastToCommand:
		return evalCastToCommand(n, ctx)

	case *ast.CastToList:
		return evalCastToList(n, ctx)

	case *ast.Sequence:
		return evalSequence(n, ctx)

	case *ast.And:
		return evalAnd(n, ctx)

	case *ast.Or:
		return evalOr(n, ctx)

	case *ast.Pipe:
		return evalPipe(n, ctx)

	case *ast.Background:
		return evalBackground(n, ctx)

	case *ast.Execute:
		return evalExecute(n, ctx)

	case *ast.VariableDeclarations:
		return evalVariableDeclarations(n, ctx)

	case *ast.DynamicEvaluate:
		return evalDynamicEvaluate(n, ctx)

	case *ast.Comment, *ast.SyntaxError:
		return value.NewList(), nil

	case *ast.RedirectionNode:
		rec := command.New(nil)
		rec.Redirections = append(rec.Redirections, n.Redirection)

		return &value.Command{Record: rec}, nil

	default:
		return nil, fmt.Errorf("eval: unknown node type %T", node)
	}
}

// ListProjection is a small convenience wrapper over v.ListProjection
// that evaluators in this package use repeatedly.
func ListProjection(v value.T, ctx *Context) ([]string, error) {
	if v == nil {
		return nil, nil
	}

	return v.ListProjection(ctx)
}

func evalDoubleQuoted(n *ast.DoubleQuotedString, ctx *Context) (value.T, error) {
	inner, err := Evaluate(n.Inner, ctx)
	if err != nil {
		return nil, err
	}

	parts, err := ListProjection(inner, ctx)
	if err != nil {
		return nil, err
	}

	return value.NewString(strings.Join(parts, "")), nil
}

func evalJuxtaposition(n *ast.Juxtaposition, ctx *Context) (value.T, error) {
	left, err := Evaluate(n.Left, ctx)
	if err != nil {
		return nil, err
	}

	right, err := Evaluate(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	// A variable naming a local takes part as the local's value, so two
	// variables holding scalars concatenate like two scalars.
	for _, side := range []*value.T{&left, &right} {
		if v, ok := (*side).(*value.SimpleVariable); ok {
			if local, found := ctx.Local(v.Name); found {
				*side = local
			}
		}
	}

	ls, leftIsString := left.(*value.String)
	rs, rightIsString := right.(*value.String)

	if leftIsString && rightIsString && ls.SplitOn == nil && rs.SplitOn == nil {
		return value.NewString(ls.Text + rs.Text), nil
	}

	leftList, err := ListProjection(left, ctx)
	if err != nil {
		return nil, err
	}

	rightList, err := ListProjection(right, ctx)
	if err != nil {
		return nil, err
	}

	if len(leftList) == 0 || len(rightList) == 0 {
		return value.NewList(), nil
	}

	elements := make([]value.T, 0, len(leftList)*len(rightList))
	for _, l := range leftList {
		for _, r := range rightList {
			elements = append(elements, value.NewString(l+r))
		}
	}

	return value.NewList(elements...), nil
}

func evalStringPartCompose(n *ast.StringPartCompose, ctx *Context) (value.T, error) {
	left, err := Evaluate(n.Left, ctx)
	if err != nil {
		return nil, err
	}

	right, err := Evaluate(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	leftList, err := ListProjection(left, ctx)
	if err != nil {
		return nil, err
	}

	rightList, err := ListProjection(right, ctx)
	if err != nil {
		return nil, err
	}

	return value.NewString(strings.Join(leftList, " ") + strings.Join(rightList, " ")), nil
}

func evalListConcatenate(n *ast.ListConcatenate, ctx *Context) (value.T, error) {
	elem, err := Evaluate(n.Element, ctx)
	if err != nil {
		return nil, err
	}

	list, err := Evaluate(n.List, ctx)
	if err != nil {
		return nil, err
	}

	elemSeq, elemIsCmd := toCommandSequence(elem)
	listSeq, listIsCmd := toCommandSequence(list)

	if elemIsCmd || listIsCmd {
		return &value.CommandSequence{Records: command.JoinCommands(elemSeq, listSeq)}, nil
	}

	return value.NewList(elem, list), nil
}

func evalCastToCommand(n *ast.CastToCommand, ctx *Context) (value.T, error) {
	inner, err := Evaluate(n.Inner, ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := toCommandSequence(inner); ok {
		return inner, nil
	}

	argv, err := ListProjection(inner, ctx)
	if err != nil {
		return nil, err
	}

	return &value.Command{Record: command.New(argv)}, nil
}

func evalCastToList(n *ast.CastToList, ctx *Context) (value.T, error) {
	if n.Inner == nil {
		return value.NewList(), nil
	}

	inner, err := Evaluate(n.Inner, ctx)
	if err != nil {
		return nil, err
	}

	elems, err := ListProjection(inner, ctx)
	if err != nil {
		return nil, err
	}

	out := make([]value.T, len(elems))
	for i, e := range elems {
		out[i] = value.NewString(e)
	}

	return value.NewList(out...), nil
}

func wouldExecute(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Execute, *ast.And, *ast.Or:
		return true
	case *ast.Sequence:
		return wouldExecute(v.Left) || wouldExecute(v.Right)
	default:
		return false
	}
}

func evalSequence(n *ast.Sequence, ctx *Context) (value.T, error) {
	if wouldExecute(n) {
		left := &ast.Execute{Position: n.Position, Inner: n.Left}

		leftVal, err := Evaluate(left, ctx)
		if err != nil {
			return nil, err
		}

		if job, ok := leftVal.(*value.Job); ok {
			ctx.BlockOnJob(job.Handle)
		}

		right := &ast.Execute{Position: n.Position, Inner: n.Right}

		return Evaluate(right, ctx)
	}

	leftVal, err := Evaluate(n.Left, ctx)
	if err != nil {
		return nil, err
	}

	rightVal, err := Evaluate(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	leftSeq, _ := toCommandSequence(leftVal)
	rightSeq, _ := toCommandSequence(rightVal)

	if leftSeq.Empty() {
		return &value.CommandSequence{Records: rightSeq}, nil
	}

	return &value.CommandSequence{Records: append(append(command.Sequence{}, leftSeq...), rightSeq...)}, nil
}

// asExecute wraps a node in an implicit Execute unless it already is
// one (or a Sequence, which constructs its own Execute nodes on its
// sub-parts): And/Or's operands are pipelines that must actually run
// to produce the Job each side's short-circuit test requires, the
// same implicit wrapping evalSequence applies to its own children.
func asExecute(n ast.Node) ast.Node {
	switch n.(type) {
	case *ast.Execute, *ast.Sequence:
		return n
	default:
		return &ast.Execute{Position: n.Pos(), Inner: n}
	}
}

func evalAnd(n *ast.And, ctx *Context) (value.T, error) {
	leftVal, err := Evaluate(asExecute(n.Left), ctx)
	if err != nil {
		return nil, err
	}

	job, ok := leftVal.(*value.Job)
	if !ok {
		return nil, fmt.Errorf("eval: left side of && did not yield a job")
	}

	code := ctx.BlockOnJob(job.Handle)
	if code == 0 {
		return Evaluate(asExecute(n.Right), ctx)
	}

	return leftVal, nil
}

func evalOr(n *ast.Or, ctx *Context) (value.T, error) {
	leftVal, err := Evaluate(asExecute(n.Left), ctx)
	if err != nil {
		return nil, err
	}

	job, ok := leftVal.(*value.Job)
	if !ok {
		return nil, fmt.Errorf("eval: left side of || did not yield a job")
	}

	code := ctx.BlockOnJob(job.Handle)
	if code != 0 {
		return Evaluate(asExecute(n.Right), ctx)
	}

	return leftVal, nil
}

func evalPipe(n *ast.Pipe, ctx *Context) (value.T, error) {
	leftVal, err := Evaluate(n.Left, ctx)
	if err != nil {
		return nil, err
	}

	rightVal, err := Evaluate(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	leftSeq, ok := toCommandSequence(leftVal)
	if !ok {
		return nil, fmt.Errorf("eval: left side of | is not a command")
	}

	rightSeq, ok := toCommandSequence(rightVal)
	if !ok {
		return nil, fmt.Errorf("eval: right side of | is not a command")
	}

	if len(leftSeq) == 0 || len(rightSeq) == 0 {
		return nil, fmt.Errorf("eval: empty side of pipe")
	}

	id := ctx.nextPipeID()

	tail := *leftSeq[len(leftSeq)-1]
	tail.Redirections = append(append([]redirect.T{}, tail.Redirections...),
		redirect.NewPipeEnd(id, 1, redirect.WriteEnd))
	tail.ShouldWait = false
	tail.IsPipeSource = true

	head := *rightSeq[0]
	head.Redirections = append([]redirect.T{redirect.NewPipeEnd(id, 0, redirect.ReadEnd)},
		head.Redirections...)

	out := make(command.Sequence, 0, len(leftSeq)+len(rightSeq))
	out = append(out, leftSeq[:len(leftSeq)-1]...)
	out = append(out, &tail)
	out = append(out, &head)
	out = append(out, rightSeq[1:]...)

	return &value.CommandSequence{Records: out}, nil
}

func evalBackground(n *ast.Background, ctx *Context) (value.T, error) {
	inner, err := Evaluate(n.Inner, ctx)
	if err != nil {
		return nil, err
	}

	seq, ok := toCommandSequence(inner)
	if !ok || len(seq) == 0 {
		return inner, nil
	}

	last := *seq[len(seq)-1]
	last.ShouldWait = false
	last.ShouldNotifyIfInBackground = true

	out := append(append(command.Sequence{}, seq[:len(seq)-1]...), &last)

	return &value.CommandSequence{Records: out}, nil
}

func evalExecute(n *ast.Execute, ctx *Context) (value.T, error) {
	if seqNode, ok := n.Inner.(*ast.Sequence); ok && wouldExecute(seqNode) {
		return Evaluate(seqNode, ctx)
	}

	inner, err := Evaluate(n.Inner, ctx)
	if err != nil {
		return nil, err
	}

	seq, ok := toCommandSequence(inner)
	if !ok {
		return inner, nil
	}

	if ctx.ExpandAliases != nil {
		seq, err = ctx.ExpandAliases(seq)
		if err != nil {
			return nil, err
		}
	}

	if n.CaptureStdout {
		return captureStdout(seq, ctx)
	}

	job, err := ctx.Launch(seq)
	if err != nil {
		return nil, err
	}

	return &value.Job{Handle: job}, nil
}

func captureStdout(seq command.Sequence, ctx *Context) (value.T, error) {
	raw, err := ctx.Capture(seq)
	if err != nil {
		return nil, err
	}

	ifs := ctx.ifs()
	raw = strings.TrimSuffix(raw, ifs)

	sep := ifs
	keepEmpty := ctx.KeepEmptySegments != nil && ctx.KeepEmptySegments()

	return &value.String{Text: raw, SplitOn: &sep, KeepEmpty: keepEmpty}, nil
}

func evalVariableDeclarations(n *ast.VariableDeclarations, ctx *Context) (value.T, error) {
	for _, decl := range n.Declarations {
		nameVal, err := Evaluate(decl.Name, ctx)
		if err != nil {
			return nil, err
		}

		names, err := ListProjection(nameVal, ctx)
		if err != nil {
			return nil, err
		}

		if len(names) == 0 {
			continue
		}

		v, err := Evaluate(decl.Value, ctx)
		if err != nil {
			return nil, err
		}

		ctx.Locals[names[0]] = storageForm(v, ctx)
	}

	return value.NewList(), nil
}

// storageForm implements spec.md §4.1's VariableDeclarations storage
// rule: list values and commands are stored as-is (deferred
// resolution, see DESIGN.md open question (b)); strings store only
// their first list element.
func storageForm(v value.T, ctx *Context) value.T {
	s, ok := v.(*value.String)
	if !ok {
		return v
	}

	parts, err := s.ListProjection(ctx)
	if err != nil || len(parts) == 0 {
		return value.NewString("")
	}

	return value.NewString(parts[0])
}

func evalDynamicEvaluate(n *ast.DynamicEvaluate, ctx *Context) (value.T, error) {
	inner, err := Evaluate(n.Inner, ctx)
	if err != nil {
		return nil, err
	}

	if s, ok := inner.(*value.String); ok && s.SplitOn == nil {
		return &value.SimpleVariable{Name: s.Text}, nil
	}

	argv, err := ListProjection(inner, ctx)
	if err != nil {
		return nil, err
	}

	return &value.Command{Record: command.New(argv)}, nil
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
