package eval_test

import (
	"reflect"
	"testing"

	"github.com/mltnhm/serenity/internal/ast"
	"github.com/mltnhm/serenity/internal/command"
	"github.com/mltnhm/serenity/internal/eval"
	"github.com/mltnhm/serenity/internal/parse"
	"github.com/mltnhm/serenity/internal/value"
)

// fakeJob is a value.JobHandle stand-in that never actually forks a
// process; the test Context's BlockOnJob reads its code directly
// instead of waiting on real process exit.
type fakeJob struct {
	code int
	pid  int
}

func (j *fakeJob) Wait() int { return j.code }
func (j *fakeJob) Pid() int  { return j.pid }

// newContext builds an eval.Context whose Launch/Capture/BlockOnJob
// are driven by an in-memory fake process table, so the evaluator's
// composition rules can be exercised without forking real processes.
func newContext() (*eval.Context, *fakeState) {
	fs := &fakeState{
		exitCodes: map[string]int{},
		locals:    map[string]value.T{},
		env:       map[string]string{},
	}

	ctx := &eval.Context{
		Locals:       fs.locals,
		Getenv:       fs.getenv,
		LastExitCode: func() int { return fs.lastStatus },
		ProcessID:    func() int { return 4242 },
		ExpandGlob:   func(p string) ([]string, error) { return []string{p}, nil },
		ExpandTilde:  func(u string) (string, error) { return "/home/" + u, nil },
		Launch:       fs.launch,
		Capture:      fs.capture,
		BlockOnJob: func(job value.JobHandle) int {
			if job == nil {
				return 1
			}

			code := job.Wait()
			fs.lastStatus = code

			return code
		},
		IFS:               func() string { return "\n" },
		KeepEmptySegments: func() bool { return false },
	}

	return ctx, fs
}

type fakeState struct {
	locals     map[string]value.T
	env        map[string]string
	lastStatus int
	launched   []command.Sequence
	exitCodes  map[string]int // keyed by the argv[0] of the last launched stage
	captureOut string
}

func (fs *fakeState) getenv(name string) (string, bool) {
	v, ok := fs.env[name]
	return v, ok
}

func (fs *fakeState) launch(seq command.Sequence) (value.JobHandle, error) {
	fs.launched = append(fs.launched, seq)

	last := seq.Last()

	code := 0

	if last != nil && len(last.Argv) > 0 {
		code = fs.exitCodes[last.Argv[0]]
	}

	return &fakeJob{code: code, pid: 100 + len(fs.launched)}, nil
}

func (fs *fakeState) capture(seq command.Sequence) (string, error) {
	fs.launched = append(fs.launched, seq)
	return fs.captureOut, nil
}

func mustParse(t *testing.T, text string) ast.Node {
	t.Helper()

	node, err := parse.Parse(text)
	if err != nil {
		t.Fatalf("parse(%q): %v", text, err)
	}

	if node == nil {
		t.Fatalf("parse(%q) returned a nil node", text)
	}

	return node
}

func asExecute(node ast.Node) ast.Node {
	return &ast.Execute{Position: node.Pos(), Inner: node}
}

func TestDoubleQuotedStringConcatenates(t *testing.T) {
	ctx, _ := newContext()

	node := mustParse(t, `echo "a b c"`+"\n")

	v, err := eval.Evaluate(node, ctx)
	if err != nil {
		t.Fatal(err)
	}

	// A command is opaque to list projection, so the quoted word is
	// checked in the argv of the resolved command record.
	seq, ok := v.(*value.CommandSequence)
	if !ok || len(seq.Records) == 0 {
		t.Fatalf("expected a non-empty *value.CommandSequence, got %#v", v)
	}

	parts := seq.Records[len(seq.Records)-1].Argv
	if len(parts) == 0 || parts[len(parts)-1] != "a b c" {
		t.Errorf("got %v, want last element \"a b c\"", parts)
	}
}

func TestJuxtapositionCartesianProduct(t *testing.T) {
	ctx, _ := newContext()
	ctx.Locals["X"] = value.NewList(value.NewString("a"), value.NewString("b"))
	ctx.Locals["Y"] = value.NewList(value.NewString("x"), value.NewString("y"))

	cast := mustParse(t, "$X$Y\n").(*ast.CastToCommand)

	v, err := eval.Evaluate(cast.Inner, ctx)
	if err != nil {
		t.Fatal(err)
	}

	got, err := eval.ListProjection(v, ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"ax", "ay", "bx", "by"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestJuxtapositionStringConcat(t *testing.T) {
	ctx, _ := newContext()
	ctx.Locals["X"] = value.NewString("foo")
	ctx.Locals["Y"] = value.NewString("bar")

	cast := mustParse(t, "$X$Y\n").(*ast.CastToCommand)

	v, err := eval.Evaluate(cast.Inner, ctx)
	if err != nil {
		t.Fatal(err)
	}

	s, ok := v.(*value.String)
	if !ok || s.Text != "foobar" {
		t.Errorf("got %#v, want String(\"foobar\")", v)
	}
}

func TestJuxtapositionEmptySideYieldsEmptyList(t *testing.T) {
	ctx, _ := newContext()
	ctx.Locals["X"] = value.NewList()
	ctx.Locals["Y"] = value.NewString("z")

	cast := mustParse(t, "$X$Y\n").(*ast.CastToCommand)

	v, err := eval.Evaluate(cast.Inner, ctx)
	if err != nil {
		t.Fatal(err)
	}

	got, err := eval.ListProjection(v, ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 0 {
		t.Errorf("got %v, want empty list", got)
	}
}

func TestVariableDeclarationRoundTrip(t *testing.T) {
	ctx, _ := newContext()

	node := mustParse(t, "FOO=bar\n")

	_, err := eval.Evaluate(node, ctx)
	if err != nil {
		t.Fatal(err)
	}

	readNode := mustParse(t, "$FOO\n").(*ast.CastToCommand)

	v, err := eval.Evaluate(readNode.Inner, ctx)
	if err != nil {
		t.Fatal(err)
	}

	got, err := eval.ListProjection(v, ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, []string{"bar"}) {
		t.Errorf("got %v, want [bar]", got)
	}
}

func TestAndShortCircuitsOnNonZero(t *testing.T) {
	ctx, fs := newContext()
	fs.exitCodes["false"] = 1

	node := mustParse(t, "false && echo should-not-run\n")
	execNode := asExecute(node)

	v, err := eval.Evaluate(execNode, ctx)
	if err != nil {
		t.Fatal(err)
	}

	job, ok := v.(*value.Job)
	if !ok {
		t.Fatalf("expected a Job result, got %#v", v)
	}

	if job.Handle.Wait() != 1 {
		t.Errorf("expected propagated exit code 1, got %d", job.Handle.Wait())
	}

	for _, seq := range fs.launched {
		if last := seq.Last(); last != nil && len(last.Argv) > 0 && last.Argv[0] == "echo" {
			t.Error("right side of && must not run when left side fails")
		}
	}
}

func TestAndRunsRightOnZero(t *testing.T) {
	ctx, fs := newContext()
	fs.exitCodes["true"] = 0

	node := mustParse(t, "true && echo recovered\n")
	execNode := asExecute(node)

	_, err := eval.Evaluate(execNode, ctx)
	if err != nil {
		t.Fatal(err)
	}

	foundEcho := false

	for _, seq := range fs.launched {
		if last := seq.Last(); last != nil && len(last.Argv) > 0 && last.Argv[0] == "echo" {
			foundEcho = true
		}
	}

	if !foundEcho {
		t.Error("right side of && should run when left side succeeds")
	}
}

func TestOrRunsRightOnNonZero(t *testing.T) {
	ctx, fs := newContext()
	fs.exitCodes["false"] = 1

	node := mustParse(t, "false || echo recovered\n")
	execNode := asExecute(node)

	_, err := eval.Evaluate(execNode, ctx)
	if err != nil {
		t.Fatal(err)
	}

	foundEcho := false

	for _, seq := range fs.launched {
		if last := seq.Last(); last != nil && len(last.Argv) > 0 && last.Argv[0] == "echo" {
			foundEcho = true
		}
	}

	if !foundEcho {
		t.Error("right side of || should run when left side fails")
	}
}

func TestOrSkipsRightOnZero(t *testing.T) {
	ctx, fs := newContext()
	fs.exitCodes["true"] = 0

	node := mustParse(t, "true || echo should-not-run\n")
	execNode := asExecute(node)

	_, err := eval.Evaluate(execNode, ctx)
	if err != nil {
		t.Fatal(err)
	}

	for _, seq := range fs.launched {
		if last := seq.Last(); last != nil && len(last.Argv) > 0 && last.Argv[0] == "echo" {
			t.Error("right side of || must not run when left side succeeds")
		}
	}
}

func TestPipeMarksStagesCorrectly(t *testing.T) {
	ctx, fs := newContext()

	node := mustParse(t, "echo a b | wc -l\n")
	execNode := asExecute(node)

	_, err := eval.Evaluate(execNode, ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(fs.launched) != 1 {
		t.Fatalf("expected a single launch carrying both pipeline stages, got %d", len(fs.launched))
	}

	seq := fs.launched[0]
	if len(seq) != 2 {
		t.Fatalf("expected 2 commands in the pipeline, got %d", len(seq))
	}

	if seq[0].ShouldWait {
		t.Error("pipe source stage should have ShouldWait = false")
	}

	if !seq[0].IsPipeSource {
		t.Error("pipe source stage should have IsPipeSource = true")
	}

	if !seq[1].ShouldWait {
		t.Error("final pipeline stage should have ShouldWait = true")
	}
}

func TestBackgroundMarksFinalCommand(t *testing.T) {
	ctx, _ := newContext()

	node := mustParse(t, "sleep 5 &\n")

	v, err := eval.Evaluate(node, ctx)
	if err != nil {
		t.Fatal(err)
	}

	seq, ok := v.(*value.CommandSequence)
	if !ok || len(seq.Records) == 0 {
		t.Fatalf("expected a non-empty *value.CommandSequence, got %#v", v)
	}

	last := seq.Records[len(seq.Records)-1]

	if last.ShouldWait {
		t.Error("a backgrounded command should have ShouldWait = false")
	}

	if !last.ShouldNotifyIfInBackground {
		t.Error("a backgrounded command should notify on completion")
	}
}

func TestCaptureStdoutSplitsOnIFS(t *testing.T) {
	ctx, fs := newContext()
	fs.captureOut = "hello world\n"

	node := mustParse(t, "echo $(echo hello world)\n")
	execNode := asExecute(node)

	_, err := eval.Evaluate(execNode, ctx)
	if err != nil {
		t.Fatal(err)
	}

	// The fake Capture records the inner command too, so the outer
	// echo is the second entry.
	if len(fs.launched) != 2 {
		t.Fatalf("expected the captured command and the outer command, got %d launches", len(fs.launched))
	}

	want := []string{"echo", "hello world"}
	if got := fs.launched[1].Last().Argv; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v (trailing newline trimmed per IFS default)", got, want)
	}
}

func TestSequenceOfNonExecutingStatementsConcatenates(t *testing.T) {
	ctx, _ := newContext()

	node := mustParse(t, "true ; true\n")

	v, err := eval.Evaluate(node, ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := v.(*value.CommandSequence); !ok {
		t.Fatalf("expected a non-executing Sequence to yield a CommandSequence, got %#v", v)
	}
}

func TestExecuteLaunchesConcatenatedNonExecutingSequence(t *testing.T) {
	ctx, fs := newContext()

	node := mustParse(t, "echo a; echo b\n")

	v, err := eval.Evaluate(asExecute(node), ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := v.(*value.Job); !ok {
		t.Fatalf("expected Execute to launch the concatenated sequence and yield a Job, got %#v", v)
	}

	if len(fs.launched) != 1 {
		t.Fatalf("expected one Launch call carrying both commands, got %d", len(fs.launched))
	}

	if got := len(fs.launched[0]); got != 2 {
		t.Fatalf("expected the launched sequence to carry both commands, got %d records", got)
	}
}

func TestExecuteRunsVariableDeclarationThenCommand(t *testing.T) {
	ctx, fs := newContext()

	node := mustParse(t, "FOO=bar; echo $FOO\n")

	v, err := eval.Evaluate(asExecute(node), ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := v.(*value.Job); !ok {
		t.Fatalf("expected Execute to launch echo after the assignment, got %#v", v)
	}

	if len(fs.launched) != 1 {
		t.Fatalf("expected one Launch call, got %d", len(fs.launched))
	}

	want := []string{"echo", "bar"}
	if got := fs.launched[0].Last().Argv; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDynamicEvaluateStringNamesVariable(t *testing.T) {
	ctx, _ := newContext()
	ctx.Locals["FOO"] = value.NewString("bar")

	cast := mustParse(t, "`FOO`\n").(*ast.CastToCommand)

	v, err := eval.Evaluate(cast.Inner, ctx)
	if err != nil {
		t.Fatal(err)
	}

	got, err := eval.ListProjection(v, ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, []string{"bar"}) {
		t.Errorf("got %v, want [bar]", got)
	}
}

type unknownNode struct {
	ast.Position
}

func TestUnknownNodeTypeErrors(t *testing.T) {
	ctx, _ := newContext()

	_, err := eval.Evaluate(&unknownNode{}, ctx)
	if err == nil {
		t.Fatal("expected an error evaluating an unrecognized node type")
	}
}
