package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ossminer/crawler/internal/analysis"
	"github.com/ossminer/crawler/internal/depgraph"
)

// fakeInterface is a minimal analysis.Interface for exercising the
// Compiler's loop without any real analysis behind it.
type fakeInterface struct {
	compile func(in analysis.CompileInput) analysis.CompileResult
}

func (f *fakeInterface) Init(ctx context.Context, in analysis.InitInput) error { return nil }

func (f *fakeInterface) Preprocess(ctx context.Context, in analysis.PreInput) (string, error) {
	return analysis.DefaultPreprocess(in)
}

func (f *fakeInterface) Compile(ctx context.Context, in analysis.CompileInput) analysis.CompileResult {
	return f.compile(in)
}

func (f *fakeInterface) Intern(ctx context.Context, in analysis.InternInput) error { return nil }

func buildGraph(t *testing.T, files map[string]string) *depgraph.DependencyGraph {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	dg, err := depgraph.Build(root, nil)
	require.NoError(t, err)
	return dg
}

func TestCompiler_SucceedsOnFirstAttempt(t *testing.T) {
	dg := buildGraph(t, map[string]string{"main.c": "int main(){}"})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	iface := &fakeInterface{
		compile: func(in analysis.CompileInput) analysis.CompileResult {
			return analysis.CompileResult{OK: true, Data: "ok", Log: "compiled\n"}
		},
	}

	c := New(file, dg, iface, 8, nil)
	result := c.Run(context.Background(), dg)

	require.True(t, result.OK)
	require.Equal(t, "ok", result.Data)
	require.Contains(t, result.Log, "compiled")
}

func TestCompiler_ExhaustsHeaderSetsAndFails(t *testing.T) {
	dg := buildGraph(t, map[string]string{
		"main.c":  "#include \"foo.h\"\n",
		"a/foo.h": "",
		"b/foo.h": "",
	})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	iface := &fakeInterface{
		compile: func(in analysis.CompileInput) analysis.CompileResult {
			return analysis.CompileResult{OK: false, Log: "failed\n"}
		},
	}

	c := New(file, dg, iface, 8, nil)
	result := c.Run(context.Background(), dg)

	require.False(t, result.OK)
	require.Contains(t, result.Log, "failed")
}

func TestCompiler_PanicInCompileIsIsolated(t *testing.T) {
	dg := buildGraph(t, map[string]string{"main.c": "int main(){}"})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	iface := &fakeInterface{
		compile: func(in analysis.CompileInput) analysis.CompileResult {
			panic("boom")
		},
	}

	c := New(file, dg, iface, 8, nil)
	result := c.Run(context.Background(), dg)

	require.False(t, result.OK, "a panicking Compile must be treated as a failed attempt, not propagate")
}

func TestCompiler_PreprocessFailureIsTerminal(t *testing.T) {
	root := t.TempDir()
	dg, err := depgraph.Build(root, nil)
	require.NoError(t, err)

	// A file not actually present under root: preprocess (default reader)
	// will fail to open it.
	file := depgraph.File{Kind: depgraph.Source, Path: "missing.c"}

	called := false
	iface := &fakeInterface{
		compile: func(in analysis.CompileInput) analysis.CompileResult {
			called = true
			return analysis.CompileResult{OK: true}
		},
	}

	c := New(file, dg, iface, 8, nil)
	result := c.Run(context.Background(), dg)

	require.False(t, result.OK)
	require.False(t, called, "compile must never run once preprocess has failed")
}
