package selector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ossminer/crawler/internal/depgraph"
)

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

func TestSelector_NoIncludesYieldsOneEmptySet(t *testing.T) {
	dg := buildGraph(t, map[string]string{"main.c": "int main(){}"})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	sel := New(file, dg, 8)
	first := sel.Step()
	require.NotNil(t, first)
	require.Empty(t, first)

	require.Nil(t, sel.Step())
}

func TestSelector_AmbiguousIncludeYieldsTwoDistinctSets(t *testing.T) {
	dg := buildGraph(t, map[string]string{
		"main.c":   "#include \"foo.h\"\n",
		"a/foo.h":  "",
		"b/foo.h":  "",
	})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	sel := New(file, dg, 8)
	first := sel.Step()
	require.NotNil(t, first)
	require.Len(t, first, 1)

	second := sel.Step()
	require.NotNil(t, second)
	require.Len(t, second, 1)

	require.NotEqual(t, first[0], second[0])

	require.Nil(t, sel.Step())
}

func TestSelector_TryBudgetLimitsAttempts(t *testing.T) {
	dg := buildGraph(t, map[string]string{
		"main.c":  "#include \"foo.h\"\n",
		"a/foo.h": "",
		"b/foo.h": "",
	})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	sel := New(file, dg, 1)
	require.NotNil(t, sel.Step())
	require.Nil(t, sel.Step(), "budget of 1 must stop after the first distinct set")
}

func TestSelector_CycleDoesNotInfiniteLoop(t *testing.T) {
	dg := buildGraph(t, map[string]string{
		"main.c": "#include \"a.h\"\n",
		"a.h":    "#include \"b.h\"\n",
		"b.h":    "#include \"a.h\"\n",
	})
	file := depgraph.File{Kind: depgraph.Source, Path: "main.c"}

	sel := New(file, dg, 8)
	// Must terminate; the exact directory set doesn't matter here.
	_ = sel.Step()
}
