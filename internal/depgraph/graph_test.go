package depgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuild_SingleFileNoIncludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "int main() { return 0; }\n")

	dg, err := Build(root, nil)
	require.NoError(t, err)

	sources := dg.SourceFiles()
	require.Len(t, sources, 1)
	require.Equal(t, "main.c", sources[0].Path)

	_, ok := dg.Deps(sources[0])
	require.False(t, ok)
}

func TestBuild_ResolvesQuotedInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "#include \"lib/foo.h\"\n")
	writeFile(t, root, "lib/foo.h", "void foo(void);\n")

	dg, err := Build(root, nil)
	require.NoError(t, err)

	main := File{Kind: Source, Path: "main.c"}
	deps, ok := dg.Deps(main)
	require.True(t, ok)
	require.Len(t, deps, 1)

	for decl, candidates := range deps {
		require.Equal(t, User, decl.Kind)
		require.Equal(t, "lib/foo.h", decl.Path)
		require.Len(t, candidates, 1)
		require.Equal(t, "lib/foo.h", candidates[0].Path)
	}
}

func TestBuild_AmbiguousIncludeYieldsMultipleCandidates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "#include \"foo.h\"\n")
	writeFile(t, root, "a/foo.h", "")
	writeFile(t, root, "b/foo.h", "")

	dg, err := Build(root, nil)
	require.NoError(t, err)

	main := File{Kind: Source, Path: "main.c"}
	deps, ok := dg.Deps(main)
	require.True(t, ok)

	for _, candidates := range deps {
		require.Len(t, candidates, 2)
	}
}

func TestBuild_SystemIncludeWithNoMatchIsDropped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "#include <stdio.h>\n")

	dg, err := Build(root, nil)
	require.NoError(t, err)

	main := File{Kind: Source, Path: "main.c"}
	_, ok := dg.Deps(main)
	require.False(t, ok, "unresolved declares should not produce an edge")
}

func TestBuild_UnresolvedIncludeIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "#include \"missing.h\"\n")

	dg, err := Build(root, nil)
	require.NoError(t, err)
	require.Len(t, dg.SourceFiles(), 1)
}
