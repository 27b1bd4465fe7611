package miner

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ossminer/crawler/internal/analysis"
)

type fakeInterface struct {
	calls int32
}

func (f *fakeInterface) Init(ctx context.Context, in analysis.InitInput) error { return nil }

func (f *fakeInterface) Preprocess(ctx context.Context, in analysis.PreInput) (string, error) {
	return analysis.DefaultPreprocess(in)
}

func (f *fakeInterface) Compile(ctx context.Context, in analysis.CompileInput) analysis.CompileResult {
	atomic.AddInt32(&f.calls, 1)
	return analysis.CompileResult{OK: true, Data: in.File, Log: "ok: " + in.File + "\n"}
}

func (f *fakeInterface) Intern(ctx context.Context, in analysis.InternInput) error { return nil }

func writeSources(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		path := filepath.Join(root, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("int x;\n"), 0o644))
	}
}

func TestMiner_MinesAllFilesAndCompressesLog(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, "a.c", "b.c", "sub/c.c")

	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "repo.log")

	iface := &fakeInterface{}
	m := New(root, iface, Config{Threads: 2, Tries: 4}, logPath, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, result.NFiles)
	require.Equal(t, 3, result.NSuccess)
	require.Equal(t, 0, result.NError)
	require.Len(t, result.Matches, 3)

	_, err = os.Stat(logPath)
	require.True(t, os.IsNotExist(err), "raw log must be replaced by the compressed archive")

	_, err = os.Stat(logPath + ".tar.gz")
	require.NoError(t, err, "compressed log archive must exist after a successful mine")
}

func TestMiner_EmptyRepoProducesZeroResult(t *testing.T) {
	root := t.TempDir()
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "empty.log")

	iface := &fakeInterface{}
	m := New(root, iface, Config{Threads: 4, Tries: 4}, logPath, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.NFiles)
	require.Empty(t, result.Matches)
}
