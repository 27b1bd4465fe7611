package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFatalKinds(t *testing.T) {
	require.True(t, ConfigInvalid.Fatal())
	require.True(t, InitFailed.Fatal())
	require.False(t, CloneFailed.Fatal())
	require.False(t, CompileFailed.Fatal())
	require.False(t, InternFailed.Fatal())
	require.False(t, DbTransient.Fatal())
	require.False(t, PanicCaught.Fatal())
}

func TestIsFatal_UnwrapsWrappedError(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(base, ConfigInvalid, "bad config")

	require.True(t, IsFatal(wrapped))
	require.ErrorIs(t, errorsUnwrap(wrapped), base)
}

func errorsUnwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func TestIsFatal_FalseForNonFatalKind(t *testing.T) {
	err := New(CloneFailed, "clone failed")
	require.False(t, IsFatal(err))
}

func TestWithContext(t *testing.T) {
	err := New(DbTransient, "retry").WithContext("repo_id", 42)
	require.Equal(t, 42, err.Context["repo_id"])
	require.Contains(t, err.DetailedString(), "repo_id=42")
}
