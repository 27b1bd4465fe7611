// Package depgraph builds the header-dependency graph for a single
// repository: every source and header file under a root directory, and the
// mapping from each #include declaration to the header files that could
// plausibly satisfy it.
package depgraph

// FileKind distinguishes a compilation unit from a header.
type FileKind int

const (
	// Source is a translation unit (*.c).
	Source FileKind = iota
	// Header is an included file (*.h).
	Header
)

func (k FileKind) String() string {
	if k == Source {
		return "source"
	}
	return "header"
}

// File is a source or header file, identified by its path relative to the
// repository root. Comparable, so it can be used directly as a map key.
type File struct {
	Kind FileKind
	Path string
}

// DeclareKind distinguishes a quoted ("user") include from an angle-bracket
// ("system") include.
type DeclareKind int

const (
	// User is a `#include "..."` declaration.
	User DeclareKind = iota
	// System is a `#include <...>` declaration.
	System
)

// Declare is a single #include directive: its kind and the literal text
// between the delimiters.
type Declare struct {
	Kind DeclareKind
	Path string
}
