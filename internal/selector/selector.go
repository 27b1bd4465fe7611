// Package selector enumerates distinct header-directory-set hypotheses for
// a source file, by walking the dependency graph depth first and
// backtracking through branch points whenever a header is declared
// ambiguously (more than one candidate file could satisfy it).
package selector

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ossminer/crawler/internal/depgraph"
)

// actionKind tags the closed set of stack frames the Selector can push.
// A closed, build-time-known variant set like this is naturally a tagged
// struct rather than an interface hierarchy — there is no plugin author
// ever adding a fifth kind of Action.
type actionKind int

const (
	actStart actionKind = iota
	actForward
	actBackward
	actMany
)

// action is one frame of the Selector's traversal stack.
type action struct {
	kind actionKind

	// Forward, Backward: src -> dest.
	src  depgraph.File
	dest depgraph.File

	// Many: src -> one of many candidates; remaining holds the
	// not-yet-tried candidates, with the current choice at the end.
	remaining []depgraph.File
}

// Selector enumerates header-directory-set hypotheses for one source file.
// Each Selector owns its own traversal state; DependencyGraphs are shared
// read-only across the Selectors of a repository's files.
type Selector struct {
	file depgraph.File
	dg   *depgraph.DependencyGraph

	stack   []action
	seen    map[depgraph.File]depgraph.Declare
	parents map[depgraph.File]depgraph.File

	tries int
	once  bool

	// tried de-duplicates materialized header sets by their canonical
	// (sorted, joined) form, so the Selector never emits the same
	// directory set twice across its lifetime.
	tried map[string]struct{}
}

// New creates a Selector rooted at file, budgeted for at most `tries` calls
// to Step that return a non-nil result.
func New(file depgraph.File, dg *depgraph.DependencyGraph, tries int) *Selector {
	return &Selector{
		file:    file,
		dg:      dg,
		stack:   []action{{kind: actStart}},
		seen:    map[depgraph.File]depgraph.Declare{},
		parents: map[depgraph.File]depgraph.File{},
		tries:   tries,
		tried:   map[string]struct{}{},
	}
}

// Choice is one (file, declare) pair materialized from the current
// traversal state: the header file chosen to satisfy a declaration.
type Choice struct {
	File    depgraph.File
	Declare depgraph.Declare
}

// Step returns the next untried header-directory set, or nil when the
// enumeration is exhausted or the try budget is spent. The returned
// directories are joined onto the dependency graph's root, deduplicated,
// and sorted; a file with no resolved includes yields an empty, non-nil set.
func (s *Selector) Step() []string {
	for s.tries > 0 {
		if s.once {
			if !s.backtrack() {
				return nil
			}
		}
		s.once = true

		for s.explore() {
		}

		choices := s.materialize()
		dirs := headerDirs(s.dg.Root(), choices)
		key := canonicalKey(dirs)

		if _, dup := s.tried[key]; dup {
			// Duplicate canonical set: keep exploring without charging
			// the try budget for it (budget counts attempts actually
			// passed to compile, not Selector iterations).
			continue
		}
		s.tried[key] = struct{}{}
		s.tries--
		return dirs
	}
	return nil
}

// explore performs one depth-first exploration step from the top of the
// stack. It returns true if it made progress (pushed a frame) and should be
// called again; false once the traversal can go no further.
func (s *Selector) explore() bool {
	if len(s.stack) == 0 {
		return false
	}
	top := s.stack[len(s.stack)-1]

	var cur depgraph.File
	switch top.kind {
	case actStart:
		cur = s.file
	case actForward, actBackward:
		cur = top.dest
	case actMany:
		cur = top.remaining[len(top.remaining)-1]
	}

	anyChild := false
	if deps, ok := s.dg.Deps(cur); ok {
		for decl, possible := range deps {
			if s.visit(cur, decl, possible) {
				anyChild = true
				break
			}
		}
	}

	if !anyChild {
		if top.kind == actStart {
			return false
		}
		if top.kind == actBackward && top.dest == s.file {
			return false
		}
		parent := s.parents[cur]
		s.stack = append(s.stack, action{kind: actBackward, src: cur, dest: parent})
	}

	return true
}

// visit tries to move into one of possible's candidates for decl, skipping
// decl if any of its candidates has already been visited (no revisits -> no
// cycles).
func (s *Selector) visit(file depgraph.File, decl depgraph.Declare, possible []depgraph.File) bool {
	for _, p := range possible {
		if _, seen := s.seen[p]; seen {
			return false
		}
	}

	child := possible[len(possible)-1]
	s.seen[child] = decl
	s.parents[child] = file

	if len(possible) == 1 {
		s.stack = append(s.stack, action{kind: actForward, src: file, dest: child})
	} else {
		cp := append([]depgraph.File(nil), possible...)
		s.stack = append(s.stack, action{kind: actMany, src: file, remaining: cp})
	}
	return true
}

// backtrack pops frames until it finds a Many frame with an untried
// alternative, selects the next alternative, and returns true. It returns
// false once backtracking underflows to Start: the enumeration is done.
func (s *Selector) backtrack() bool {
	for {
		if len(s.stack) == 0 {
			return false
		}
		top := s.stack[len(s.stack)-1]

		switch top.kind {
		case actStart:
			return false

		case actMany:
			last := top.remaining[len(top.remaining)-1]
			decl := s.seen[last]
			delete(s.seen, last)
			s.stack = s.stack[:len(s.stack)-1]

			rest := top.remaining[:len(top.remaining)-1]
			if len(rest) > 0 {
				s.stack = append(s.stack, action{kind: actMany, src: top.src, remaining: rest})
				next := rest[len(rest)-1]
				s.parents[next] = top.src
				s.seen[next] = decl
				return true
			}
			// Many frame exhausted: drop it entirely and keep backtracking.

		case actForward:
			delete(s.seen, top.dest)
			s.stack = s.stack[:len(s.stack)-1]

		case actBackward:
			s.stack = s.stack[:len(s.stack)-1]
		}
	}
}

// materialize collects the (file, declare) choice at every Forward/Many
// frame currently on the stack.
func (s *Selector) materialize() []Choice {
	var acc []Choice
	for _, a := range s.stack {
		var dest depgraph.File
		switch a.kind {
		case actForward:
			dest = a.dest
		case actMany:
			dest = a.remaining[len(a.remaining)-1]
		default:
			continue
		}
		if decl, ok := s.seen[dest]; ok {
			acc = append(acc, Choice{File: dest, Declare: decl})
		}
	}
	return acc
}

// headerDirs maps each chosen (file, declare) pair to the include-search
// directory that would make the declaration resolve to that file: strip,
// from the right, as many path components from the candidate's path as the
// declaration's textual path contains. System declarations never yield a
// directory (they are preserved only for logging).
func headerDirs(root string, choices []Choice) []string {
	seen := map[string]struct{}{}
	dirs := []string{}
	for _, c := range choices {
		if c.Declare.Kind == depgraph.System {
			continue
		}
		declComps := strings.Count(filepath.ToSlash(c.Declare.Path), "/") + 1
		fileComps := strings.Split(filepath.ToSlash(c.File.Path), "/")
		if declComps > len(fileComps) {
			declComps = len(fileComps)
		}
		dirComps := fileComps[:len(fileComps)-declComps]
		dir := filepath.Join(root, filepath.Join(dirComps...))
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// canonicalKey returns the deduplication key for an already-sorted
// directory list.
func canonicalKey(dirs []string) string {
	return strings.Join(dirs, "\x00")
}
