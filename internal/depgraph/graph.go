package depgraph

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// includePattern matches `#include "path"` and `#include <path>`, capturing
// the opening delimiter and the literal path text.
var includePattern = regexp.MustCompile(`#include\s*(["<])([^">]+)[">]`)

// Deps maps a parsed declaration to the ordered list of header files that
// could satisfy it.
type Deps map[Declare][]File

// DependencyGraph indexes the source and header files of one repository and
// the candidate-header mapping used by the Selector.
//
// An edge from A to B exists only if some #include in A resolves, by the
// trailing-suffix rule below, to B. DependencyGraph owns its storage for the
// lifetime of one repository mine; it is read-only once built.
type DependencyGraph struct {
	root  string
	nodes map[File]struct{}
	edges map[File]Deps

	log *logrus.Logger
}

// abbrevTable maps a trailing-suffix path (e.g. "b/c.h", "c.h") to every
// header file whose path ends in that suffix, in discovery order.
type abbrevTable map[string][]File

// Build walks root, discovers *.c and *.h files, parses their #include
// declarations, and constructs the dependency graph. It fails only when the
// directory walk itself fails: a file that cannot be read simply contributes
// no outgoing edges but remains a node (spec §4.1 ReadError semantics —
// logged, not propagated).
func Build(root string, log *logrus.Logger) (*DependencyGraph, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	nodes := map[File]struct{}{}
	var sources, headers []File

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".c":
			f := File{Kind: Source, Path: rel}
			sources = append(sources, f)
			nodes[f] = struct{}{}
		case ".h":
			f := File{Kind: Header, Path: rel}
			headers = append(headers, f)
			nodes[f] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	abbrev := buildAbbrevTable(headers)

	edges := map[File]Deps{}
	for _, f := range sources {
		addEdges(root, f, abbrev, edges, log)
	}
	for _, f := range headers {
		addEdges(root, f, abbrev, edges, log)
	}

	return &DependencyGraph{root: root, nodes: nodes, edges: edges, log: log}, nil
}

// buildAbbrevTable inserts every non-empty trailing suffix of each header's
// relative path as a key mapping to that header. For "a/b/c.h" this inserts
// "c.h", "b/c.h", and "a/b/c.h". Source files never abbreviate: a #include
// can only ever resolve to a header.
func buildAbbrevTable(headers []File) abbrevTable {
	table := abbrevTable{}
	for _, h := range headers {
		comps := strings.Split(filepath.ToSlash(h.Path), "/")
		for i := len(comps) - 1; i >= 0; i-- {
			suffix := strings.Join(comps[i:], "/")
			table[suffix] = append(table[suffix], h)
		}
	}
	return table
}

// addEdges scans file's contents for #include declarations and records an
// edge to every candidate header the abbreviation table resolves it to.
// Declarations with no candidate are silently dropped, per spec invariant.
func addEdges(root string, file File, abbrev abbrevTable, edges map[File]Deps, log *logrus.Logger) {
	declares, err := parseDeclares(root, file)
	if err != nil {
		log.WithError(err).WithField("file", file.Path).Warn("depgraph: failed to read file, treating as leaf node")
		return
	}

	for _, d := range declares {
		candidates, ok := abbrev[filepath.ToSlash(d.Path)]
		if !ok || len(candidates) == 0 {
			continue
		}
		if edges[file] == nil {
			edges[file] = Deps{}
		}
		edges[file][d] = candidates
	}
}

// parseDeclares scans a file line by line for #include directives.
func parseDeclares(root string, file File) ([]Declare, error) {
	f, err := os.Open(filepath.Join(root, file.Path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var acc []Declare
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m := includePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kind := User
		if m[1] == "<" {
			kind = System
		}
		acc = append(acc, Declare{Kind: kind, Path: m[2]})
	}
	// A scan error still yields whatever declarations were found so far;
	// callers don't treat partial reads as fatal.
	return acc, scanner.Err()
}

// SourceFiles returns all source files discovered in the graph, in a
// deterministic (path-sorted) order so that Miner scheduling and tests are
// reproducible.
func (g *DependencyGraph) SourceFiles() []File {
	var acc []File
	for f := range g.nodes {
		if f.Kind == Source {
			acc = append(acc, f)
		}
	}
	sort.Slice(acc, func(i, j int) bool { return acc[i].Path < acc[j].Path })
	return acc
}

// Root returns the repository root directory this graph was built from.
func (g *DependencyGraph) Root() string {
	return g.root
}

// Deps returns the declare->candidates mapping for file, or false if none of
// file's includes resolved to a candidate header.
func (g *DependencyGraph) Deps(file File) (Deps, bool) {
	d, ok := g.edges[file]
	return d, ok
}
