// Package project holds the input/output data model of the build: the
// project summary the out-of-scope crawler hands to the analyzer, and the
// build summary the analyzer hands to the scheduler (spec §3).
package project

import (
	"fmt"
	"sort"

	"github.com/abadi199/elm-make"
)

// ProjectData is one module's payload plus its direct dependency list.
// T is instantiated as the project summary moves through the analyzer's
// phases: Location (raw input), LoadedData (after Phase A), and Resolved
// (after Phase B/C).
type ProjectData[T any] struct {
	Payload T
	Deps    []elmmake.ModuleID
}

// ProjectSummary maps every module in the project to its data.
type ProjectSummary[T any] map[elmmake.ModuleID]ProjectData[T]

// RawSummary is the crawler's output: a location per module, nothing else
// known yet.
type RawSummary = ProjectSummary[elmmake.Location]

// LoadedData is a module's payload after Phase A has attempted to load a
// persisted interface for it.
type LoadedData struct {
	Location  elmmake.Location
	Interface *elmmake.Interface // nil if no fresh interface was found
}

// LoadedSummary is the project summary after Phase A.
type LoadedSummary = ProjectSummary[LoadedData]

// Resolved is a module's payload after Phase B's staleness propagation:
// exactly one of Interface (reusable) or Location (must recompile) is set.
type Resolved struct {
	Interface *elmmake.Interface
	Location  *elmmake.Location
}

// Reusable reports whether this module survived Phase B with its prior
// interface intact.
func (r Resolved) Reusable() bool {
	return r.Interface != nil
}

// ResolvedSummary is the project summary after Phase B.
type ResolvedSummary = ProjectSummary[Resolved]

// BuildData describes one module that must be compiled: the dependencies
// still pending (blocking), the dependencies already satisfied (ready),
// and where to read the module's source from.
//
// Invariant: blocking and the keys of ready partition the module's
// dependency set.
type BuildData struct {
	Blocking []elmmake.ModuleID
	Ready    map[elmmake.ModuleID]elmmake.Interface
	Location elmmake.Location
}

// BuildSummary is the subset of the project that requires recompilation,
// keyed by module. Modules that survived Phase B are not present here.
type BuildSummary map[elmmake.ModuleID]BuildData

// Validate checks a raw summary for structural problems the analyzer
// would otherwise discover piecemeal: a dependency naming a module absent
// from the summary (ModuleNotFoundError), and two distinct packages
// claiming the same module name (ModuleDuplicatesError). It does not
// check freshness or cycles — that is the analyzer's job.
func Validate(summary RawSummary) error {
	byName := make(map[string][]elmmake.ModuleID)
	for id := range summary {
		byName[id.Name] = append(byName[id.Name], id)
	}
	for name, ids := range byName {
		if len(ids) <= 1 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool {
			return ids[i].Package.String() < ids[j].Package.String()
		})
		var paths []string
		var packages []elmmake.PackageID
		for _, id := range ids {
			paths = append(paths, summary[id].Payload.Path)
			packages = append(packages, id.Package)
		}
		return &ModuleDuplicatesError{Name: name, Paths: paths, Packages: packages}
	}

	for id, data := range summary {
		for _, dep := range data.Deps {
			if _, ok := summary[dep]; !ok {
				return &ModuleNotFoundError{Name: dep.Name, Parent: &id}
			}
		}
	}
	return nil
}

// ModuleNotFoundError is raised when a dependency references a module
// absent from the project summary.
type ModuleNotFoundError struct {
	Name   string
	Parent *elmmake.ModuleID
}

func (e *ModuleNotFoundError) Error() string {
	if e.Parent != nil {
		return fmt.Sprintf("module %q imported by %s was not found in the project", e.Name, e.Parent)
	}
	return fmt.Sprintf("module %q was not found in the project", e.Name)
}

// ModuleDuplicatesError is raised when two or more packages declare a
// module of the same dotted name.
type ModuleDuplicatesError struct {
	Name     string
	Parent   *elmmake.ModuleID
	Paths    []string
	Packages []elmmake.PackageID
}

func (e *ModuleDuplicatesError) Error() string {
	return fmt.Sprintf("module %q is defined by %d packages: %v (paths: %v)", e.Name, len(e.Packages), e.Packages, e.Paths)
}

// ModuleNameMismatchError is raised when a source file's declared module
// name does not match the name the project summary expected of it.
type ModuleNameMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ModuleNameMismatchError) Error() string {
	return fmt.Sprintf("%s: expected module name %q, got %q", e.Path, e.Expected, e.Actual)
}
