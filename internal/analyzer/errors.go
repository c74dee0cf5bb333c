package analyzer

import (
	"fmt"
	"strings"

	elmmake "github.com/abadi199/elm-make"
)

// CycleError is raised by Phase B when the dependency graph contains a
// strongly-connected component of size > 1, or a self-loop.
type CycleError struct {
	Modules []elmmake.ModuleID
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Modules))
	for i, m := range e.Modules {
		names[i] = m.String()
	}
	return fmt.Sprintf("import cycle: %s", strings.Join(names, " -> "))
}

// CorruptedArtifactError is raised when an interface file exists and is
// fresh but cannot be read back.
type CorruptedArtifactError struct {
	Path  string
	Cause error
}

func (e *CorruptedArtifactError) Error() string {
	return fmt.Sprintf("corrupted build artifact at %s (delete the build-artifacts directory and retry): %v", e.Path, e.Cause)
}

func (e *CorruptedArtifactError) Unwrap() error { return e.Cause }

// MissingPackageError is raised when a non-native module in the summary
// has no source path; whether the artifact store holds anything for its
// package is not checked.
type MissingPackageError struct {
	Name string
}

func (e *MissingPackageError) Error() string {
	return fmt.Sprintf("package %q is not available; install it before building", e.Name)
}
