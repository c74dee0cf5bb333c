package analyzer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	elmmake "github.com/abadi199/elm-make"
	"github.com/abadi199/elm-make/internal/project"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ArtifactStore for tests that don't need real
// mtime semantics, letting each test dictate exactly which modules are
// "fresh" and what their cached interface contains.
type fakeStore struct {
	fresh      map[elmmake.ModuleID]bool
	interfaces map[elmmake.ModuleID]elmmake.Interface
	corrupt    map[elmmake.ModuleID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fresh:      make(map[elmmake.ModuleID]bool),
		interfaces: make(map[elmmake.ModuleID]elmmake.Interface),
		corrupt:    make(map[elmmake.ModuleID]bool),
	}
}

func (s *fakeStore) Fresh(id elmmake.ModuleID, loc elmmake.Location) (bool, error) {
	return s.fresh[id], nil
}

func (s *fakeStore) Load(id elmmake.ModuleID) (elmmake.Interface, error) {
	if s.corrupt[id] {
		return elmmake.Interface{}, &CorruptedArtifactError{Path: id.Name + ".elmi", Cause: errors.New("bad bytes")}
	}
	return s.interfaces[id], nil
}

func (s *fakeStore) Persist(id elmmake.ModuleID, iface elmmake.Interface, object []byte) error {
	s.interfaces[id] = iface
	s.fresh[id] = true
	return nil
}

func pkg(name string) elmmake.PackageID {
	return elmmake.PackageID{Author: "author", Project: name}
}

func mid(name string) elmmake.ModuleID {
	return elmmake.ModuleID{Package: pkg("project"), Name: name}
}

// chainABC builds the linear A -> B -> C project from spec §8 scenario 1/3/4
// ("A -> B -> C" meaning B imports A and C imports B, so A is the leaf).
func chainABC() project.RawSummary {
	return project.RawSummary{
		mid("A"): {Payload: elmmake.Location{Path: "A.elm"}},
		mid("B"): {Payload: elmmake.Location{Path: "B.elm"}, Deps: []elmmake.ModuleID{mid("A")}},
		mid("C"): {Payload: elmmake.Location{Path: "C.elm"}, Deps: []elmmake.ModuleID{mid("B")}},
	}
}

func TestAnalyzeColdCache(t *testing.T) {
	summary := chainABC()
	store := newFakeStore() // nothing fresh

	build, err := Analyze(summary, store)
	require.NoError(t, err)
	require.Len(t, build, 3)

	// All three must be compiled; A has no blocking deps, B and C do.
	require.Empty(t, build[mid("A")].Blocking)
	require.Equal(t, []elmmake.ModuleID{mid("A")}, build[mid("B")].Blocking)
	require.Equal(t, []elmmake.ModuleID{mid("B")}, build[mid("C")].Blocking)
}

func TestAnalyzeWarmCacheOneTouched(t *testing.T) {
	// Scenario 3: warm cache, only C's source was touched.
	summary := chainABC()
	store := newFakeStore()
	store.fresh[mid("A")] = true
	store.fresh[mid("B")] = true
	store.interfaces[mid("A")] = elmmake.Interface{ModuleName: "A"}
	store.interfaces[mid("B")] = elmmake.Interface{ModuleName: "B"}
	// C is not fresh: its source was touched.

	build, err := Analyze(summary, store)
	require.NoError(t, err)
	require.Len(t, build, 1)
	_, ok := build[mid("C")]
	require.True(t, ok, "only C should require recompilation")
}

func TestAnalyzeWarmCacheLeafTouched(t *testing.T) {
	// Scenario 4: warm cache, leaf A touched -> A, B, C all flagged
	// (staleness propagates transitively to dependents of A).
	summary := chainABC()
	store := newFakeStore()
	store.fresh[mid("B")] = true
	store.fresh[mid("C")] = true
	store.interfaces[mid("B")] = elmmake.Interface{ModuleName: "B"}
	store.interfaces[mid("C")] = elmmake.Interface{ModuleName: "C"}
	// A is not fresh.

	build, err := Analyze(summary, store)
	require.NoError(t, err)
	require.Len(t, build, 3)
}

func TestAnalyzeCycleDetected(t *testing.T) {
	summary := project.RawSummary{
		mid("A"): {Payload: elmmake.Location{Path: "A.elm"}, Deps: []elmmake.ModuleID{mid("B")}},
		mid("B"): {Payload: elmmake.Location{Path: "B.elm"}, Deps: []elmmake.ModuleID{mid("A")}},
	}
	store := newFakeStore()

	build, err := Analyze(summary, store)
	require.Nil(t, build)
	require.Error(t, err)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	require.Len(t, cycle.Modules, 2)
}

func TestAnalyzeCorruptedArtifact(t *testing.T) {
	summary := chainABC()
	store := newFakeStore()
	store.fresh[mid("C")] = true
	store.corrupt[mid("C")] = true

	_, err := Analyze(summary, store)
	require.Error(t, err)
	var corrupted *CorruptedArtifactError
	require.ErrorAs(t, err, &corrupted)
}

func TestAnalyzeNativeModuleNeverRecompiled(t *testing.T) {
	summary := project.RawSummary{
		mid("A"):      {Payload: elmmake.Location{Path: "A.elm"}, Deps: []elmmake.ModuleID{mid("Native.X")}},
		mid("Native.X"): {Payload: elmmake.Location{Path: "Native/X.js", Native: true}},
	}
	store := newFakeStore() // A not fresh

	build, err := Analyze(summary, store)
	require.NoError(t, err)
	require.Len(t, build, 1)
	data, ok := build[mid("A")]
	require.True(t, ok)
	require.Empty(t, data.Blocking)
	_, hasNative := data.Ready[mid("Native.X")]
	require.True(t, hasNative)
}

func TestAnalyzePartitionProperty(t *testing.T) {
	// Every BuildData must partition the module's dependency set into
	// blocking and ready with no overlap and no omission (spec §8).
	summary := project.RawSummary{
		mid("A"): {Payload: elmmake.Location{Path: "A.elm"}, Deps: []elmmake.ModuleID{mid("B"), mid("C")}},
		mid("B"): {Payload: elmmake.Location{Path: "B.elm"}},
		mid("C"): {Payload: elmmake.Location{Path: "C.elm"}},
	}
	store := newFakeStore()
	store.fresh[mid("B")] = true
	store.interfaces[mid("B")] = elmmake.Interface{ModuleName: "B"}

	build, err := Analyze(summary, store)
	require.NoError(t, err)

	data := build[mid("A")]
	seen := make(map[elmmake.ModuleID]bool)
	for _, b := range data.Blocking {
		require.False(t, seen[b], "dependency %v listed twice", b)
		seen[b] = true
	}
	for r := range data.Ready {
		require.False(t, seen[r], "dependency %v in both blocking and ready", r)
		seen[r] = true
	}
	require.Len(t, seen, 2)
}

func TestAnalyzeMissingPackage(t *testing.T) {
	// A dependency present in the summary but with no source path and no
	// cached interface signals a package the crawler couldn't resolve.
	summary := project.RawSummary{
		mid("A"):         {Payload: elmmake.Location{Path: "A.elm"}, Deps: []elmmake.ModuleID{mid("Unresolved")}},
		mid("Unresolved"): {Payload: elmmake.Location{}},
	}
	store := newFakeStore()

	build, err := Analyze(summary, store)
	require.Nil(t, build)
	require.Error(t, err)
	var missing *MissingPackageError
	require.ErrorAs(t, err, &missing)
}

func TestFileStoreFreshness(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	srcPath := filepath.Join(srcDir, "A.elm")
	require.NoError(t, os.WriteFile(srcPath, []byte("module A exposing (..)"), 0o644))

	store := FileStore{StuffDirectory: dir, CompilerVersion: "0.19.1"}
	id := mid("A")
	loc := elmmake.Location{Path: srcPath}

	fresh, err := store.Fresh(id, loc)
	require.NoError(t, err)
	require.False(t, fresh, "no interface persisted yet")

	require.NoError(t, store.Persist(id, elmmake.Interface{ModuleName: "A", Raw: []byte("iface")}, []byte("obj")))

	fresh, err = store.Fresh(id, loc)
	require.NoError(t, err)
	require.True(t, fresh)

	// Touching the source after the interface was written makes it stale.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(srcPath, future, future))

	fresh, err = store.Fresh(id, loc)
	require.NoError(t, err)
	require.False(t, fresh)
}
