package project

import (
	"testing"

	elmmake "github.com/abadi199/elm-make"
	"github.com/stretchr/testify/require"
)

func mid(name string) elmmake.ModuleID {
	return elmmake.ModuleID{Package: elmmake.PackageID{Author: "elm-lang", Project: "core"}, Name: name}
}

func TestValidateMissingDependency(t *testing.T) {
	summary := RawSummary{
		mid("A"): {Payload: elmmake.Location{Path: "A.elm"}, Deps: []elmmake.ModuleID{mid("B")}},
	}
	err := Validate(summary)
	require.Error(t, err)
	var notFound *ModuleNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "B", notFound.Name)
}

func TestValidateDuplicateModuleName(t *testing.T) {
	a := elmmake.ModuleID{Package: elmmake.PackageID{Author: "elm-lang", Project: "core"}, Name: "Shared"}
	b := elmmake.ModuleID{Package: elmmake.PackageID{Author: "elm-lang", Project: "other"}, Name: "Shared"}
	summary := RawSummary{
		a: {Payload: elmmake.Location{Path: "core/Shared.elm"}},
		b: {Payload: elmmake.Location{Path: "other/Shared.elm"}},
	}
	err := Validate(summary)
	require.Error(t, err)
	var dup *ModuleDuplicatesError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "Shared", dup.Name)
	require.Len(t, dup.Packages, 2)
}

func TestValidateClean(t *testing.T) {
	summary := RawSummary{
		mid("A"): {Payload: elmmake.Location{Path: "A.elm"}, Deps: []elmmake.ModuleID{mid("B")}},
		mid("B"): {Payload: elmmake.Location{Path: "B.elm"}},
	}
	require.NoError(t, Validate(summary))
}

func TestResolvedReusable(t *testing.T) {
	iface := elmmake.Interface{ModuleName: "A"}
	r := Resolved{Interface: &iface}
	require.True(t, r.Reusable())

	loc := elmmake.Location{Path: "A.elm"}
	r2 := Resolved{Location: &loc}
	require.False(t, r2.Reusable())
}
