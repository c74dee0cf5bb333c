// Package elmmake holds the identity and value types shared by every
// component of the build driver: module identity, source location, and
// the compiled interface a module produces.
package elmmake

import "fmt"

// PackageID identifies an author/project pair, e.g. ("elm-lang", "core").
type PackageID struct {
	Author  string
	Project string
}

func (p PackageID) String() string {
	return fmt.Sprintf("%s/%s", p.Author, p.Project)
}

// ModuleID is the structural identity of a module within one build: a
// package plus a dotted module name, e.g. "Html.Attributes".
type ModuleID struct {
	Package PackageID
	Name    string
}

func (m ModuleID) String() string {
	return fmt.Sprintf("%s %s", m.Package, m.Name)
}

// Location is where a module's source lives on disk, plus whether it is a
// native (non-compilable, pre-supplied) module. Native modules bypass
// compile() but still participate in dependency ordering.
type Location struct {
	Path   string
	Native bool
}

// Interface is the compiler's opaque, immutable summary of a module's
// public surface: sufficient for any dependent module to compile against
// it. The CORE never inspects its contents beyond Digest, which it uses
// only for logging and tests.
type Interface struct {
	ModuleName string
	Digest     string
	Raw        []byte
}
