package analyzer

import (
	"fmt"
	"os"
	"path/filepath"

	elmmake "github.com/abadi199/elm-make"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// ArtifactStore is the persistence boundary fixed by spec §6: one
// interface file and one object file per module, rooted at
// <stuffDirectory>/build-artifacts/<compilerVersion>/<author>/<project>/<Module>.{elmi,elmo}.
type ArtifactStore interface {
	// Fresh reports whether a persisted interface exists for id and its
	// mtime is at least as recent as loc's source mtime.
	Fresh(id elmmake.ModuleID, loc elmmake.Location) (bool, error)
	// Load reads a previously persisted interface. Callers should only
	// call Load after Fresh has reported true; an existing-but-unreadable
	// file surfaces as CorruptedArtifactError.
	Load(id elmmake.ModuleID) (elmmake.Interface, error)
	// Persist atomically writes the interface and object artifacts for a
	// freshly compiled module.
	Persist(id elmmake.ModuleID, iface elmmake.Interface, object []byte) error
}

const (
	interfaceExt = ".elmi"
	objectExt    = ".elmo"
)

// FileStore is the on-disk ArtifactStore: plain files, one per module,
// written atomically via renameio to avoid torn writes being observed as
// "fresh" by a concurrent or subsequent build.
type FileStore struct {
	StuffDirectory  string
	CompilerVersion string
}

func (s FileStore) dir(pkg elmmake.PackageID) string {
	return filepath.Join(s.StuffDirectory, "build-artifacts", s.CompilerVersion, pkg.Author, pkg.Project)
}

// InterfacePath returns the .elmi path for id.
func (s FileStore) InterfacePath(id elmmake.ModuleID) string {
	return filepath.Join(s.dir(id.Package), id.Name+interfaceExt)
}

// ObjectPath returns the .elmo path for id.
func (s FileStore) ObjectPath(id elmmake.ModuleID) string {
	return filepath.Join(s.dir(id.Package), id.Name+objectExt)
}

func (s FileStore) Fresh(id elmmake.ModuleID, loc elmmake.Location) (bool, error) {
	ifaceInfo, err := os.Stat(s.InterfacePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Errorf("stat interface for %s: %w", id, err)
	}
	srcInfo, err := os.Stat(loc.Path)
	if err != nil {
		// Source missing is the crawler's problem, not the analyzer's; a
		// module with no readable source can never be fresh.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Errorf("stat source for %s: %w", id, err)
	}
	return !ifaceInfo.ModTime().Before(srcInfo.ModTime()), nil
}

func (s FileStore) Load(id elmmake.ModuleID) (elmmake.Interface, error) {
	path := s.InterfacePath(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		return elmmake.Interface{}, &CorruptedArtifactError{Path: path, Cause: err}
	}
	return elmmake.Interface{
		ModuleName: id.Name,
		Digest:     digest(raw),
		Raw:        raw,
	}, nil
}

func (s FileStore) Persist(id elmmake.ModuleID, iface elmmake.Interface, object []byte) error {
	if err := os.MkdirAll(s.dir(id.Package), 0o755); err != nil {
		return xerrors.Errorf("mkdir artifact dir for %s: %w", id, err)
	}
	if err := renameio.WriteFile(s.InterfacePath(id), iface.Raw, 0o644); err != nil {
		return xerrors.Errorf("persist interface for %s: %w", id, err)
	}
	if err := renameio.WriteFile(s.ObjectPath(id), object, 0o644); err != nil {
		return xerrors.Errorf("persist object for %s: %w", id, err)
	}
	return nil
}

func digest(b []byte) string {
	// A stable, cheap fingerprint for logs and tests; the compiler's own
	// interface format, not this digest, is what downstream modules
	// actually compile against.
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}
