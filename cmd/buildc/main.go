// Command buildc is a thin demonstration driver wiring the project,
// analyzer, scheduler, and timeline packages together against a toy
// on-disk project. It is scaffolding to exercise the library end to end,
// not the top-level command-line front-end (spec §1 places that out of
// scope): there is no real Elm compiler behind it, and its import scanner
// is a stand-in for the out-of-scope module-graph crawler.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	elmmake "github.com/abadi199/elm-make"
	"github.com/abadi199/elm-make/internal/analyzer"
	"github.com/abadi199/elm-make/internal/project"
	"github.com/abadi199/elm-make/internal/scheduler"
	"github.com/abadi199/elm-make/internal/timeline"
	"golang.org/x/xerrors"
)

var (
	jobs            = flag.Int("j", runtime.NumCPU(), "number of parallel workers")
	stuffDirectory  = flag.String("stuff-dir", "elm-stuff", "artifact cache root")
	compilerVersion = flag.String("compiler-version", "0.19.1", "compiler version used to namespace cached artifacts")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: buildc [flags] <project-dir>")
		os.Exit(2)
	}
	if err := run(flag.Arg(0)); err != nil {
		log.Fatalf("buildc: %v", err)
	}
}

func run(dir string) error {
	summary, err := scanProject(dir)
	if err != nil {
		return xerrors.Errorf("scanning project: %w", err)
	}

	store := analyzer.FileStore{
		StuffDirectory:  *stuffDirectory,
		CompilerVersion: *compilerVersion,
	}

	rec := timeline.New()
	var build project.BuildSummary
	err = rec.Phase("analyze", func() error {
		var analyzeErr error
		build, analyzeErr = analyzer.Analyze(summary, store)
		return analyzeErr
	})
	if err != nil {
		return xerrors.Errorf("analyzing project: %w", err)
	}

	log.Printf("%d of %d modules need recompilation", len(build), len(summary))

	var status timeline.StatusLine
	completed, err := scheduler.Run(context.Background(), build, stubCompile, scheduler.Options{
		Workers:  *jobs,
		Store:    store,
		Timeline: rec,
		OnProgress: func(done, total int) {
			status.Update(fmt.Sprintf("compiled %d/%d", done, total))
		},
	})
	status.Done()
	if err != nil {
		return xerrors.Errorf("building: %w", err)
	}

	log.Printf("built %d modules", len(completed))
	timeline.Render(os.Stdout, rec.Root)
	return nil
}

// stubCompile stands in for the out-of-scope compiler front-end: it
// "compiles" a module by echoing its source text back as both the
// interface bytes and the object bytes, just enough to produce a distinct
// interface per module for the demo to report on.
func stubCompile(ctx context.Context, id elmmake.ModuleID, loc elmmake.Location, ready map[elmmake.ModuleID]elmmake.Interface) (scheduler.CompileResult, error) {
	raw, err := os.ReadFile(loc.Path)
	if err != nil {
		return scheduler.CompileResult{}, err
	}
	return scheduler.CompileResult{
		Interface: elmmake.Interface{ModuleName: id.Name, Raw: raw},
		Object:    raw,
	}, nil
}

var (
	moduleDeclRE = regexp.MustCompile(`^\s*(?:port\s+)?module\s+([\w.]+)`)
	importRE     = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
)

// expectedModuleName derives the dotted module name a source file's path
// implies, Elm's own convention of mirroring module names onto directory
// structure: "dir/Html/Attributes.elm" implies "Html.Attributes".
func expectedModuleName(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return ""
	}
	rel = strings.TrimSuffix(rel, ".elm")
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return strings.Join(parts, ".")
}

// scanProject is a minimal stand-in for the out-of-scope module-graph
// crawler: it walks dir for *.elm files and extracts the declared module
// name and its direct imports via regexp, good enough to exercise the
// analyzer and scheduler but not a real Elm parser.
func scanProject(dir string) (project.RawSummary, error) {
	summary := make(project.RawSummary)
	pkg := elmmake.PackageID{Author: "local", Project: filepath.Base(dir)}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".elm") {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		var moduleName string
		var deps []elmmake.ModuleID
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if m := moduleDeclRE.FindStringSubmatch(line); m != nil {
				moduleName = m[1]
				continue
			}
			if m := importRE.FindStringSubmatch(line); m != nil {
				deps = append(deps, elmmake.ModuleID{Package: pkg, Name: m[1]})
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if moduleName == "" {
			return xerrors.Errorf("%s: no module declaration found", path)
		}
		if expected := expectedModuleName(dir, path); expected != moduleName {
			return &project.ModuleNameMismatchError{Path: path, Expected: expected, Actual: moduleName}
		}

		id := elmmake.ModuleID{Package: pkg, Name: moduleName}
		summary[id] = project.ProjectData[elmmake.Location]{
			Payload: elmmake.Location{Path: path},
			Deps:    deps,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Drop dependencies on modules outside the scanned project (e.g. core
	// library imports); the CORE only builds what the crawler supplied.
	for id, data := range summary {
		var kept []elmmake.ModuleID
		for _, dep := range data.Deps {
			if _, ok := summary[dep]; ok {
				kept = append(kept, dep)
			}
		}
		data.Deps = kept
		summary[id] = data
	}

	return summary, nil
}
