// Package analyzer implements the interface-staleness analyzer (spec
// §4.2): it turns a raw project summary into a build summary by loading
// cached interfaces, propagating staleness transitively across the
// dependency graph, and partitioning each still-stale module's
// dependencies into blocking and ready sets.
package analyzer

import (
	"sort"

	elmmake "github.com/abadi199/elm-make"
	"github.com/abadi199/elm-make/internal/project"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Analyze runs phases A, B, and C in order, returning the set of modules
// that must be recompiled. store provides the persisted-interface I/O for
// Phase A.
func Analyze(summary project.RawSummary, store ArtifactStore) (project.BuildSummary, error) {
	if err := project.Validate(summary); err != nil {
		return nil, err
	}

	loaded, err := loadIfFresh(summary, store)
	if err != nil {
		return nil, err
	}

	order, err := topologicalOrder(summary)
	if err != nil {
		return nil, err
	}

	resolved := propagateStaleness(summary, loaded, order)

	return partitionReadiness(summary, resolved), nil
}

// loadIfFresh is Phase A: attempt to load a persisted interface for every
// non-native module whose artifact is fresh relative to its source.
// Native modules never go through the artifact store; they're always
// considered available.
func loadIfFresh(summary project.RawSummary, store ArtifactStore) (project.LoadedSummary, error) {
	loaded := make(project.LoadedSummary, len(summary))
	for id, data := range summary {
		loc := data.Payload
		if loc.Native {
			iface := elmmake.Interface{ModuleName: id.Name, Digest: "native"}
			loaded[id] = project.ProjectData[project.LoadedData]{
				Payload: project.LoadedData{Location: loc, Interface: &iface},
				Deps:    data.Deps,
			}
			continue
		}
		if loc.Path == "" {
			// No source was supplied: the crawler is signalling a package
			// it couldn't resolve (e.g. one not yet installed), distinct
			// from ModuleNotFoundError, which is for a dependency missing
			// from the summary entirely. The artifact store is not consulted.
			return nil, &MissingPackageError{Name: id.Package.String()}
		}

		fresh, err := store.Fresh(id, loc)
		if err != nil {
			return nil, err
		}
		var iface *elmmake.Interface
		if fresh {
			got, err := store.Load(id)
			if err != nil {
				return nil, err
			}
			iface = &got
		}
		loaded[id] = project.ProjectData[project.LoadedData]{
			Payload: project.LoadedData{Location: loc, Interface: iface},
			Deps:    data.Deps,
		}
	}
	return loaded, nil
}

// topologicalOrder builds the dependency graph (an edge from each
// dependency to its dependent, so a topological sort visits dependencies
// before dependents) and returns that order, or a CycleError if the graph
// is not acyclic.
func topologicalOrder(summary project.RawSummary) ([]elmmake.ModuleID, error) {
	g := simple.NewDirectedGraph()
	nodeOf := make(map[elmmake.ModuleID]int64, len(summary))
	idOf := make(map[int64]elmmake.ModuleID, len(summary))

	ids := make([]elmmake.ModuleID, 0, len(summary))
	for id := range summary {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var next int64
	for _, id := range ids {
		nodeOf[id] = next
		idOf[next] = id
		g.AddNode(simpleNode(next))
		next++
	}
	for _, id := range ids {
		for _, dep := range summary[id].Deps {
			if dep == id {
				// simple.DirectedGraph cannot hold a self edge; a module
				// importing itself is a cycle of one.
				return nil, &CycleError{Modules: []elmmake.ModuleID{id}}
			}
			// edge dep -> id: dep must be visited before id
			g.SetEdge(g.NewEdge(simpleNode(nodeOf[dep]), simpleNode(nodeOf[id])))
		}
	}

	order, err := topo.Sort(g)
	if err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok || len(uo) == 0 {
			return nil, err
		}
		// Report the first cyclic component, in deterministic (sorted)
		// member order.
		component := uo[0]
		members := make([]elmmake.ModuleID, len(component))
		for i, n := range component {
			members[i] = idOf[n.ID()]
		}
		sort.Slice(members, func(i, j int) bool { return members[i].String() < members[j].String() })
		return nil, &CycleError{Modules: members}
	}

	result := make([]elmmake.ModuleID, len(order))
	for i, n := range order {
		result[i] = idOf[n.ID()]
	}
	return result, nil
}

// propagateStaleness is Phase B: a single forward pass in topological
// order. A module's interface is retained only if it was loaded in Phase
// A and every direct dependency is also retained.
func propagateStaleness(summary project.RawSummary, loaded project.LoadedSummary, order []elmmake.ModuleID) project.ResolvedSummary {
	resolved := make(project.ResolvedSummary, len(summary))
	retained := make(map[elmmake.ModuleID]bool, len(summary))

	for _, id := range order {
		data := loaded[id]
		ok := data.Payload.Interface != nil
		if ok {
			for _, dep := range summary[id].Deps {
				if !retained[dep] {
					ok = false
					break
				}
			}
		}
		if ok {
			retained[id] = true
			resolved[id] = project.ProjectData[project.Resolved]{
				Payload: project.Resolved{Interface: data.Payload.Interface},
				Deps:    summary[id].Deps,
			}
		} else {
			loc := data.Payload.Location
			resolved[id] = project.ProjectData[project.Resolved]{
				Payload: project.Resolved{Location: &loc},
				Deps:    summary[id].Deps,
			}
		}
	}
	return resolved
}

// partitionReadiness is Phase C: for every module still flagged for
// recompilation, split its dependency list into blocking and ready.
func partitionReadiness(summary project.RawSummary, resolved project.ResolvedSummary) project.BuildSummary {
	build := make(project.BuildSummary)
	for id, data := range resolved {
		if data.Payload.Reusable() {
			continue
		}
		var blocking []elmmake.ModuleID
		ready := make(map[elmmake.ModuleID]elmmake.Interface)
		for _, dep := range summary[id].Deps {
			depData := resolved[dep]
			if depData.Payload.Reusable() {
				ready[dep] = *depData.Payload.Interface
			} else {
				blocking = append(blocking, dep)
			}
		}
		build[id] = project.BuildData{
			Blocking: blocking,
			Ready:    ready,
			Location: *data.Payload.Location,
		}
	}
	return build
}

// simpleNode adapts an int64 to graph.Node for use with gonum's
// simple.DirectedGraph.
type simpleNode int64

func (n simpleNode) ID() int64 { return int64(n) }

var _ graph.Node = simpleNode(0)
