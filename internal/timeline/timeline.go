// Package timeline implements the nested phase-timing recorder (spec
// §4.4): a tree of tagged wall-clock intervals, built by wrapping any
// task in Phase, and rendered as indented percentages of parent duration.
//
// A Recorder is single-writer: only the scheduler's driver goroutine
// should call Phase on it. Workers never touch it, per the Design Notes.
package timeline

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Phase is one tagged time interval, with any nested phases recorded
// while its task ran.
type Phase struct {
	Tag      string
	Start    time.Time
	End      time.Time
	Children []*Phase
}

// Duration returns End minus Start.
func (p *Phase) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Recorder tracks the currently-open phase stack for one goroutine (the
// driver) and accumulates the finished tree under Root once the
// outermost Phase call returns.
type Recorder struct {
	Root  *Phase
	stack []*Phase
}

// New returns a Recorder with no phases recorded yet.
func New() *Recorder {
	return &Recorder{}
}

// Phase records the wall-clock duration of task, and any nested Phase
// calls made (directly or transitively) during task, as children of the
// new phase, and returns task's error. The first call on a fresh Recorder
// becomes Root.
func (r *Recorder) Phase(tag string, task func() error) error {
	p := &Phase{Tag: tag, Start: now()}
	if len(r.stack) > 0 {
		parent := r.stack[len(r.stack)-1]
		parent.Children = append(parent.Children, p)
	} else {
		r.Root = p
	}
	r.stack = append(r.stack, p)

	err := task()

	p.End = now()
	r.stack = r.stack[:len(r.stack)-1]
	return err
}

// Observe records an already-finished interval (start, end] as a child of
// whatever phase is currently open, without pushing it onto the stack.
// This is how the scheduler's driver attributes a worker's compile
// duration to the timeline: the worker only measures its own start/end
// and reports them in its completion message, it never calls Phase
// itself, keeping the phase stack single-writer as intended.
func (r *Recorder) Observe(tag string, start, end time.Time) {
	p := &Phase{Tag: tag, Start: start, End: end}
	if len(r.stack) > 0 {
		parent := r.stack[len(r.stack)-1]
		parent.Children = append(parent.Children, p)
	} else if r.Root == nil {
		r.Root = p
	} else {
		r.Root.Children = append(r.Root.Children, p)
	}
}

// now is a var so tests can fake the clock deterministically.
var now = time.Now

// Render writes the phase tree to w as "<percent>% - <tag>" lines
// indented by depth, percent being 100*(child/parent) truncated to an
// integer. The root line's percent is always 100.
func Render(w io.Writer, root *Phase) {
	if root == nil {
		return
	}
	renderPhase(w, root, root.Duration(), 0)
}

func renderPhase(w io.Writer, p *Phase, parentDur time.Duration, depth int) {
	percent := 100
	if parentDur > 0 {
		percent = int(100 * p.Duration() / parentDur)
	}
	fmt.Fprintf(w, "%s%d%% - %s\n", strings.Repeat("  ", depth), percent, p.Tag)
	for _, c := range p.Children {
		renderPhase(w, c, p.Duration(), depth+1)
	}
}
