package timeline

import (
	"fmt"
	"sync"
	"time"
)

// StatusLine is a single overwritable line of terminal status, used to
// show which phase is currently open while a long build runs. It is a
// pure logging nicety: it never affects the Phase tree a Recorder
// produces.
type StatusLine struct {
	mu   sync.Mutex
	last time.Time
}

// Update prints msg in place of the previous status, throttled to avoid
// the refresh itself slowing the build down. It is a no-op when stdout
// isn't a terminal.
func (s *StatusLine) Update(msg string) {
	if !isTerminal {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.last) < 100*time.Millisecond {
		return
	}
	s.last = time.Now()
	fmt.Printf("\r\033[K%s", msg)
}

// Done clears the status line.
func (s *StatusLine) Done() {
	if !isTerminal {
		return
	}
	fmt.Print("\r\033[K")
}
