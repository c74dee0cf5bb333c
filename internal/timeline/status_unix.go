//go:build unix

package timeline

import (
	"os"

	"golang.org/x/sys/unix"
)

// isTerminal reports whether stdout is attached to a terminal, the same
// unix.IoctlGetTermios(..., unix.TCGETS) check distri's batch scheduler
// uses to decide whether to print a live-updating status line.
var isTerminal = func() bool {
	_, err := unix.IoctlGetTermios(int(os.Stdout.Fd()), unix.TCGETS)
	return err == nil
}()
