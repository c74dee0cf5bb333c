//go:build !unix

package timeline

// isTerminal is always false on platforms without the unix ioctl
// terminal check; StatusLine degrades to a no-op there.
var isTerminal = false
