// Package buildinfo carries build metadata injected via ldflags.
package buildinfo

var (
	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
