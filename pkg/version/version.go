// Package version holds build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Version information set via ldflags at build time
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns formatted version information
func Info() string {
	return "Version: " + Version + "\nCommit: " + Commit + "\nBuild Date: " + Date
}

// String returns a one-line summary including the Go runtime.
func String() string {
	return fmt.Sprintf("stackpilot %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
