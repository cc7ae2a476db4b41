// Package version carries build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Version is the traveler release. Overridden at link time.
var Version = "dev"

// Commit is the git revision the binary was built from.
var Commit = "<unknown>"

// Date is the build timestamp.
var Date = "<unknown>"

// String renders a one-line version banner.
func String() string {
	return fmt.Sprintf("traveler %s (commit %s, built %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
