package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String is the one-line banner printed by `relay version`.
func String() string {
	return fmt.Sprintf("relay %s (%s) built %s %s", Version, Commit, BuildDate, runtime.Version())
}
