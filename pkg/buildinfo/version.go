// Package buildinfo reports the version lgceqty was built from.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/sariayt/LGC-EQTY/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/sariayt/LGC-EQTY/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/sariayt/LGC-EQTY/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// A binary installed with "go install module@version" has no ldflags; its
// version is taken from the embedded module information instead.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Resolved returns Version, or the main module version recorded by the Go
// toolchain when Version was not set at link time.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}

// String returns the multi-line build description printed by "lgceqty version".
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\ngo: %s", Resolved(), Commit, Date, runtime.Version())
}

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (%s, %s)\n", Resolved(), Commit, Date)
}
