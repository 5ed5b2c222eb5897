package main

import (
	"runtime/debug"
	"strings"
)

// Version is set from the (usually canonical) semantic version tag Go
// bakes into the binary's build info, since this command is consumed in
// source form rather than as a binary artifact and we can't rely on a
// build script passing -ldflags -X.
var Version string = "v0.0.0-unset"

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if strings.Contains(bi.Main.Path, "systrument") && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
		return
	}
	for _, dep := range bi.Deps {
		if strings.Contains(dep.Path, "systrument") {
			Version = dep.Version
			return
		}
	}
}
