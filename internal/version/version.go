// Package version holds build information injected with
//
//	go build -ldflags "-X slider-solver/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info describes the running binary.
type Info struct {
	Program   string `json:"program"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information for program.
func Get(program string) Info {
	return Info{
		Program:   program,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String formats the information for -version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", i.Program, i.Version, i.Commit, i.BuildTime, i.GoVersion)
}
