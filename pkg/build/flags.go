// SPDX-License-Identifier: MIT
//
// Package build exposes the version metadata of the fadeout binary. Release
// builds inject it with linker flags:
//
//	go build -ldflags "-X fadeout/pkg/build.buildName=fadeout \
//	    -X fadeout/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds fall back to the module information the Go toolchain
// embeds.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Info holds the build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the info as a single version line.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

var (
	ErrMissingName    = errors.New("BuildName is required")
	ErrMissingTime    = errors.New("BuildTime is required")
	ErrMissingCommit  = errors.New("BuildCommit is required")
	ErrMissingVersion = errors.New("BuildVersion is required")
)

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = devInfo()
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

func devInfo() Info {
	info := Info{
		Name:    "fadeout",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "devel",
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			info.Time = s.Value
		}
	}
	return info
}

// Initialize validates and copies build information from the ldflags
// variables. It returns an error naming the first missing flag and leaves
// the development info in place.
func Initialize() error {
	switch {
	case buildName == "":
		return ErrMissingName
	case buildTime == "":
		return ErrMissingTime
	case buildCommit == "":
		return ErrMissingCommit
	case buildVersion == "":
		return ErrMissingVersion
	}

	buildInfo = Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}
