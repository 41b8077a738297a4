package version

import (
	"runtime"
	"time"
)

// These are set at build time via -ldflags.
var (
	GITVERSION = "v0.0.0-unknown"
	GITCOMMIT  = ""
	BUILDDATE  = ""
)

// BuildVersionInfo describes the code a binary was built from.
type BuildVersionInfo struct {
	GitVersion string    `json:"gitversion" yaml:"gitversion"`
	GitCommit  string    `json:"gitcommit" yaml:"gitcommit"`
	BuildDate  time.Time `json:"builddate" yaml:"builddate"`
	GOOS       string    `json:"goos" yaml:"goos"`
	GOARCH     string    `json:"goarch" yaml:"goarch"`
}

// Get returns the overall codebase version. It's for detecting what code a
// binary was built from.
func Get() *BuildVersionInfo {
	versionInfo := &BuildVersionInfo{
		GitVersion: GITVERSION,
		GitCommit:  GITCOMMIT,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
	if buildDate, err := time.Parse(time.RFC3339, BUILDDATE); err == nil {
		versionInfo.BuildDate = buildDate
	}
	return versionInfo
}
