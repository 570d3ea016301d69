package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of the pipeline
	Version = "0.3.0"

	// OutputSchemaVersion is the envelope schema_version of every JSON output
	OutputSchemaVersion = 1

	// DataRelease names the PatentsView bulk download layout the loader expects
	DataRelease = "granted-patent-disambiguated"
)

var (
	// BuildTime is set during build using ldflags
	BuildTime = "unknown"

	// GitCommit is set during build using ldflags
	GitCommit = "unknown"

	// GitBranch is set during build using ldflags
	GitBranch = "unknown"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GitBranch    string `json:"git_branch"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	OutputSchema int    `json:"output_schema"`
	DataRelease  string `json:"data_release"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GitBranch:    GitBranch,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		OutputSchema: OutputSchemaVersion,
		DataRelease:  DataRelease,
	}
}

// GetVersionString returns a formatted version string
func GetVersionString() string {
	return fmt.Sprintf("patentworld v%s", Version)
}

// GetFullVersionString returns a detailed version string
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf(
		"%s (built: %s, commit: %s, branch: %s, go: %s, os: %s/%s, output schema: v%d)",
		GetVersionString(),
		info.BuildTime,
		info.GitCommit,
		info.GitBranch,
		info.GoVersion,
		info.OS,
		info.Architecture,
		info.OutputSchema,
	)
}
