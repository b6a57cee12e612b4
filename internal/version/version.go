package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the service current released version.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/Try3D/Eunoia/internal/version.Version=0.3.0"
var Version = "0.1.0"

// DevVersion is the service current development version.
var DevVersion = Version + "-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// SchemaVersion is the database schema version this build migrates to.
const SchemaVersion = "0.1.0"

func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(fmt.Sprintf("v%s", version), fmt.Sprintf("v%s", target)) > -1
}

// IsVersionGreaterThan returns true if version is greater than target.
func IsVersionGreaterThan(version, target string) bool {
	return semver.Compare(fmt.Sprintf("v%s", version), fmt.Sprintf("v%s", target)) > 0
}

// String returns the version string with the short commit hash when known.
func String() string {
	v := Version
	if GitCommit != "" && GitCommit != "unknown" {
		short := GitCommit
		if len(short) > 8 {
			short = short[:8]
		}
		v = fmt.Sprintf("%s-%s", v, short)
	}
	return v
}
