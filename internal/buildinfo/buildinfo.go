// Package buildinfo carries the version stamped into binaries with
// -ldflags "-X bitrt/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns a compact build identifier for window titles and logs.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String returns the full build identifier.
func String() string {
	return Short() + " (commit " + Commit + ", built " + Date + ")"
}
