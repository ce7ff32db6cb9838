// Package version exposes build metadata stamped at link time, e.g.
//
//	go build -ldflags "-X .../internal/version.Version=v0.3.0"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git revision the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
