// Package version provides build-time version information.
//
// Set at build time via:
//
//	go build -ldflags "-X steward/internal/version.Version=$(git describe --tags)"
package version

// Version is the build version, set at build time via ldflags.
var Version = "dev"
