// Package common holds process-wide helpers shared by the command line tools.
package common

var (
	// PackageName is used as the default service tag in logs.
	PackageName = "commit-reveal-driver"

	// Version is set at build time with -ldflags "-X github.com/ruteri/commit-reveal-driver/common.Version=..."
	Version = "dev"
)
