// Package build provides build information that is linked into the application. Other
// packages within this project can use this information in logs etc..
package build

var (
	// Version is the build version of the binary (e.g. v0.4.0).
	Version = "dev"

	// Commit is the git commit hash that the binary was built from.
	Commit = "none"

	// Date is the date at which the binary was built.
	Date = "unknown"

	// ProjectName is the name used in telemetry resources and log fields.
	ProjectName = "resultpipe"
)
