// ABOUTME: Version and product identifiers
// ABOUTME: Reported by the CLI and attached to telemetry resources
package version

const (
	Version      = "0.3.0"
	Product      = "cuemix"
	Manufacturer = "Resonate Protocol"
)
