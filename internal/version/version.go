// ABOUTME: Version information for sinetone
// ABOUTME: Single source of truth for the version reported by the binaries
package version

const (
	// Version is the current release
	Version = "0.2.0"

	// Product is the product name reported in logs and status
	Product = "sinetone"

	// Manufacturer is the project author
	Manufacturer = "sinetone authors"
)

// String returns "product/version", as reported in logs and /status
func String() string {
	return Product + "/" + Version
}
