// ABOUTME: Tests for version constants
// ABOUTME: Checks the release format and the product/version string
package version

import (
	"regexp"
	"strings"
	"testing"
)

var semver = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

func TestVersionIsSemver(t *testing.T) {
	if !semver.MatchString(Version) {
		t.Errorf("Version %q is not MAJOR.MINOR.PATCH", Version)
	}
}

func TestProductMatchesBinary(t *testing.T) {
	// Binaries are named sinetone, sinetone-render and sinetone-listen
	if Product != "sinetone" {
		t.Errorf("expected product sinetone, got %q", Product)
	}
}

func TestString(t *testing.T) {
	s := String()
	if s != Product+"/"+Version {
		t.Errorf("unexpected version string %q", s)
	}
	if strings.ContainsAny(s, " \t\n") {
		t.Errorf("version string %q must be a single token", s)
	}
}

func TestManufacturerDefined(t *testing.T) {
	if strings.TrimSpace(Manufacturer) == "" {
		t.Error("Manufacturer should not be empty")
	}
}
