package xir

import (
	"fmt"

	semver "github.com/Masterminds/semver/v3"
)

// FormatVersion is the IR format version written by this toolchain
const FormatVersion = "1.0.0"

// SupportedVersions is the range of IR format versions the validator accepts
const SupportedVersions = ">= 1.0.0, < 2.0.0"

var supported = mustConstraint(SupportedVersions)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// CheckVersion reports an error if v is not a supported IR format version.
// An empty version is treated as FormatVersion.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid IR format version %q: %w", v, err)
	}
	if !supported.Check(sv) {
		return fmt.Errorf("unsupported IR format version %s (want %s)", sv, SupportedVersions)
	}
	return nil
}
