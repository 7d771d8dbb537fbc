package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// FrameworkVersion is the running version of this plugin framework,
// checked against a plugin's declared constraint during the bootstrap
// handshake.
const FrameworkVersion = "0.1.0"

// CheckFrameworkCompatibility validates that the running framework
// version satisfies constraint, a semver range as declared by a
// plugin (e.g. ">= 0.1.0, < 0.2.0"). An empty constraint is always
// compatible.
func CheckFrameworkCompatibility(constraint string) error {
	if constraint == "" {
		return nil
	}

	fw, err := semver.NewVersion(FrameworkVersion)
	if err != nil {
		return fmt.Errorf("invalid framework version %s: %w", FrameworkVersion, err)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %s: %w", constraint, err)
	}

	if !c.Check(fw) {
		return fmt.Errorf("plugin requires framework %s, but running %s", constraint, FrameworkVersion)
	}

	return nil
}
