package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFrameworkCompatibilityEmptyConstraint(t *testing.T) {
	assert.NoError(t, CheckFrameworkCompatibility(""))
}

func TestCheckFrameworkCompatibilitySatisfied(t *testing.T) {
	assert.NoError(t, CheckFrameworkCompatibility(">= 0.1.0, < 0.2.0"))
}

func TestCheckFrameworkCompatibilityViolated(t *testing.T) {
	err := CheckFrameworkCompatibility(">= 1.0.0")
	assert.Error(t, err)
}

func TestCheckFrameworkCompatibilityInvalidConstraint(t *testing.T) {
	err := CheckFrameworkCompatibility("not a constraint")
	assert.Error(t, err)
}
