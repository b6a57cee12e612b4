package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.2.0", "0.1.0", true},
		{"0.1.0", "0.2.0", false},
		{"1.0.0", "0.9.9", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVersionGreaterOrEqualThan(tt.version, tt.target), "%s >= %s", tt.version, tt.target)
	}
}

func TestIsVersionGreaterThan(t *testing.T) {
	assert.False(t, IsVersionGreaterThan("0.1.0", "0.1.0"))
	assert.True(t, IsVersionGreaterThan("0.1.1", "0.1.0"))
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}

func TestString(t *testing.T) {
	orig := GitCommit
	defer func() { GitCommit = orig }()

	GitCommit = "unknown"
	assert.Equal(t, Version, String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+"-01234567", String())
}
