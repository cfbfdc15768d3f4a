package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		remote string
		local  string
		newer  bool
	}{
		{"0.11", "0.10", true},
		{"0.10", "0.10", false},
		{"0.9", "0.10", false},
		{"1", "0.10", true},
		{"0.10.1", "0.10", true},
	}

	for _, tt := range tests {
		newer, err := IsNewer(tt.remote, tt.local)
		require.NoError(t, err)
		assert.Equal(t, tt.newer, newer, "%s vs %s", tt.remote, tt.local)
	}
}

func TestIsNewerInvalidVersion(t *testing.T) {
	_, err := IsNewer("not-a-version", "0.10")
	assert.Error(t, err)
}
