package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/traveler/pkg/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	out := version.String()

	assert.Contains(t, out, "traveler "+version.Version)
	assert.Contains(t, out, version.Commit)
}
