package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	old := GitCommit
	GitCommit = "abc123"
	defer func() { GitCommit = old }()

	info := Get("slidersolve")
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "slidersolve "+Version+" (commit abc123, built unknown, "+runtime.Version()+")", info.String())
}
