package hostinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	info := Detect()
	assert.Equal(t, runtime.GOARCH, info.Architecture)
	assert.Equal(t, runtime.NumCPU(), info.NumCPU)
	assert.Equal(t, info, Detect(), "detection should be cached")
}

func TestInfoString(t *testing.T) {
	i := Info{Architecture: "amd64", NumCPU: 8, Features: []string{"sse2", "avx2"}}
	assert.Equal(t, "amd64/8 [sse2 avx2]", i.String())

	i.Features = nil
	assert.True(t, strings.HasPrefix(i.String(), "amd64/8"))
	assert.NotContains(t, i.String(), "[")
}
