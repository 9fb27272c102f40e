// Package hostinfo describes the host processor that runs the simulated
// compute device.
//
// Detection runs once and is cached.
package hostinfo

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// Info describes the host processor.
type Info struct {
	Architecture string // runtime.GOARCH
	NumCPU       int
	Features     []string // Vector extensions reported by the CPU
}

var (
	detectOnce sync.Once
	detected   Info
)

// Detect returns the cached host description.
func Detect() Info {
	detectOnce.Do(func() {
		detected = Info{
			Architecture: runtime.GOARCH,
			NumCPU:       runtime.NumCPU(),
			Features:     features(),
		}
	})
	return detected
}

// String renders the description as "arch/ncpu [features]".
func (i Info) String() string {
	s := fmt.Sprintf("%s/%d", i.Architecture, i.NumCPU)
	if len(i.Features) > 0 {
		s += " [" + strings.Join(i.Features, " ") + "]"
	}
	return s
}

func features() []string {
	var fs []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE2 {
			fs = append(fs, "sse2")
		}
		if cpu.X86.HasAVX {
			fs = append(fs, "avx")
		}
		if cpu.X86.HasAVX2 {
			fs = append(fs, "avx2")
		}
		if cpu.X86.HasAVX512F {
			fs = append(fs, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			fs = append(fs, "neon")
		}
		if cpu.ARM64.HasSVE {
			fs = append(fs, "sve")
		}
	}
	return fs
}
