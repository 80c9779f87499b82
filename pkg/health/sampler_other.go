//go:build !linux

package health

import (
	"os"
	"runtime"
)

type systemSampler struct{}

// NewSampler returns a Sampler for the local host. Only static facts are
// available on this platform; resource usage is reported as zero.
func NewSampler(string) Sampler {
	return systemSampler{}
}

func (systemSampler) Sample() Snapshot {
	return Snapshot{}
}

func (systemSampler) Host() HostInfo {
	host := HostInfo{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}
	if name, err := os.Hostname(); err == nil {
		host.Hostname = name
	}
	return host
}
