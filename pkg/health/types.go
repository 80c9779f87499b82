// Package health samples host resource usage and keeps a bounded history.
//
// A Recorder takes one snapshot when it starts and one per interval after
// that, appending each to a fixed-capacity Ring. Reads always sample a fresh
// "current" snapshot; the ring is the backward-looking series.
package health

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Usage is the used/total pair of a resource in bytes.
type Usage struct {
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

// NewUsage computes the percentage of used over total. A zero total yields
// zero percent.
func NewUsage(used, total uint64) Usage {
	u := Usage{Used: used, Total: total}
	if total > 0 {
		u.Percent = float64(used) / float64(total) * 100
	}
	return u
}

// Load holds the 1, 5 and 15 minute load averages.
type Load struct {
	One     float64 `json:"one"`
	Five    float64 `json:"five"`
	Fifteen float64 `json:"fifteen"`
}

// Snapshot is one sample of host resources.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpuPercent"`
	Memory     Usage     `json:"memory"`
	Disk       Usage     `json:"disk"`
	Load       Load      `json:"load"`
}

// HostInfo holds static facts about the host.
type HostInfo struct {
	Uptime      int64  `json:"uptime"`
	UptimeHuman string `json:"uptimeHuman"`
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	CPUModel    string `json:"cpuModel"`
	CPUCores    int    `json:"cpuCores"`
}

// Sampler reads host resources. Pieces that cannot be read are left zero.
type Sampler interface {
	// Sample reads CPU, memory, disk and load. The timestamp is set by the
	// caller.
	Sample() Snapshot

	// Host reads static host facts.
	Host() HostInfo
}

// LoadPercent derives a CPU percentage from the 1 minute load average,
// capped at 100.
func LoadPercent(load1 float64, cores int) float64 {
	if cores <= 0 {
		return 0
	}
	return min(100, load1/float64(cores)*100)
}

// FormatUptime renders d as a coarse human duration such as "3 days".
func FormatUptime(d time.Duration) string {
	start := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(start, start.Add(d), "", ""))
}
