//go:build linux

package health

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Load averages from sysinfo(2) are fixed point with 16 fractional bits.
const loadScale = 1 << unix.SI_LOAD_SHIFT

type systemSampler struct {
	diskPath    string
	meminfoPath string
	cpuinfoPath string
}

// NewSampler returns a Sampler for the local host. Disk usage is reported
// for the filesystem holding diskPath.
func NewSampler(diskPath string) Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &systemSampler{
		diskPath:    diskPath,
		meminfoPath: "/proc/meminfo",
		cpuinfoPath: "/proc/cpuinfo",
	}
}

func (s *systemSampler) Sample() Snapshot {
	var snap Snapshot

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err == nil {
		snap.Load = Load{
			One:     float64(info.Loads[0]) / loadScale,
			Five:    float64(info.Loads[1]) / loadScale,
			Fifteen: float64(info.Loads[2]) / loadScale,
		}

		unit := uint64(info.Unit)
		total := uint64(info.Totalram) * unit
		free := uint64(info.Freeram) * unit
		if total >= free {
			snap.Memory = NewUsage(total-free, total)
		}
	}
	snap.CPUPercent = LoadPercent(snap.Load.One, runtime.NumCPU())

	// MemAvailable counts reclaimable cache, which Freeram does not.
	if total, available, ok := readMemInfoFrom(s.meminfoPath); ok && total >= available {
		snap.Memory = NewUsage(total-available, total)
	}

	var st unix.Statfs_t
	if err := unix.Statfs(s.diskPath, &st); err == nil {
		bsize := uint64(st.Bsize)
		total := st.Blocks * bsize
		free := st.Bfree * bsize
		if total >= free {
			snap.Disk = NewUsage(total-free, total)
		}
	}

	return snap
}

func (s *systemSampler) Host() HostInfo {
	host := HostInfo{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		CPUModel: readCPUModelFrom(s.cpuinfoPath),
		CPUCores: runtime.NumCPU(),
	}

	if name, err := os.Hostname(); err == nil {
		host.Hostname = name
	}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		if release := unix.ByteSliceToString(uts.Release[:]); release != "" {
			host.Platform += " " + release
		}
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err == nil {
		host.Uptime = int64(info.Uptime)
		host.UptimeHuman = FormatUptime(time.Duration(host.Uptime) * time.Second)
	}

	return host
}

// readMemInfoFrom returns MemTotal and MemAvailable in bytes from a
// /proc/meminfo formatted file.
func readMemInfoFrom(path string) (total, available uint64, ok bool) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer file.Close()

	var haveTotal, haveAvailable bool
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// "MemTotal:       16314180 kB"
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) == 3 && fields[2] == "kB" {
			value *= 1024
		}

		switch fields[0] {
		case "MemTotal:":
			total, haveTotal = value, true
		case "MemAvailable:":
			available, haveAvailable = value, true
		}
		if haveTotal && haveAvailable {
			return total, available, true
		}
	}
	return 0, 0, false
}

// readCPUModelFrom returns the first "model name" from a /proc/cpuinfo
// formatted file, or "" if there is none (many ARM kernels omit it).
func readCPUModelFrom(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if found && strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
