//go:build linux

package sampler

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// readFileRaw reads path via raw unix syscalls rather than os.ReadFile,
// mirroring the teacher's internal/bpf/loader.go style of talking to
// /sys and /proc directly through golang.org/x/sys/unix.
func readFileRaw(path string) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	buf := make([]byte, 4096)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// LinuxThermalReader reads /sys/class/thermal/thermal_zone0/temp and maps
// millidegree-Celsius bands to the spec §3 thermal enum.
type LinuxThermalReader struct {
	zonePath string
}

// NewLinuxThermalReader returns a reader for the given thermal zone temp
// file (e.g. "/sys/class/thermal/thermal_zone0/temp").
func NewLinuxThermalReader(zonePath string) *LinuxThermalReader {
	return &LinuxThermalReader{zonePath: zonePath}
}

func (r *LinuxThermalReader) ReadLevel() (ThermalLevel, bool) {
	raw, err := readFileRaw(r.zonePath)
	if err != nil {
		return ThermalUnavailable, false
	}
	milliC, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return ThermalUnavailable, false
	}
	c := milliC / 1000
	switch {
	case c >= 95:
		return ThermalCritical, true
	case c >= 80:
		return ThermalSerious, true
	case c >= 60:
		return ThermalFair, true
	default:
		return ThermalNominal, true
	}
}

// LinuxBatteryReader reads /sys/class/power_supply/<name>/capacity.
type LinuxBatteryReader struct {
	capacityPath string
}

// NewLinuxBatteryReader returns a reader for the given capacity file
// (e.g. "/sys/class/power_supply/BAT0/capacity").
func NewLinuxBatteryReader(capacityPath string) *LinuxBatteryReader {
	return &LinuxBatteryReader{capacityPath: capacityPath}
}

func (r *LinuxBatteryReader) ReadLevel() (float32, bool) {
	raw, err := readFileRaw(r.capacityPath)
	if err != nil {
		return 0, false
	}
	pct, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	return float32(pct) / 100.0, true
}

// LinuxResourceReader reads VmRSS from /proc/self/status.
type LinuxResourceReader struct{}

// NewLinuxResourceReader returns a reader bound to the current process.
func NewLinuxResourceReader() *LinuxResourceReader {
	return &LinuxResourceReader{}
}

func (r *LinuxResourceReader) ReadRSSMB() (float64, bool) {
	raw, err := readFileRaw("/proc/self/status")
	if err != nil {
		return 0, false
	}
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if !bytes.HasPrefix(line, []byte("VmRSS:")) {
			continue
		}
		fields := strings.Fields(string(line))
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return kb / 1024.0, true
	}
	return 0, false
}
