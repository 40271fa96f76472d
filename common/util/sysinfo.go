// Package util holds small host helpers shared by the binaries.
package util

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// SystemInfo describes the host running the collector.
type SystemInfo struct {
	Hostname  string `json:"hostname"`
	OS        string `json:"os"`
	OSVersion string `json:"os_version"`
	Arch      string `json:"arch"`
	CPUModel  string `json:"cpu_model"`
	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

// GetSystemInfo returns host facts. Lookups that fail fall back to generic values.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
	info.Hostname, _ = os.Hostname()
	info.OSVersion = osVersion()
	info.CPUModel = cpuModel()
	return info
}

func osVersion() string {
	switch runtime.GOOS {
	case "linux":
		if data, err := os.ReadFile("/etc/os-release"); err == nil {
			if v := parseOSRelease(string(data)); v != "" {
				return v
			}
		}
		return "Linux"
	case "darwin":
		out, err := exec.Command("sw_vers", "-productVersion").Output()
		if err != nil {
			return "macOS"
		}
		return "macOS " + strings.TrimSpace(string(out))
	case "windows":
		out, err := exec.Command("cmd", "/c", "ver").Output()
		if err != nil {
			return "Windows"
		}
		return strings.TrimSpace(string(out))
	default:
		return runtime.GOOS
	}
}

// parseOSRelease extracts a display name from /etc/os-release content.
func parseOSRelease(data string) string {
	var pretty, name, version string
	for _, line := range strings.Split(data, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "PRETTY_NAME":
			pretty = val
		case "NAME":
			name = val
		case "VERSION":
			version = val
		}
	}
	switch {
	case pretty != "":
		return pretty
	case name != "" && version != "":
		return name + " " + version
	default:
		return name
	}
}

func cpuModel() string {
	var raw string
	switch runtime.GOOS {
	case "linux":
		data, err := os.ReadFile("/proc/cpuinfo")
		if err != nil {
			return runtime.GOARCH
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "model name") {
				if _, v, ok := strings.Cut(line, ":"); ok {
					raw = v
					break
				}
			}
		}
	case "darwin":
		out, err := exec.Command("sysctl", "-n", "machdep.cpu.brand_string").Output()
		if err == nil {
			raw = string(out)
		}
	}
	if name := cleanCPUName(raw); name != "" {
		return name
	}
	return runtime.GOARCH
}

func cleanCPUName(s string) string {
	s = strings.ReplaceAll(s, "(R)", "")
	s = strings.ReplaceAll(s, "(TM)", "")
	return strings.Join(strings.Fields(s), " ")
}
