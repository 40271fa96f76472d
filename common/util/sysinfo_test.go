package util

import (
	"runtime"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pretty name wins", "NAME=\"Debian GNU/Linux\"\nPRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\n", "Debian GNU/Linux 12 (bookworm)"},
		{"name and version", "NAME=Alpine\nVERSION='3.19'\n", "Alpine 3.19"},
		{"name only", "NAME=Arch\n", "Arch"},
		{"garbage", "not a release file", ""},
	}
	for _, tt := range tests {
		if got := parseOSRelease(tt.in); got != tt.want {
			t.Errorf("%s: parseOSRelease() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCleanCPUName(t *testing.T) {
	t.Parallel()

	got := cleanCPUName("  Intel(R) Core(TM) i7-8650U  CPU @ 1.90GHz\n")
	if got != "Intel Core i7-8650U CPU @ 1.90GHz" {
		t.Errorf("cleanCPUName() = %q", got)
	}
}

func TestGetSystemInfo(t *testing.T) {
	t.Parallel()

	info := GetSystemInfo()
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("unexpected platform: %+v", info)
	}
	if info.NumCPU < 1 || info.GoVersion == "" || info.CPUModel == "" {
		t.Errorf("incomplete info: %+v", info)
	}
}
