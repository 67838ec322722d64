//go:build linux

package stack

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
)

// readMemStats returns total and available memory in MB from /proc/meminfo
func readMemStats() (totalMB, availMB uint64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to open /proc/meminfo")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// values are in kB
		kb, parseErr := strconv.ParseUint(fields[1], 10, 64)
		if parseErr != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalMB = kb / 1024
		case "MemAvailable:":
			availMB = kb / 1024
		}
		if totalMB > 0 && availMB > 0 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, goerr.Wrap(err, "failed to read /proc/meminfo")
	}
	if totalMB == 0 {
		return 0, 0, goerr.New("MemTotal not found in /proc/meminfo")
	}
	return totalMB, availMB, nil
}

// freeDiskGB returns the free disk space of the filesystem holding path
func freeDiskGB(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, goerr.Wrap(err, "statfs failed", goerr.V("path", path))
	}
	return stat.Bavail * uint64(stat.Bsize) / (1 << 30), nil
}
