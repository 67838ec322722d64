//go:build !linux

package stack

import "github.com/m-mizutani/goerr/v2"

func readMemStats() (totalMB, availMB uint64, err error) {
	return 0, 0, goerr.New("memory stats are not supported on this platform")
}

func freeDiskGB(path string) (uint64, error) {
	return 0, goerr.New("disk stats are not supported on this platform")
}
