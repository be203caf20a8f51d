package cgroup

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrMalformed  = errors.New("malformed cgroup file")
	ErrMissingKey = errors.New("key not present in cgroup file")
)

var (
	readBytesRegexp  = regexp.MustCompile(`rbytes=(\d+)`)
	writeBytesRegexp = regexp.MustCompile(`wbytes=(\d+)`)
)

// parseCPUStat extracts usage_usec from cpu.stat and converts it to seconds.
//
//	usage_usec 5123817
//	user_usec 4000000
//	system_usec 1123817
func parseCPUStat(content string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "usage_usec" {
			continue
		}
		usec, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrMalformed, "usage_usec %q", fields[1])
		}
		return float64(usec) / 1_000_000.0, nil
	}
	return 0, errors.Wrap(ErrMissingKey, "usage_usec")
}

// parseCount accepts a file holding a single non-negative integer, such as
// memory.current or pids.current. Values like "max" are rejected.
func parseCount(content string) (uint64, error) {
	if !allDigits(content) {
		return 0, errors.Wrapf(ErrMalformed, "%q is not a count", content)
	}
	n, err := strconv.ParseUint(content, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "%q overflows", content)
	}
	return n, nil
}

// parseIOStat sums rbytes and wbytes across every device line.
//
//	8:0 rbytes=1459200 wbytes=314773504 rios=192 wios=353 dbytes=0 dios=0
func parseIOStat(content string) (read, write uint64) {
	for _, line := range strings.Split(content, "\n") {
		if m := readBytesRegexp.FindStringSubmatch(line); m != nil {
			if n, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				read += n
			}
		}
		if m := writeBytesRegexp.FindStringSubmatch(line); m != nil {
			if n, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				write += n
			}
		}
	}
	return read, write
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
