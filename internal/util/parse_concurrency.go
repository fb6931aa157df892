package util

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
)

// numCPU is swapped out by tests to pin the host CPU count.
var numCPU = runtime.NumCPU

// ParseConcurrency interprets a --concurrency flag value: either a
// positive integer ("4") or a percentage of the host's CPU cores
// ("50%"). Percentages round down but never below 1.
func ParseConcurrency(raw string) (int, error) {
	if strings.HasSuffix(raw, "%") {
		percent, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil || percent <= 0 || math.IsInf(percent, 1) {
			return 0, fmt.Errorf("invalid --concurrency percentage %q: expected a positive percentage of CPU cores, e.g. 50%%", raw)
		}
		return int(math.Max(1, float64(numCPU())*percent/100)), nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid --concurrency value %q: expected a positive integer or a percentage of CPU cores", raw)
	}
	return n, nil
}
