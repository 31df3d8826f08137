package peripheral

import (
	"strconv"
	"strings"
)

// parseDistance decodes one sensor line into a distance value. The firmware
// emits a bare decimal number per reading; anything else is discarded.
func parseDistance(line string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
