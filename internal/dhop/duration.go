package dhop

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationPattern  = regexp.MustCompile(`(?i)(\d+)([dhms])`)
	retentionPattern = regexp.MustCompile(`(?i)^(\d+[dhms])+$`)
)

// ParseRetentionInterval converts strings like "30d" or "1d12h" into a time.Duration.
func ParseRetentionInterval(input string) (time.Duration, error) {
	trimmed := strings.TrimSpace(input)
	if !retentionPattern.MatchString(trimmed) {
		return 0, fmt.Errorf("invalid duration format %q (e.g. 30d, 12h, 1d6h)", input)
	}
	total := time.Duration(0)
	for _, parts := range durationPattern.FindAllStringSubmatch(trimmed, -1) {
		value, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration number: %w", err)
		}
		var unit time.Duration
		switch strings.ToLower(parts[2]) {
		case "d":
			unit = 24 * time.Hour
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		default:
			unit = time.Second
		}
		total += time.Duration(value) * unit
	}
	return total, nil
}
