package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxBodySize is 1MB.
const DefaultMaxBodySize = 1 << 20

var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseByteSize parses size strings like "1MB", "512KB" or "1048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseByteSize(size string) (int64, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(size)
	multiplier := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(upper, u.suffix) {
			multiplier = u.multiplier
			upper = strings.TrimSuffix(upper, u.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", size, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive, got %q", size)
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large: %q", size)
	}
	return result, nil
}
