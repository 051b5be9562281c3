package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration reads the duration field at path. Empty or zero yields def;
// negative values are rejected. Validate calls it with def 0.
func Duration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: %s is negative", path, d)
	case d == 0:
		return def, nil
	}
	return d, nil
}
