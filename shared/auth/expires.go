package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseExpiresIn converts a lifetime such as "15m", "12h", "7d" or "900" into
// a duration. A bare number is read as seconds.
func ParseExpiresIn(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty expiry")
	}

	unit := time.Second
	number := value
	switch value[len(value)-1] {
	case 's':
		number = value[:len(value)-1]
	case 'm':
		unit = time.Minute
		number = value[:len(value)-1]
	case 'h':
		unit = time.Hour
		number = value[:len(value)-1]
	case 'd':
		unit = 24 * time.Hour
		number = value[:len(value)-1]
	}

	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry %q: %w", value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid expiry %q: must be positive", value)
	}

	return time.Duration(n) * unit, nil
}

// Expiry is a token lifetime that can be decoded from environment variables.
type Expiry time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expiry) UnmarshalText(text []byte) error {
	d, err := ParseExpiresIn(string(text))
	if err != nil {
		return err
	}

	*e = Expiry(d)

	return nil
}

// Duration returns e as a time.Duration.
func (e Expiry) Duration() time.Duration {
	return time.Duration(e)
}
