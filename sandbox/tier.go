package sandbox

import (
	"strings"
	"time"
)

// Tier is the expected duration class the model assigns to a command.
type Tier int

const (
	Short Tier = iota
	Medium
	Long
)

var tierTimeouts = [...]time.Duration{
	Short:  15 * time.Second,
	Medium: 60 * time.Second,
	Long:   300 * time.Second,
}

// ParseTier maps "short", "medium" and "long" (any case) to a tier.
// Anything else is Short.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "medium":
		return Medium
	case "long":
		return Long
	default:
		return Short
	}
}

// Timeout returns the execution limit for the tier.
func (t Tier) Timeout() time.Duration {
	if t < Short || t > Long {
		return tierTimeouts[Short]
	}
	return tierTimeouts[t]
}

func (t Tier) String() string {
	switch t {
	case Medium:
		return "medium"
	case Long:
		return "long"
	default:
		return "short"
	}
}
