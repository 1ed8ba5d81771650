package subscription

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is the unit of a billing cadence.
type Period string

const (
	PeriodDay   Period = "d"
	PeriodWeek  Period = "w"
	PeriodMonth Period = "m"
	PeriodYear  Period = "y"
)

// Cadence is a billing frequency: every Interval Periods, e.g. 1m for
// monthly, 15d for every fifteen days.
type Cadence struct {
	Interval int
	Period   Period
}

// ParseCadence parses the provider's compact cadence notation, a positive
// integer followed by a period letter. A bare period letter implies an
// interval of one.
func ParseCadence(s string) (Cadence, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Cadence{}, fmt.Errorf("%w: empty cadence", ErrInvalidCadence)
	}

	period := Period(s[len(s)-1:])
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
	default:
		return Cadence{}, fmt.Errorf("%w: unknown period %q", ErrInvalidCadence, string(period))
	}

	interval := 1
	if head := s[:len(s)-1]; head != "" {
		n, err := strconv.Atoi(head)
		if err != nil || n < 1 {
			return Cadence{}, fmt.Errorf("%w: bad interval %q", ErrInvalidCadence, head)
		}
		interval = n
	}

	return Cadence{Interval: interval, Period: period}, nil
}

// MustParseCadence is ParseCadence that panics on error. Intended for
// catalog literals and tests.
func MustParseCadence(s string) Cadence {
	c, err := ParseCadence(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether the cadence holds a positive interval and a known
// period.
func (c Cadence) Valid() bool {
	if c.Interval < 1 {
		return false
	}
	switch c.Period {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

func (c Cadence) String() string {
	return strconv.Itoa(c.Interval) + string(c.Period)
}

// Next returns the execution date following from. The result is
// deterministic and always strictly after from. Month and year arithmetic
// follows time.AddDate, so the 31st of a month clamps forward the way the
// standard library does.
func (c Cadence) Next(from time.Time) time.Time {
	switch c.Period {
	case PeriodDay:
		return from.AddDate(0, 0, c.Interval)
	case PeriodWeek:
		return from.AddDate(0, 0, 7*c.Interval)
	case PeriodMonth:
		return from.AddDate(0, c.Interval, 0)
	case PeriodYear:
		return from.AddDate(c.Interval, 0, 0)
	default:
		return from.AddDate(0, 0, c.Interval)
	}
}

// MarshalText implements encoding.TextMarshaler so cadences round-trip
// through YAML catalogs and JSON payloads in provider notation.
func (c Cadence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cadence) UnmarshalText(text []byte) error {
	parsed, err := ParseCadence(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
