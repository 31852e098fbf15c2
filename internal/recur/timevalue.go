package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseICalTime parses an RFC 5545 DATE or DATE-TIME value
// (YYYYMMDD or YYYYMMDDTHHMMSS[Z]) and reports which form it is.
func ParseICalTime(v string) (DateTimeForm, time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case len(v) == 8:
		t, err := time.Parse("20060102", v)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("invalid DATE value %q: %w", v, err)
		}
		return FormFloating, t, nil
	case len(v) == 16 && strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("invalid UTC DATE-TIME value %q: %w", v, err)
		}
		return FormUTC, t, nil
	case len(v) == 15:
		t, err := time.Parse("20060102T150405", v)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("invalid local DATE-TIME value %q: %w", v, err)
		}
		return FormFloating, t, nil
	default:
		return 0, time.Time{}, fmt.Errorf("unrecognized date/date-time value %q", v)
	}
}

// ParseDuration parses an RFC 5545 DURATION value ("P1DT2H3M4S" etc.),
// summing weeks/days/hours/minutes/seconds and negating when the value
// begins with '-'.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	neg := false
	if strings.HasPrefix(v, "-") {
		neg = true
		v = v[1:]
	} else if strings.HasPrefix(v, "+") {
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("invalid DURATION value %q", v)
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := strings.Builder{}
	flush := func(unit byte) error {
		if num.Len() == 0 {
			return nil
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return fmt.Errorf("invalid DURATION component: %w", err)
		}
		num.Reset()
		switch unit {
		case 'W':
			total += time.Duration(n) * 7 * 24 * time.Hour
		case 'D':
			total += time.Duration(n) * 24 * time.Hour
		case 'H':
			total += time.Duration(n) * time.Hour
		case 'M':
			total += time.Duration(n) * time.Minute
		case 'S':
			total += time.Duration(n) * time.Second
		}
		return nil
	}

	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case 'T':
			inTime = true
		case 'W', 'D':
			if err := flush(c); err != nil {
				return 0, err
			}
		case 'H', 'S':
			if err := flush(c); err != nil {
				return 0, err
			}
		case 'M':
			if inTime {
				if err := flush('M'); err != nil {
					return 0, err
				}
			} else {
				if err := flush('O'); err != nil { // month-in-duration is not valid per 5545; ignore
					return 0, err
				}
			}
		default:
			if c >= '0' && c <= '9' {
				num.WriteByte(c)
			}
		}
	}

	if neg {
		total = -total
	}
	return total, nil
}
