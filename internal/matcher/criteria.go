package matcher

import (
	"strconv"
	"strings"
	"time"

	"ride-reconciliation-service/internal/similarity"
)

const (
	isoDate       = "2006-01-02"
	minutesPerDay = 24 * 60
)

func parseISODate(s string) (time.Time, bool) {
	t, err := time.Parse(isoDate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// datesClose reports whether two ISO dates are at most days apart
func datesClose(a, b string, days int) bool {
	ta, okA := parseISODate(a)
	tb, okB := parseISODate(b)
	if !okA || !okB {
		return false
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(days)*24*time.Hour
}

// clockMinutes converts "HH:MM[:SS]" to minutes after midnight
func clockMinutes(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// timesWithin compares clock times modulo a day, so 23:58 and 00:02 are
// four minutes apart.
func timesWithin(a, b string, tolerance int) bool {
	ma, okA := clockMinutes(a)
	mb, okB := clockMinutes(b)
	if !okA || !okB {
		return false
	}
	diff := ma - mb
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance || diff >= minutesPerDay-tolerance
}

func cleanLocation(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(",", "", ".", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// locationsMatch accepts equal labels after cleanup or a near-identical ratio
func locationsMatch(a, b string, threshold int) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	ca, cb := cleanLocation(a), cleanLocation(b)
	if ca == cb {
		return true
	}
	return similarity.Ratio(ca, cb) >= threshold
}

func normalizePassenger(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(",", "", ".", "").Replace(s)
}

// sharesPassenger reports an exact name overlap after normalization
func sharesPassenger(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	names := make(map[string]bool, len(a))
	for _, p := range a {
		if p != "" {
			names[normalizePassenger(p)] = true
		}
	}
	for _, p := range b {
		if p != "" && names[normalizePassenger(p)] {
			return true
		}
	}
	return false
}

func containsToken(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, t := range tokens {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
