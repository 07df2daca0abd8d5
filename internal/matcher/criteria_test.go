package matcher

import "testing"

func TestTimesWithin(t *testing.T) {
	tests := []struct {
		a, b      string
		tolerance int
		expected  bool
	}{
		{"10:00", "10:05", 5, true},
		{"10:00", "10:06", 5, false},
		{"23:58", "00:02", 5, true},
		{"00:01:30", "23:59", 5, true},
		{"08:00", "11:00", 180, true},
		{"08:00", "11:01", 180, false},
		{"", "10:00", 5, false},
		{"bad", "10:00", 5, false},
	}

	for _, tt := range tests {
		if got := timesWithin(tt.a, tt.b, tt.tolerance); got != tt.expected {
			t.Errorf("timesWithin(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.tolerance, got, tt.expected)
		}
	}
}

func TestDatesClose(t *testing.T) {
	tests := []struct {
		a, b     string
		days     int
		expected bool
	}{
		{"2024-03-01", "2024-03-01", 0, true},
		{"2024-03-01", "2024-03-02", 1, true},
		{"2024-02-29", "2024-03-01", 1, true},
		{"2024-03-01", "2024-03-03", 1, false},
		{"2024-03-01", "01/03/2024", 1, false},
	}

	for _, tt := range tests {
		if got := datesClose(tt.a, tt.b, tt.days); got != tt.expected {
			t.Errorf("datesClose(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.days, got, tt.expected)
		}
	}
}

func TestLocationsMatch(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"Tel Aviv, Azrieli", "tel aviv azrieli.", true},
		{"Haifa  Port", "haifa port", true},
		{"Haifa", "Hadera", false},
		{"", "", false},
		{"Jerusalem", "", false},
	}

	for _, tt := range tests {
		if got := locationsMatch(tt.a, tt.b, 95); got != tt.expected {
			t.Errorf("locationsMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestSharesPassenger(t *testing.T) {
	if !sharesPassenger([]string{"Dana Cohen", "Avi Levi"}, []string{"avi levi."}) {
		t.Error("expected overlap after normalization")
	}
	if sharesPassenger([]string{"Dana Cohen"}, []string{"Dana Cohn"}) {
		t.Error("passenger overlap must be exact")
	}
	if sharesPassenger(nil, []string{"Dana Cohen"}) {
		t.Error("empty list never overlaps")
	}
}

func TestPassengerScore(t *testing.T) {
	tests := []struct {
		name     string
		company  []string
		supplier []string
		expected int
	}{
		{"identical", []string{"Dana Cohen"}, []string{"dana cohen"}, 100},
		{"supplier name claimed once", []string{"Dana Cohen", "Dana Cohen"}, []string{"Dana Cohen"}, 50},
		{"floored average", []string{"abcd", "abcd", "abcd"}, []string{"abcd", "abce", "zzzz"}, 58},
		{"empty", nil, []string{"Dana"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PassengerScore(tt.company, tt.supplier); got != tt.expected {
				t.Errorf("PassengerScore() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestFuzzyScoreCountsFactors(t *testing.T) {
	m, _ := newTestMatcher(t, nil)
	c := trip("", "2024-03-01", 0)
	s := trip("", "2024-03-01", 0)

	score, factors := m.FuzzyScore(c, s)
	if score != 40 || factors != 1 {
		t.Errorf("FuzzyScore() = (%f, %d), want (40, 1)", score, factors)
	}

	score, factors = m.FuzzyScore(trip("", "", 0), trip("", "", 0))
	if score != 0 || factors != 0 {
		t.Errorf("FuzzyScore() = (%f, %d), want (0, 0)", score, factors)
	}
}
