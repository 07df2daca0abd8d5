package similarity

import "testing"

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "dana cohen", "dana cohen", 100},
		{"both empty", "", "", 0},
		{"one empty", "dana", "", 0},
		{"disjoint", "abc", "xyz", 0},
		{"one substitution", "abcd", "abce", 75},
		{"hebrew identical", "תל אביב", "תל אביב", 100},
		{"extra char", "kitten", "kittens", 92},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Ratio(tt.b, tt.a); got != tt.want {
				t.Errorf("Ratio is not symmetric for %q, %q", tt.a, tt.b)
			}
		})
	}
}

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"substring", "airport", "ben gurion airport", 100},
		{"reversed argument order", "ben gurion airport", "airport", 100},
		{"equal length", "abcd", "abce", 75},
		{"empty", "", "airport", 0},
		{"no overlap", "abc", "xyzxyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PartialRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("PartialRatio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
