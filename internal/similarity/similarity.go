// Package similarity scores how alike two short texts are on a 0..100 scale.
package similarity

import (
	"math"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// indel weights a substitution as a deletion plus an insertion, so the ratio
// reflects the share of characters the two strings have in common.
var indel = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 2,
	Matches: levenshtein.IdenticalRunes,
}

// Ratio returns round(100 * (len(a)+len(b)-d) / (len(a)+len(b))) where d is
// the insert/delete edit distance. Either string empty scores 0.
func Ratio(a, b string) int {
	return ratioRunes([]rune(a), []rune(b))
}

// PartialRatio returns the best Ratio between the shorter string and every
// window of the same length in the longer one, so a substring scores 100.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return ratioRunes(short, long)
	}

	best := 0
	for start := 0; start+len(short) <= len(long); start++ {
		score := ratioRunes(short, long[start:start+len(short)])
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

func ratioRunes(a, b []rune) int {
	total := len(a) + len(b)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	d := levenshtein.DistanceForStrings(a, b, indel)
	return int(math.Round(100 * float64(total-d) / float64(total)))
}
