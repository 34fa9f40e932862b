// Package scoring holds the text and arithmetic primitives shared by the
// grading engine: answer normalisation, equivalence checks and fixed-point
// rounding.
package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

var (
	folder        = cases.Fold()
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	truthy = map[string]struct{}{"true": {}, "t": {}, "yes": {}, "y": {}, "1": {}}
	falsy  = map[string]struct{}{"false": {}, "f": {}, "no": {}, "n": {}, "0": {}}
)

// Normalize collapses runs of whitespace to single spaces, trims, and case folds.
func Normalize(s string) string {
	return folder.String(strings.Join(strings.Fields(s), " "))
}

// Blank reports whether s holds nothing but whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Equivalent is the objective comparison: normalised equality or the same
// boolean truth value.
func Equivalent(response, reference string) bool {
	if Normalize(response) == Normalize(reference) {
		return true
	}
	return BooleanEquivalent(response, reference)
}

// BooleanEquivalent reports whether both values are boolean synonyms with the
// same truth value.
func BooleanEquivalent(a, b string) bool {
	av, aok := truthValue(a)
	bv, bok := truthValue(b)
	return aok && bok && av == bv
}

func truthValue(s string) (bool, bool) {
	n := Normalize(s)
	if _, ok := truthy[n]; ok {
		return true, true
	}
	if _, ok := falsy[n]; ok {
		return false, true
	}
	return false, false
}

// NumericTokens extracts every number in s in order of appearance.
func NumericTokens(s string) []float64 {
	matches := numberPattern.FindAllString(s, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// NumericEqual is true when both strings carry the same non-empty ordered
// sequence of numbers, pairwise within tolerance.
func NumericEqual(a, b string, tolerance float64) bool {
	at, bt := NumericTokens(a), NumericTokens(b)
	if len(at) == 0 || len(at) != len(bt) {
		return false
	}
	for i := range at {
		if math.Abs(at[i]-bt[i]) > tolerance {
			return false
		}
	}
	return true
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Sum adds values as decimals so that 2-dp inputs produce an exact 2-dp total.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
