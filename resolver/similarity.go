package resolver

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scorer rates how similar choice is to query on a 0 to 100 scale.
type Scorer func(query, choice string) int

// WeightedRatio is the default Scorer, following fuzzywuzzy's WRatio. Both
// strings are reduced to lower case letters, digits and single spaces first.
// It takes the best of a plain ratio and token based ratios, where reordered
// or partial matches are weighted down. Strings of very different length are
// compared by their best matching substrings. Every partial score is rounded
// to a whole number before it is scaled, as WRatio does.
func WeightedRatio(query, choice string) int {
	p1, p2 := process(query), process(choice)
	if p1 == "" || p2 == "" {
		return 0
	}

	const unbaseScale = 0.95
	partialScale := 0.9

	base := ratio(p1, p2)
	l1, l2 := utf8.RuneCountInString(p1), utf8.RuneCountInString(p2)
	lenRatio := float64(max(l1, l2)) / float64(min(l1, l2))
	if lenRatio < 1.5 {
		tokenSort := tokenSortRatio(p1, p2, ratio) * unbaseScale
		tokenSet := tokenSetRatio(p1, p2, ratio) * unbaseScale
		return round(math.Max(base, math.Max(tokenSort, tokenSet)))
	}
	if lenRatio > 8 {
		partialScale = 0.6
	}
	partial := partialRatio(p1, p2) * partialScale
	tokenSort := tokenSortRatio(p1, p2, partialRatio) * unbaseScale * partialScale
	tokenSet := tokenSetRatio(p1, p2, partialRatio) * unbaseScale * partialScale
	return round(math.Max(math.Max(base, partial), math.Max(tokenSort, tokenSet)))
}

// process lower cases s and turns everything but letters and digits into
// spaces.
func process(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// ratio is the indel similarity of a and b, 100 * 2*LCS / (len(a)+len(b)),
// rounded.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return roundHalfEven(100 * float64(2*lcs(ra, rb)) / float64(total))
}

// lcs returns the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// partialRatio is the best ratio of the shorter string against every
// substring of the longer one with the same length.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenSortRatio(a, b string, score func(a, b string) float64) float64 {
	return score(sortedTokens(strings.Fields(a)), sortedTokens(strings.Fields(b)))
}

func tokenSetRatio(a, b string, score func(a, b string) float64) float64 {
	t1, t2 := tokenSet(a), tokenSet(b)
	var both, only1, only2 []string
	for t := range t1 {
		if _, ok := t2[t]; ok {
			both = append(both, t)
		} else {
			only1 = append(only1, t)
		}
	}
	for t := range t2 {
		if _, ok := t1[t]; !ok {
			only2 = append(only2, t)
		}
	}
	sect := sortedTokens(both)
	combined1 := strings.TrimSpace(sect + " " + sortedTokens(only1))
	combined2 := strings.TrimSpace(sect + " " + sortedTokens(only2))

	best := score(combined1, combined2)
	if sect != "" {
		best = math.Max(best, math.Max(score(sect, combined1), score(sect, combined2)))
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

func sortedTokens(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

func round(f float64) int {
	return int(roundHalfEven(f))
}

// roundHalfEven rounds like Python's round, which the scores are tuned
// against.
func roundHalfEven(f float64) float64 {
	return math.RoundToEven(f)
}
