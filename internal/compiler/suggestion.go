package compiler

import "fmt"

// Suggest returns a "Did you mean" hint for the candidate closest to unknown,
// or "" when nothing is close enough.
func Suggest(unknown string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshteinDistance(unknown, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := max(2, len(unknown)/3)
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return fmt.Sprintf("Did you mean '%s'?", best)
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
