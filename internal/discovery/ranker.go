package discovery

import "sort"

// Rank orders scored candidates descending by overall score and truncates to
// the top K. The sort is stable, so ties keep their original evaluation
// order. Empty input yields empty output; there is no error condition.
func Rank(scored []CandidateScore, k int) []CandidateScore {
	out := make([]CandidateScore, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverallScore > out[j].OverallScore
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
