package discovery

import "sort"

// Merge assembles the final record for one candidate. A nil score means
// evaluation failed or was skipped; execution is still reported.
func Merge(candidate Candidate, score *CandidateScore, outcome *ExecutionOutcome) FinalRecord {
	return FinalRecord{Candidate: candidate, Score: score, Outcome: outcome}
}

// SortRecords orders final records by overall score descending. Records
// without a score sort last; ties preserve encounter order.
func SortRecords(records []FinalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		si, sj := records[i].Score, records[j].Score
		switch {
		case si == nil && sj == nil:
			return false
		case sj == nil:
			return true
		case si == nil:
			return false
		default:
			return si.OverallScore > sj.OverallScore
		}
	})
}
