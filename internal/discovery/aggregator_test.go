package discovery

import "testing"

func TestMergeCarriesAllParts(t *testing.T) {
	candidate := testCandidate("a")
	score := &CandidateScore{CandidateID: "a", OverallScore: 7.5}
	outcome := &ExecutionOutcome{CandidateID: "a", Succeeded: true}

	record := Merge(candidate, score, outcome)
	if record.Candidate.ID != "a" || record.Score != score || record.Outcome != outcome {
		t.Fatalf("merge lost a part: %+v", record)
	}
}

func TestSortRecordsDescendingWithMissingScoresLast(t *testing.T) {
	records := []FinalRecord{
		{Candidate: Candidate{ID: "unscored-1"}},
		{Candidate: Candidate{ID: "mid"}, Score: &CandidateScore{OverallScore: 6.0}},
		{Candidate: Candidate{ID: "top"}, Score: &CandidateScore{OverallScore: 9.1}},
		{Candidate: Candidate{ID: "unscored-2"}},
	}
	SortRecords(records)

	want := []string{"top", "mid", "unscored-1", "unscored-2"}
	for i, id := range want {
		if records[i].Candidate.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, records[i].Candidate.ID, id)
		}
	}
}

func TestSortRecordsTiesAreStable(t *testing.T) {
	records := []FinalRecord{
		{Candidate: Candidate{ID: "first"}, Score: &CandidateScore{OverallScore: 7.0}},
		{Candidate: Candidate{ID: "second"}, Score: &CandidateScore{OverallScore: 7.0}},
		{Candidate: Candidate{ID: "third"}, Score: &CandidateScore{OverallScore: 7.0}},
	}
	SortRecords(records)

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if records[i].Candidate.ID != id {
			t.Fatalf("tie order broken at %d: got %s", i, records[i].Candidate.ID)
		}
	}
}
