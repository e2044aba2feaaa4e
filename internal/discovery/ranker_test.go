package discovery

import "testing"

func scoresFixture() []CandidateScore {
	return []CandidateScore{
		{CandidateID: "a", OverallScore: 6.5},
		{CandidateID: "b", OverallScore: 8.2},
		{CandidateID: "c", OverallScore: 7.1},
		{CandidateID: "d", OverallScore: 8.2},
	}
}

func TestRankOrdersDescending(t *testing.T) {
	top := Rank(scoresFixture(), 4)
	want := []string{"b", "d", "c", "a"}
	for i, id := range want {
		if top[i].CandidateID != id {
			t.Fatalf("position %d: got %s, want %s", i, top[i].CandidateID, id)
		}
	}
}

func TestRankTruncatesToK(t *testing.T) {
	top := Rank(scoresFixture(), 2)
	if len(top) != 2 {
		t.Fatalf("got %d results, want 2", len(top))
	}
	if top[0].CandidateID != "b" || top[1].CandidateID != "d" {
		t.Fatalf("unexpected top two: %s, %s", top[0].CandidateID, top[1].CandidateID)
	}
}

func TestRankKExceedsInput(t *testing.T) {
	top := Rank(scoresFixture(), 10)
	if len(top) != 4 {
		t.Fatalf("got %d results, want all 4", len(top))
	}
}

func TestRankTiesKeepEvaluationOrder(t *testing.T) {
	scored := []CandidateScore{
		{CandidateID: "first", OverallScore: 7.0},
		{CandidateID: "second", OverallScore: 7.0},
		{CandidateID: "third", OverallScore: 7.0},
	}
	top := Rank(scored, 3)
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if top[i].CandidateID != id {
			t.Fatalf("tie order broken at %d: got %s, want %s", i, top[i].CandidateID, id)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	scored := scoresFixture()
	Rank(scored, 2)
	if scored[0].CandidateID != "a" || scored[3].CandidateID != "d" {
		t.Fatalf("input slice was reordered")
	}
}

func TestRankIsIdempotent(t *testing.T) {
	once := Rank(scoresFixture(), 3)
	twice := Rank(once, 3)
	if len(twice) != len(once) {
		t.Fatalf("re-ranking changed length: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i].CandidateID != once[i].CandidateID {
			t.Fatalf("re-ranking reordered position %d: %s vs %s", i, twice[i].CandidateID, once[i].CandidateID)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	if top := Rank(nil, 3); len(top) != 0 {
		t.Fatalf("expected empty result, got %d", len(top))
	}
}
