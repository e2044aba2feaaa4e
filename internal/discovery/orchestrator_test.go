package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"actorscout/config"
)

type stubSource struct {
	candidates []Candidate
	err        error
	terms      []string
}

func (s *stubSource) Search(_ context.Context, terms []string, _ int) ([]Candidate, error) {
	s.terms = terms
	return s.candidates, s.err
}

type stubEnricher struct {
	detail  string
	pricing string
	err     error
}

func (s *stubEnricher) Fetch(_ context.Context, _ Candidate) (string, string, error) {
	return s.detail, s.pricing, s.err
}

// constRunner reports the same result for every invocation. Safe for the
// concurrent execution fan-out.
type constRunner struct {
	result RunResult
	err    error

	mu    sync.Mutex
	calls int
}

func (r *constRunner) Invoke(_ context.Context, _ string, _ map[string]any, _ time.Duration, _ int) (RunResult, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.result, r.err
}

func (r *constRunner) ListOutputSample(_ context.Context, _ string, _ int) ([]json.RawMessage, error) {
	return nil, nil
}

// panicRunner simulates an internal fault inside one execution loop.
type panicRunner struct{}

func (panicRunner) Invoke(_ context.Context, _ string, _ map[string]any, _ time.Duration, _ int) (RunResult, error) {
	panic("runner blew up")
}

func (panicRunner) ListOutputSample(_ context.Context, _ string, _ int) ([]json.RawMessage, error) {
	return nil, nil
}

// constBackend answers every completion with the same text. Safe for the
// concurrent execution fan-out, unlike the sequential stubBackend.
type constBackend struct{ response string }

func (b constBackend) Complete(_ context.Context, _ string) (string, error) {
	return b.response, nil
}

func orchestratorConfig() *config.Config {
	return &config.Config{
		Discovery: config.DiscoveryConfig{}.Normalize(),
		Platform:  config.PlatformConfig{SearchLimit: 20},
	}
}

func newTestOrchestrator(t *testing.T, source CandidateSource, runner CandidateRunner, scoring GenerationBackend) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(orchestratorConfig(), quietLogger(), nil, source, &stubEnricher{detail: "readme"}, runner, scoring, constBackend{response: `{"query": "x"}`})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

func TestDiscoverEmptyIntentFails(t *testing.T) {
	orch := newTestOrchestrator(t, &stubSource{}, &constRunner{}, constBackend{})

	if _, err := orch.Discover(context.Background(), Request{UserIntent: "   "}); err == nil {
		t.Fatalf("expected error for empty intent")
	}
}

func TestDiscoverNoCandidatesYieldsEmptyResult(t *testing.T) {
	source := &stubSource{}
	runner := &constRunner{}
	orch := newTestOrchestrator(t, source, runner, constBackend{})

	records, err := orch.Discover(context.Background(), Request{UserIntent: "get weather for rome"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil record slice, got %v", records)
	}
	if runner.calls != 0 {
		t.Fatalf("nothing should be executed without candidates")
	}
}

func TestDiscoverSourceOutageYieldsEmptyResult(t *testing.T) {
	source := &stubSource{err: &SourceUnavailableError{Err: errors.New("503 from catalog")}}
	orch := newTestOrchestrator(t, source, &constRunner{}, constBackend{})

	records, err := orch.Discover(context.Background(), Request{UserIntent: "scrape tweets"})
	if err != nil {
		t.Fatalf("catalog outage must not fail the run: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d records", len(records))
	}
}

func TestDiscoverEndToEnd(t *testing.T) {
	source := &stubSource{candidates: []Candidate{
		testCandidate("acme/low"),
		testCandidate("acme/high"),
		testCandidate("acme/mid"),
		testCandidate("acme/cut"),
	}}
	// Sequential evaluation consumes these in candidate order.
	scoring := &stubBackend{responses: []string{scoreJSON(5), scoreJSON(9), scoreJSON(7), scoreJSON(2)}}
	runner := &constRunner{result: RunResult{Status: RunSucceeded, DurationSeconds: 1.5}}
	orch := newTestOrchestrator(t, source, runner, scoring)

	records, err := orch.Discover(context.Background(), Request{UserIntent: "get weather for rome"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want top 3", len(records))
	}

	want := []string{"acme/high", "acme/mid", "acme/low"}
	for i, id := range want {
		if records[i].Candidate.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, records[i].Candidate.ID, id)
		}
		if records[i].Score == nil {
			t.Fatalf("record %s missing score", id)
		}
		if records[i].Outcome == nil || !records[i].Outcome.Succeeded {
			t.Fatalf("record %s missing successful outcome", id)
		}
	}
	if records[0].Score.OverallScore != 9.0 {
		t.Fatalf("top score: %v", records[0].Score.OverallScore)
	}
	if runner.calls != 3 {
		t.Fatalf("runner invoked %d times, want 3", runner.calls)
	}
}

func TestDiscoverUnscoredCandidatesFillRemainingSlots(t *testing.T) {
	source := &stubSource{candidates: []Candidate{
		testCandidate("acme/scored-1"),
		testCandidate("acme/unscored"),
		testCandidate("acme/scored-2"),
	}}
	// The middle candidate's evaluation never parses.
	scoring := &stubBackend{responses: []string{scoreJSON(8), "no json here", scoreJSON(6)}}
	runner := &constRunner{result: RunResult{Status: RunSucceeded}}
	orch := newTestOrchestrator(t, source, runner, scoring)

	records, err := orch.Discover(context.Background(), Request{UserIntent: "get weather for rome"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Candidate.ID != "acme/scored-1" || records[1].Candidate.ID != "acme/scored-2" {
		t.Fatalf("scored records out of order: %s, %s", records[0].Candidate.ID, records[1].Candidate.ID)
	}
	last := records[2]
	if last.Candidate.ID != "acme/unscored" {
		t.Fatalf("unscored candidate must sort last, got %s", last.Candidate.ID)
	}
	if last.Score != nil {
		t.Fatalf("unscored record must carry no score")
	}
	if last.Outcome == nil || !last.Outcome.Succeeded {
		t.Fatalf("unscored candidate must still execute")
	}
}

func TestDiscoverPanickingLoopBecomesFailedRecord(t *testing.T) {
	source := &stubSource{candidates: []Candidate{testCandidate("acme/faulty")}}
	scoring := &stubBackend{responses: []string{scoreJSON(7)}}
	orch := newTestOrchestrator(t, source, panicRunner{}, scoring)

	records, err := orch.Discover(context.Background(), Request{UserIntent: "get weather for rome"})
	if err != nil {
		t.Fatalf("a panicking loop must not abort the batch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	outcome := records[0].Outcome
	if outcome == nil || outcome.Succeeded {
		t.Fatalf("panicked loop must report failure: %+v", outcome)
	}
	if len(outcome.Attempts) != 1 || outcome.Attempts[0].Outcome != OutcomeNonRetryable {
		t.Fatalf("unexpected attempts: %+v", outcome.Attempts)
	}
}

func TestFallbackTermsDropStopwords(t *testing.T) {
	terms := fallbackTerms("I want to scrape the weather for Rome, Italy!")
	want := []string{"scrape", "weather", "rome", "italy"}
	if len(terms) != len(want) {
		t.Fatalf("got %v, want %v", terms, want)
	}
	for i, w := range want {
		if terms[i] != w {
			t.Fatalf("term %d: got %s, want %s", i, terms[i], w)
		}
	}
}
