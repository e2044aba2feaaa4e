package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"actorscout/config"
	"actorscout/internal/telemetry"
)

// Request is the input of one discovery run.
type Request struct {
	UserIntent string `json:"user_intent"`
	MaxActors  int    `json:"max_actors"`
}

// TermExtractor resolves a free-text intent to catalog search terms. The
// default implementation is a plain tokenizer; an LLM-backed one can be
// plugged in without touching the pipeline.
type TermExtractor interface {
	Extract(ctx context.Context, userIntent string) ([]string, error)
}

// Orchestrator wires the discovery pipeline: search → enrich → evaluate →
// rank → execute → aggregate.
type Orchestrator struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	source     CandidateSource
	enricher   DetailEnricher
	terms      TermExtractor
	evaluator  *Evaluator
	controller *ExecutionController
}

// NewOrchestrator creates an orchestrator from its collaborators. The scoring
// and synthesis backends may be the same completer; they are separated so
// model routing can differ.
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tele *telemetry.Telemetry, source CandidateSource, enricher DetailEnricher, runner CandidateRunner, scoring, synthesis GenerationBackend) (*Orchestrator, error) {
	if source == nil {
		return nil, fmt.Errorf("candidate source is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("candidate runner is required")
	}
	if scoring == nil || synthesis == nil {
		return nil, fmt.Errorf("generation backend is required")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}

	synth := NewInputSynthesizer(synthesis, nil)
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		telemetry:  tele,
		source:     source,
		enricher:   enricher,
		terms:      tokenTermExtractor{},
		evaluator:  NewEvaluator(cfg.Discovery, scoring, nil, tele),
		controller: NewExecutionController(cfg.Discovery, synth, runner, nil, tele),
	}, nil
}

// SetTermExtractor replaces the default tokenizer-based term extraction.
func (o *Orchestrator) SetTermExtractor(extractor TermExtractor) {
	if extractor != nil {
		o.terms = extractor
	}
}

// Discover runs the full pipeline and returns final records sorted by overall
// score descending. Only a missing user intent is fatal here; collaborator
// credential checks abort earlier, at construction time. Every other failure
// is scoped to one candidate or one attempt and surfaces as data in the
// returned records.
func (o *Orchestrator) Discover(ctx context.Context, req Request) ([]FinalRecord, error) {
	if strings.TrimSpace(req.UserIntent) == "" {
		return nil, fmt.Errorf("user intent is required")
	}
	maxActors := req.MaxActors
	if maxActors < 1 {
		maxActors = o.cfg.Discovery.MaxActors
	}

	runID := uuid.New().String()
	started := time.Now()
	o.logger.Printf("discovery run %s: %q (top %d)", runID, req.UserIntent, maxActors)

	candidates, err := o.searchCandidates(ctx, req.UserIntent)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		o.logger.Printf("discovery run %s: no candidates found", runID)
		return []FinalRecord{}, nil
	}

	o.enrichCandidates(ctx, candidates)

	// Evaluation is sequential: the scoring backend is one shared
	// rate-limited resource, and ranking needs every verdict anyway.
	scored, unscored := o.evaluateCandidates(ctx, candidates, req.UserIntent)

	selected := o.selectTopCandidates(candidates, scored, unscored, maxActors)
	o.logger.Printf("discovery run %s: executing %d of %d candidates", runID, len(selected), len(candidates))

	records := o.executeSelected(ctx, selected, req.UserIntent)
	SortRecords(records)

	o.logger.Printf("discovery run %s: completed in %v", runID, time.Since(started))
	return records, nil
}

func (o *Orchestrator) searchCandidates(ctx context.Context, userIntent string) ([]Candidate, error) {
	terms, err := o.terms.Extract(ctx, userIntent)
	if err != nil || len(terms) == 0 {
		terms = fallbackTerms(userIntent)
	}

	limit := o.cfg.Platform.SearchLimit
	if limit <= 0 {
		limit = 20
	}

	candidates, err := o.source.Search(ctx, terms, limit)
	if err != nil {
		var unavailable *SourceUnavailableError
		if errors.As(err, &unavailable) {
			// Catalog outage is non-fatal; the run proceeds with an
			// empty candidate set.
			o.logger.Printf("warn: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("candidate search: %w", err)
	}
	return candidates, nil
}

// enrichCandidates augments candidates in place with detail text and pricing
// hints. Enrichment failure is non-fatal; the candidate proceeds with empty
// detail text.
func (o *Orchestrator) enrichCandidates(ctx context.Context, candidates []Candidate) {
	if o.enricher == nil {
		return
	}
	for i := range candidates {
		detail, pricing, err := o.enricher.Fetch(ctx, candidates[i])
		if err != nil {
			o.logger.Printf("warn: detail fetch for %s failed: %v", candidates[i].ID, err)
			continue
		}
		candidates[i].DetailText = detail
		candidates[i].PricingHint = pricing
	}
}

// evaluateCandidates scores every candidate one completion call at a time.
// A failed evaluation drops the candidate from scoring, never the batch.
func (o *Orchestrator) evaluateCandidates(ctx context.Context, candidates []Candidate, userIntent string) (scored []CandidateScore, unscored []string) {
	for _, candidate := range candidates {
		score, err := o.evaluator.Evaluate(ctx, candidate, userIntent)
		if err != nil {
			o.logger.Printf("warn: %v", err)
			unscored = append(unscored, candidate.ID)
			continue
		}
		scored = append(scored, score)
	}
	return scored, unscored
}

// selection pairs a candidate with its optional score for execution.
type selection struct {
	candidate Candidate
	score     *CandidateScore
}

// selectTopCandidates ranks the scored candidates and takes the top K. When
// fewer than K candidates carry a score, remaining slots are filled with
// unscored candidates in encounter order; their execution is still reported,
// just without score fields.
func (o *Orchestrator) selectTopCandidates(candidates []Candidate, scored []CandidateScore, unscored []string, k int) []selection {
	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	var selected []selection
	for _, score := range Rank(scored, k) {
		score := score
		selected = append(selected, selection{candidate: byID[score.CandidateID], score: &score})
	}
	for _, id := range unscored {
		if len(selected) >= k {
			break
		}
		selected = append(selected, selection{candidate: byID[id]})
	}
	return selected
}

// executeSelected fans out one independent control loop per selected
// candidate. Each loop owns its attempt counter, failure reason and attempt
// history; the only shared data is the read-only selection list. A panicking
// loop becomes a failed record instead of aborting the batch.
func (o *Orchestrator) executeSelected(ctx context.Context, selected []selection, userIntent string) []FinalRecord {
	records := make([]FinalRecord, len(selected))
	var wg sync.WaitGroup

	for i, sel := range selected {
		wg.Add(1)
		go func(i int, sel selection) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Printf("error: execution loop for %s panicked: %v", sel.candidate.ID, r)
					records[i] = Merge(sel.candidate, sel.score, &ExecutionOutcome{
						CandidateID: sel.candidate.ID,
						Attempts: []ExecutionAttempt{{
							AttemptNumber: 1,
							Outcome:       OutcomeNonRetryable,
							Reason:        fmt.Sprintf("internal error: %v", r),
						}},
					})
				}
			}()
			outcome := o.controller.Execute(ctx, sel.candidate, userIntent)
			records[i] = Merge(sel.candidate, sel.score, outcome)
		}(i, sel)
	}

	wg.Wait()
	return records
}

// tokenTermExtractor is the default keyword extraction: lower-cased tokens of
// the intent with short stopwords removed.
type tokenTermExtractor struct{}

func (tokenTermExtractor) Extract(_ context.Context, userIntent string) ([]string, error) {
	return fallbackTerms(userIntent), nil
}

var searchStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "from": {}, "i": {}, "in": {},
	"me": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "want": {},
	"with": {},
}

func fallbackTerms(userIntent string) []string {
	fields := strings.Fields(strings.ToLower(userIntent))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f == "" {
			continue
		}
		if _, skip := searchStopwords[f]; skip {
			continue
		}
		terms = append(terms, f)
	}
	if len(terms) == 0 {
		terms = []string{strings.TrimSpace(userIntent)}
	}
	return terms
}
