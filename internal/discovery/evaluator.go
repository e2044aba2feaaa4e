package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"actorscout/config"
	"actorscout/internal/helpers"
	"actorscout/internal/telemetry"
)

// The seven fixed scoring criteria.
const (
	CriterionIntentMatch     = "intent_match"
	CriterionDocumentation   = "documentation_quality"
	CriterionPricing         = "price_effectiveness"
	CriterionReliability     = "reliability_signal"
	CriterionMaintenance     = "maintenance_recency"
	CriterionCommunityTrust  = "community_trust"
	CriterionInputSimplicity = "input_simplicity"
)

// criterionWeights is the fixed linear model; the weights sum to 1.0.
var criterionWeights = map[string]float64{
	CriterionIntentMatch:     0.30,
	CriterionReliability:     0.20,
	CriterionDocumentation:   0.15,
	CriterionPricing:         0.15,
	CriterionMaintenance:     0.10,
	CriterionCommunityTrust:  0.05,
	CriterionInputSimplicity: 0.05,
}

// criterionOrder keeps prompt output deterministic.
var criterionOrder = []string{
	CriterionIntentMatch,
	CriterionDocumentation,
	CriterionPricing,
	CriterionReliability,
	CriterionMaintenance,
	CriterionCommunityTrust,
	CriterionInputSimplicity,
}

var criterionDefinitions = map[string]string{
	CriterionIntentMatch:     "how directly the actor's declared purpose satisfies the user intent (1 = unrelated, 10 = purpose-built)",
	CriterionDocumentation:   "quality and completeness of the actor's documentation and examples (1 = none, 10 = thorough with worked examples)",
	CriterionPricing:         "cost effectiveness given the pricing hint (1 = prohibitively expensive or opaque, 10 = free or clearly cheap for the job)",
	CriterionReliability:     "reliability signal from run volume and description (1 = experimental, 10 = battle-tested)",
	CriterionMaintenance:     "recency of maintenance activity (1 = abandoned, 10 = actively maintained this month)",
	CriterionCommunityTrust:  "community trust from adoption breadth (1 = unknown author, 10 = widely adopted)",
	CriterionInputSimplicity: "how simple the declared input schema is to satisfy (1 = many obscure required fields, 10 = trivially simple)",
}

// Evaluator scores candidates against the user intent with the fixed rubric.
type Evaluator struct {
	cfg       config.DiscoveryConfig
	llm       GenerationBackend
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(cfg config.DiscoveryConfig, llm GenerationBackend, logger *log.Logger, tele *telemetry.Telemetry) *Evaluator {
	if logger == nil {
		logger = log.New(log.Writer(), "[EVAL] ", log.LstdFlags)
	}
	return &Evaluator{cfg: cfg, llm: llm, logger: logger, telemetry: tele}
}

// scoreResponse is the exact structured shape the rubric prompt demands.
type scoreResponse struct {
	Scores     map[string]float64 `json:"scores"`
	Strengths  []string           `json:"strengths"`
	Weaknesses []string           `json:"weaknesses"`
	Narrative  string             `json:"narrative"`
}

// Evaluate scores one candidate. Errors are *EvaluationError and drop only
// this candidate from ranking; they are never fatal to the batch.
func (e *Evaluator) Evaluate(ctx context.Context, candidate Candidate, userIntent string) (CandidateScore, error) {
	prompt := e.createScoringPrompt(candidate, userIntent)

	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.recordEvaluation(candidate.ID, false)
		return CandidateScore{}, &EvaluationError{CandidateID: candidate.ID, Err: err}
	}

	score, err := e.parseScoreResponse(candidate.ID, raw)
	if err != nil {
		e.recordEvaluation(candidate.ID, false)
		return CandidateScore{}, &EvaluationError{CandidateID: candidate.ID, Err: err}
	}

	e.recordEvaluation(candidate.ID, true)
	e.logger.Printf("scored %s: %.1f", candidate.ID, score.OverallScore)
	return score, nil
}

func (e *Evaluator) recordEvaluation(candidateID string, success bool) {
	if e.telemetry != nil {
		e.telemetry.RecordEvaluation(candidateID, success)
	}
}

// parseScoreResponse strips markdown fencing, decodes the strict shape and
// checks the criterion set. Out-of-range criterion values are clamped to
// [1,10] rather than rejected.
func (e *Evaluator) parseScoreResponse(candidateID, raw string) (CandidateScore, error) {
	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return CandidateScore{}, fmt.Errorf("extract scoring JSON: %w", err)
	}

	var resp scoreResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return CandidateScore{}, fmt.Errorf("parse scoring response: %w", err)
	}

	criterionScores := make(map[string]int, len(criterionOrder))
	for _, name := range criterionOrder {
		v, ok := resp.Scores[name]
		if !ok {
			return CandidateScore{}, fmt.Errorf("scoring response missing criterion %q", name)
		}
		criterionScores[name] = clampCriterion(int(math.Round(v)))
	}

	return CandidateScore{
		CandidateID:     candidateID,
		CriterionScores: criterionScores,
		OverallScore:    WeightedOverall(criterionScores),
		Strengths:       resp.Strengths,
		Weaknesses:      resp.Weaknesses,
		Narrative:       resp.Narrative,
	}, nil
}

// WeightedOverall computes the fixed weighted sum over the criterion scores,
// rounded to one decimal. It is a pure function so the linear model stays
// testable without any LLM call.
func WeightedOverall(scores map[string]int) float64 {
	var sum float64
	for name, weight := range criterionWeights {
		sum += weight * float64(scores[name])
	}
	return math.Round(sum*10) / 10
}

func clampCriterion(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func (e *Evaluator) createScoringPrompt(candidate Candidate, userIntent string) string {
	var defs strings.Builder
	for _, name := range criterionOrder {
		fmt.Fprintf(&defs, "- %s: %s\n", name, criterionDefinitions[name])
	}

	detail := candidate.DetailText
	if max := e.cfg.DetailExcerptChars; max > 0 {
		detail = truncateText(detail, max)
	}

	schema := "(not declared)"
	if len(candidate.DeclaredSchema) > 0 {
		schema = string(candidate.DeclaredSchema)
	}

	return fmt.Sprintf(`You are an expert reviewer of hosted actors (invocable third-party services). Score the actor below against the user's intent on each criterion, as an integer from 1 to 10.

CRITERIA:
%s
USER INTENT: %q

ACTOR:
ID: %s
Name: %s
Owner: %s
Description: %s
Total users: %d
Total runs: %d
Last activity: %s
Deprecated: %v
Pricing: %s
Input schema: %s

DOCUMENTATION EXCERPT:
%s

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "scores": {"intent_match": 1, "documentation_quality": 1, "price_effectiveness": 1, "reliability_signal": 1, "maintenance_recency": 1, "community_trust": 1, "input_simplicity": 1},
  "strengths": ["array", "of", "strings"],
  "weaknesses": ["array", "of", "strings"],
  "narrative": "two or three sentences justifying the scores"
}
Do not include any other text or explanation.`,
		defs.String(), userIntent,
		candidate.ID, candidate.DisplayName, candidate.Owner, candidate.Description,
		candidate.Popularity.UsageCount, candidate.Popularity.RunCount,
		candidate.Popularity.LastActivityAt.Format("2006-01-02"), candidate.Deprecated,
		candidate.PricingHint, schema, detail)
}
