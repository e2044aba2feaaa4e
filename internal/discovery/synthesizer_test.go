package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSynthesizeParsesGeneratedInput(t *testing.T) {
	backend := &stubBackend{responses: []string{"```json\n{\"query\": \"rome weather\", \"limit\": 10}\n```"}}
	synth := NewInputSynthesizer(backend, nil)

	input, err := synth.Synthesize(context.Background(), testCandidate("a"), "weather in rome", "", 1, 5)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if input["query"] != "rome weather" {
		t.Fatalf("unexpected query: %v", input["query"])
	}
	if input["limit"] != float64(10) {
		t.Fatalf("unexpected limit: %v", input["limit"])
	}
}

func TestSynthesizePromptCarriesSchemaVerbatim(t *testing.T) {
	backend := &stubBackend{responses: []string{`{"query": "x"}`}}
	synth := NewInputSynthesizer(backend, nil)
	candidate := testCandidate("a")

	if _, err := synth.Synthesize(context.Background(), candidate, "intent", "", 1, 5); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(backend.prompts[0], string(candidate.DeclaredSchema)) {
		t.Fatalf("prompt does not carry the declared schema verbatim")
	}
}

func TestSynthesizeFirstAttemptHasNoRepairBlock(t *testing.T) {
	backend := &stubBackend{responses: []string{`{"query": "x"}`}}
	synth := NewInputSynthesizer(backend, nil)

	if _, err := synth.Synthesize(context.Background(), testCandidate("a"), "intent", "", 1, 5); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if strings.Contains(backend.prompts[0], "PREVIOUS ATTEMPT FAILED") {
		t.Fatalf("first-attempt prompt must not carry a repair block")
	}
}

func TestSynthesizeRepairPromptCarriesVerbatimReason(t *testing.T) {
	backend := &stubBackend{responses: []string{`{"query": "x"}`}}
	synth := NewInputSynthesizer(backend, nil)
	reason := `field "startUrls" must be a non-empty array`

	if _, err := synth.Synthesize(context.Background(), testCandidate("a"), "intent", reason, 2, 5); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	prompt := backend.prompts[0]
	if !strings.Contains(prompt, "PREVIOUS ATTEMPT FAILED") {
		t.Fatalf("repair block missing on attempt 2")
	}
	if !strings.Contains(prompt, reason) {
		t.Fatalf("failure reason not carried verbatim into the prompt")
	}
}

func TestSynthesizeNonJSONResponseIsParseError(t *testing.T) {
	backend := &stubBackend{responses: []string{"I cannot produce an input for this actor."}}
	synth := NewInputSynthesizer(backend, nil)

	_, err := synth.Synthesize(context.Background(), testCandidate("a"), "intent", "", 1, 5)
	var parseErr *SynthesisParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected SynthesisParseError, got %v", err)
	}
	if parseErr.RawText == "" {
		t.Fatalf("parse error must preserve the raw generation text")
	}
}

func TestSynthesizeNonObjectPayloadIsParseError(t *testing.T) {
	backend := &stubBackend{responses: []string{`["not", "an", "object"]`}}
	synth := NewInputSynthesizer(backend, nil)

	_, err := synth.Synthesize(context.Background(), testCandidate("a"), "intent", "", 1, 5)
	var parseErr *SynthesisParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected SynthesisParseError, got %v", err)
	}
}

func TestSynthesizeBackendErrorIsNotParseError(t *testing.T) {
	backend := &stubBackend{errs: []error{errors.New("rate limited")}}
	synth := NewInputSynthesizer(backend, nil)

	_, err := synth.Synthesize(context.Background(), testCandidate("a"), "intent", "", 1, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	var parseErr *SynthesisParseError
	if errors.As(err, &parseErr) {
		t.Fatalf("backend transport failure must not classify as a parse error")
	}
}
