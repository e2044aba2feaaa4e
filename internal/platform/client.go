package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"actorscout/config"
	"actorscout/internal/discovery"
)

// runWaitGrace is added on top of the run budget when deriving the long-poll
// request deadline, so the platform's own timeout classification wins over a
// client-side abort.
const runWaitGrace = 15 * time.Second

// Client talks to the hosted actor platform. It implements the discovery
// collaborator contracts: CandidateSource, DetailEnricher and CandidateRunner.
type Client struct {
	cfg    config.PlatformConfig
	http   *http.Client
	runs   *http.Client
	logger *log.Logger
}

// NewClient creates a platform client. A missing API token is fatal: without
// credentials no collaborator call can succeed, so the run aborts before any
// work begins. Catalog calls share a short transport timeout; run long-polls
// get a dedicated client whose deadline is derived per request from the run
// budget, so the configured transport timeout never cuts a run short.
func NewClient(cfg config.PlatformConfig, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("platform API token not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PLATFORM] ", log.LstdFlags)
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		runs:   &http.Client{},
		logger: logger,
	}, nil
}

// storeItem mirrors one catalog entry of the store search response.
type storeItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Stats       struct {
		TotalUsers int `json:"totalUsers"`
		TotalRuns  int `json:"totalRuns"`
	} `json:"stats"`
	ModifiedAt   time.Time       `json:"modifiedAt"`
	IsDeprecated bool            `json:"isDeprecated"`
	InputSchema  json.RawMessage `json:"inputSchema,omitempty"`
}

// Search resolves search terms to raw candidates via the catalog store.
// Outages surface as *discovery.SourceUnavailableError so the run can proceed
// with an empty candidate set.
func (c *Client) Search(ctx context.Context, terms []string, limit int) ([]discovery.Candidate, error) {
	q := url.Values{}
	q.Set("search", strings.Join(terms, " "))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", "0")

	var out struct {
		Data struct {
			Items []storeItem `json:"items"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/store?"+q.Encode(), &out); err != nil {
		return nil, &discovery.SourceUnavailableError{Err: err}
	}

	candidates := make([]discovery.Candidate, 0, len(out.Data.Items))
	for _, item := range out.Data.Items {
		id := item.ID
		if id == "" {
			id = item.Username + "/" + item.Name
		}
		name := item.Title
		if name == "" {
			name = item.Name
		}
		candidates = append(candidates, discovery.Candidate{
			ID:          id,
			DisplayName: name,
			Owner:       item.Username,
			Description: item.Description,
			Popularity: discovery.PopularitySignals{
				UsageCount:     item.Stats.TotalUsers,
				RunCount:       item.Stats.TotalRuns,
				LastActivityAt: item.ModifiedAt,
			},
			DeclaredSchema: item.InputSchema,
			Deprecated:     item.IsDeprecated,
		})
	}
	return candidates, nil
}

// Fetch augments a candidate with its readme text and a pricing hint.
func (c *Client) Fetch(ctx context.Context, candidate discovery.Candidate) (string, string, error) {
	var out struct {
		Data struct {
			Readme       string `json:"readme"`
			PricingInfos []struct {
				PricingModel    string  `json:"pricingModel"`
				PricePerUnitUSD float64 `json:"pricePerUnitUsd"`
				TrialMinutes    int     `json:"trialMinutes"`
			} `json:"pricingInfos"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/acts/"+url.PathEscape(candidate.ID), &out); err != nil {
		return "", "", err
	}

	pricing := "free or unpublished pricing"
	if n := len(out.Data.PricingInfos); n > 0 {
		latest := out.Data.PricingInfos[n-1]
		pricing = fmt.Sprintf("%s at %.4f USD per unit", latest.PricingModel, latest.PricePerUnitUSD)
		if latest.TrialMinutes > 0 {
			pricing += fmt.Sprintf(" (%d trial minutes)", latest.TrialMinutes)
		}
	}
	return out.Data.Readme, pricing, nil
}

// runPayload mirrors the platform's run resource.
type runPayload struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
		Stats            struct {
			DurationMillis int64 `json:"durationMillis"`
		} `json:"stats"`
	} `json:"data"`
}

// Invoke starts an actor run with the synthesized input and waits for a
// terminal status within the given wall-clock timeout. A run still not
// terminal after the wait is classified as timed out.
func (c *Client) Invoke(ctx context.Context, candidateID string, input map[string]any, timeout time.Duration, memoryMB int) (discovery.RunResult, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return discovery.RunResult{}, &discovery.InvocationError{CandidateID: candidateID, Err: fmt.Errorf("marshal input: %w", err)}
	}

	timeoutSecs := int(timeout.Seconds())
	q := url.Values{}
	q.Set("waitForFinish", strconv.Itoa(timeoutSecs))
	q.Set("timeout", strconv.Itoa(timeoutSecs))
	q.Set("memory", strconv.Itoa(memoryMB))

	// The long-poll must be allowed to wait out the whole run budget; the
	// grace margin leaves room for the platform to report TIMED-OUT itself.
	ctx, cancel := context.WithTimeout(ctx, timeout+runWaitGrace)
	defer cancel()

	path := "/acts/" + url.PathEscape(candidateID) + "/runs?" + q.Encode()
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return discovery.RunResult{}, &discovery.InvocationError{CandidateID: candidateID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.runs.Do(req)
	if err != nil {
		return discovery.RunResult{}, &discovery.InvocationError{CandidateID: candidateID, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return discovery.RunResult{}, &discovery.InvocationError{
			CandidateID: candidateID,
			Err:         fmt.Errorf("platform status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var run runPayload
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return discovery.RunResult{}, &discovery.InvocationError{CandidateID: candidateID, Err: fmt.Errorf("decode run: %w", err)}
	}

	return discovery.RunResult{
		Status:          classifyRunStatus(run.Data.Status),
		RunID:           run.Data.ID,
		DurationSeconds: float64(run.Data.Stats.DurationMillis) / 1000.0,
		OutputLocation:  run.Data.DefaultDatasetID,
	}, nil
}

// classifyRunStatus maps platform statuses onto the discovery run statuses.
// A run that is still not terminal after the bounded wait counts as timed out.
func classifyRunStatus(status string) discovery.RunStatus {
	switch status {
	case "SUCCEEDED":
		return discovery.RunSucceeded
	case "TIMED-OUT", "TIMING-OUT", "READY", "RUNNING":
		return discovery.RunTimedOut
	case "ABORTED", "ABORTING":
		return discovery.RunAborted
	default:
		return discovery.RunFailed
	}
}

// ListOutputSample returns up to limit items from the run's output dataset.
func (c *Client) ListOutputSample(ctx context.Context, outputLocation string, limit int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("format", "json")

	var items []json.RawMessage
	path := "/datasets/" + url.PathEscape(outputLocation) + "/items?" + q.Encode()
	if err := c.getJSON(ctx, path, &items); err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
