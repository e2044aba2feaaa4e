package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"actorscout/internal/discovery"
	"actorscout/internal/storage"
)

type stubDiscoverer struct {
	records []discovery.FinalRecord
	err     error
	got     discovery.Request
}

func (s *stubDiscoverer) Discover(_ context.Context, req discovery.Request) ([]discovery.FinalRecord, error) {
	s.got = req
	return s.records, s.err
}

type memStorage struct {
	saved   []storage.RunRecord
	saveErr error
}

func (m *memStorage) SaveRunRecord(_ context.Context, record storage.RunRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, record)
	return nil
}

func (m *memStorage) GetRunRecord(_ context.Context, id string) (storage.RunRecord, bool, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, true, nil
		}
	}
	return storage.RunRecord{}, false, nil
}

func (m *memStorage) Close() error { return nil }

func newTestHandler(d Discoverer, store storage.Storage) (*echo.Echo, *DiscoverHandler) {
	e := echo.New()
	h := &DiscoverHandler{
		Orchestrator: d,
		Store:        store,
		Logger:       log.New(io.Discard, "", 0),
	}
	h.Register(e.Group("/api"))
	return e, h
}

func TestDiscoverEndpointReturnsRecords(t *testing.T) {
	disc := &stubDiscoverer{records: []discovery.FinalRecord{
		{Candidate: discovery.Candidate{ID: "acme/scraper"}, Score: &discovery.CandidateScore{OverallScore: 8.1}},
	}}
	store := &memStorage{}
	e, _ := newTestHandler(disc, store)

	req := httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(`{"user_intent": "scrape weather", "max_actors": 2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if disc.got.UserIntent != "scrape weather" || disc.got.MaxActors != 2 {
		t.Fatalf("request not bound: %+v", disc.got)
	}

	var resp struct {
		RunID   string                  `json:"run_id"`
		Records []discovery.FinalRecord `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Fatalf("missing run id")
	}
	if len(resp.Records) != 1 || resp.Records[0].Candidate.ID != "acme/scraper" {
		t.Fatalf("unexpected records: %+v", resp.Records)
	}
	if len(store.saved) != 1 || store.saved[0].ID != resp.RunID {
		t.Fatalf("run record not persisted: %+v", store.saved)
	}
}

func TestDiscoverEndpointRejectsMissingIntent(t *testing.T) {
	e, _ := newTestHandler(&stubDiscoverer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(`{"max_actors": 2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestDiscoverEndpointStorageFailureIsBestEffort(t *testing.T) {
	disc := &stubDiscoverer{records: []discovery.FinalRecord{}}
	store := &memStorage{saveErr: errors.New("sink down")}
	e, _ := newTestHandler(disc, store)

	req := httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(`{"user_intent": "scrape weather"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("persistence failure must not fail the request: %d", rec.Code)
	}
}

func TestGetRunEndpoint(t *testing.T) {
	store := &memStorage{saved: []storage.RunRecord{{ID: "run-1", UserIntent: "scrape weather"}}}
	e, _ := newTestHandler(&stubDiscoverer{}, store)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var record storage.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.UserIntent != "scrape weather" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestGetRunEndpointNotFound(t *testing.T) {
	e, _ := newTestHandler(&stubDiscoverer{}, &memStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}
