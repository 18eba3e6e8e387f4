package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/hostwatch/internal/config"
	"github.com/hazz-dev/hostwatch/internal/probe"
	"github.com/hazz-dev/hostwatch/internal/server"
	"github.com/hazz-dev/hostwatch/internal/storage"
)

// mockJournal implements server.Journal for testing.
type mockJournal struct {
	history map[int][]storage.Transition
	total   map[int]int
	err     error

	gotLimit, gotOffset int
}

func (m *mockJournal) HostTransitions(_ context.Context, host, limit, offset int) ([]storage.Transition, int, error) {
	m.gotLimit, m.gotOffset = limit, offset
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.history[host], m.total[host], nil
}

// staticStatus implements server.StatusSource.
type staticStatus []probe.Outcome

func (s staticStatus) Snapshot() []probe.Outcome { return s }

func makeHosts() []config.Host {
	return []config.Host{
		{Address: "100.64.0.1"},
		{Address: "100.64.0.2"},
	}
}

func makeTransition(host int, status string) storage.Transition {
	return storage.Transition{
		ID:         1,
		Host:       host,
		Address:    "100.64.0.1",
		Status:     status,
		Delivered:  true,
		NotifiedAt: time.Now().UTC(),
	}
}

func newServer(journal *mockJournal) *server.Server {
	return server.New(staticStatus{probe.Reachable, probe.Unknown}, journal, makeHosts(), nil)
}

func doRequest(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(&mockJournal{})
	w := doRequest(t, s.Router(), "GET", "/api/health")

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	decodeJSON(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestListHosts_LiveStatus(t *testing.T) {
	s := newServer(&mockJournal{})
	w := doRequest(t, s.Router(), "GET", "/api/hosts")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data  []map[string]interface{} `json:"data"`
		Error string                   `json:"error"`
	}
	decodeJSON(t, w, &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(resp.Data))
	}
	if resp.Data[0]["label"] != "Server-0" || resp.Data[0]["status"] != "reachable" || resp.Data[0]["glyph"] != "🟢" {
		t.Errorf("unexpected host 0: %v", resp.Data[0])
	}
	if resp.Data[1]["status"] != "unknown" {
		t.Errorf("expected host 1 unknown before first probe, got %v", resp.Data[1]["status"])
	}
	if resp.Data[1]["address"] != "100.64.0.2" {
		t.Errorf("unexpected address %v", resp.Data[1]["address"])
	}
}

func TestGetHost_Found(t *testing.T) {
	journal := &mockJournal{
		history: map[int][]storage.Transition{0: {makeTransition(0, "reachable")}},
		total:   map[int]int{0: 1},
	}
	s := newServer(journal)
	w := doRequest(t, s.Router(), "GET", "/api/hosts/0")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Label             string                   `json:"label"`
			Status            string                   `json:"status"`
			RecentTransitions []map[string]interface{} `json:"recent_transitions"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	if resp.Data.Label != "Server-0" {
		t.Errorf("expected label 'Server-0', got %q", resp.Data.Label)
	}
	if resp.Data.Status != "reachable" {
		t.Errorf("expected live status 'reachable', got %q", resp.Data.Status)
	}
	if len(resp.Data.RecentTransitions) != 1 {
		t.Errorf("expected 1 recent transition, got %d", len(resp.Data.RecentTransitions))
	}
	if journal.gotLimit != 10 {
		t.Errorf("expected 10 recent transitions requested, got %d", journal.gotLimit)
	}
}

func TestGetHost_NotFound(t *testing.T) {
	s := newServer(&mockJournal{})
	for _, path := range []string{"/api/hosts/2", "/api/hosts/-1", "/api/hosts/abc"} {
		w := doRequest(t, s.Router(), "GET", path)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestGetHost_JournalError(t *testing.T) {
	s := newServer(&mockJournal{err: errors.New("db locked")})
	w := doRequest(t, s.Router(), "GET", "/api/hosts/0")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestGetHostTransitions_Pagination(t *testing.T) {
	ts := make([]storage.Transition, 5)
	for i := range ts {
		ts[i] = makeTransition(1, "unreachable")
	}
	journal := &mockJournal{
		history: map[int][]storage.Transition{1: ts},
		total:   map[int]int{1: 50},
	}
	s := newServer(journal)
	w := doRequest(t, s.Router(), "GET", "/api/hosts/1/transitions?limit=5&offset=10")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Transitions []interface{} `json:"transitions"`
			Total       int           `json:"total"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	if resp.Data.Total != 50 {
		t.Errorf("expected total 50, got %d", resp.Data.Total)
	}
	if len(resp.Data.Transitions) != 5 {
		t.Errorf("expected 5 transitions, got %d", len(resp.Data.Transitions))
	}
	if journal.gotLimit != 5 || journal.gotOffset != 10 {
		t.Errorf("expected limit 5 offset 10, got %d/%d", journal.gotLimit, journal.gotOffset)
	}
}

func TestGetHostTransitions_LimitCapped(t *testing.T) {
	journal := &mockJournal{}
	s := newServer(journal)
	w := doRequest(t, s.Router(), "GET", "/api/hosts/0/transitions?limit=5000")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if journal.gotLimit != 1000 {
		t.Errorf("expected limit capped at 1000, got %d", journal.gotLimit)
	}
}

func TestGetHostTransitions_EmptyIsArray(t *testing.T) {
	s := newServer(&mockJournal{})
	w := doRequest(t, s.Router(), "GET", "/api/hosts/0/transitions")

	var resp struct {
		Data struct {
			Transitions []interface{} `json:"transitions"`
		} `json:"data"`
	}
	decodeJSON(t, w, &resp)
	if resp.Data.Transitions == nil {
		t.Error("expected empty array, got null")
	}
}

func TestGetHostTransitions_NotFound(t *testing.T) {
	s := newServer(&mockJournal{})
	w := doRequest(t, s.Router(), "GET", "/api/hosts/7/transitions")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetHostTransitions_InvalidLimit(t *testing.T) {
	s := newServer(&mockJournal{})
	w := doRequest(t, s.Router(), "GET", "/api/hosts/0/transitions?limit=bad")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestGetHostTransitions_InvalidOffset(t *testing.T) {
	s := newServer(&mockJournal{})
	w := doRequest(t, s.Router(), "GET", "/api/hosts/0/transitions?offset=-3")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad offset, got %d", w.Code)
	}
}
