package handler_test

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stepwise-ai/stepwise/internal/config"
	"github.com/stepwise-ai/stepwise/internal/router"
	"github.com/stepwise-ai/stepwise/internal/service"
)

// newTestServer spins up the full router against an in-memory database so
// handlers are exercised the same way clients hit them.
func newTestServer(t *testing.T) (*httptest.Server, *service.SSEManager) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
CREATE TABLE model_configs (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    api_key     TEXT NOT NULL DEFAULT '',
    api_key_env TEXT NOT NULL DEFAULT '',
    base_url    TEXT NOT NULL DEFAULT '',
    max_tokens  INTEGER NOT NULL DEFAULT 1024,
    temperature REAL NOT NULL DEFAULT 0,
    is_default  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE TABLE decompositions (
    id          TEXT PRIMARY KEY,
    prompt      TEXT NOT NULL,
    tasks       TEXT NOT NULL,
    source      TEXT NOT NULL,
    model       TEXT NOT NULL DEFAULT '',
    trace_id    TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);
CREATE INDEX idx_decompositions_created_at ON decompositions(created_at);
`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg := &config.Config{
		Port:                 "8080",
		DBDriver:             "sqlite",
		AuthMode:             "local_open",
		DecompositionEnabled: true,
		LLMTimeoutSeconds:    5,
	}
	sseMan := service.NewSSEManager()
	srv := httptest.NewServer(router.New(cfg, db, sseMan, nil, nil, nil))
	t.Cleanup(srv.Close)
	return srv, sseMan
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func putJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("build PUT %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// flatError asserts the body is the {"error": "..."} shape and returns the message.
func flatError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	decodeInto(t, resp, &body)
	msg, ok := body["error"]
	if !ok || msg == "" {
		t.Fatalf("expected flat error body, got %v", body)
	}
	return msg
}

func TestCreateDecomposition(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/decompositions", map[string]string{
		"prompt": "Design the schema\nBuild the API\nWrite the tests",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		DecompositionID string `json:"decomposition_id"`
		Source          string `json:"source"`
		Tasks           []struct {
			Task string `json:"task"`
		} `json:"tasks"`
	}
	decodeInto(t, resp, &body)

	if body.DecompositionID == "" {
		t.Fatal("expected a decomposition_id")
	}
	if body.Source != "heuristic" {
		t.Fatalf("source = %q, want heuristic", body.Source)
	}
	if len(body.Tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(body.Tasks))
	}
	if body.Tasks[0].Task != "Design the schema" {
		t.Fatalf("tasks[0] = %q", body.Tasks[0].Task)
	}
}

func TestCreateDecompositionRejectsBadBodies(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/decompositions", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", resp.StatusCode)
	}
	if msg := flatError(t, resp); msg != "invalid JSON body" {
		t.Fatalf("error = %q", msg)
	}

	resp = postJSON(t, srv.URL+"/v1/decompositions", map[string]string{"prompt": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank prompt status = %d, want 400", resp.StatusCode)
	}
	if msg := flatError(t, resp); msg != "prompt is required" {
		t.Fatalf("error = %q", msg)
	}
}

func TestGetDecomposition(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/decompositions", map[string]string{
		"prompt": "Check the logs\nRestart the worker",
	})
	var created struct {
		DecompositionID string `json:"decomposition_id"`
	}
	decodeInto(t, resp, &created)

	resp, err := http.Get(srv.URL + "/v1/decompositions/" + created.DecompositionID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		Prompt string `json:"prompt"`
		Source string `json:"source"`
	}
	decodeInto(t, resp, &got)
	if got.Prompt != "Check the logs\nRestart the worker" {
		t.Fatalf("prompt = %q", got.Prompt)
	}
	if got.Source != "heuristic" {
		t.Fatalf("source = %q, want heuristic", got.Source)
	}

	resp, err = http.Get(srv.URL + "/v1/decompositions/no-such-id")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", resp.StatusCode)
	}
	if msg := flatError(t, resp); msg != "decomposition not found" {
		t.Fatalf("error = %q", msg)
	}
}

func TestListDecompositions(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv.URL+"/v1/decompositions", map[string]string{
			"prompt": fmt.Sprintf("Prompt number %d\nwith a second line", i),
		})
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/v1/decompositions?limit=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Decompositions []struct {
			DecompositionID string `json:"decomposition_id"`
		} `json:"decompositions"`
	}
	decodeInto(t, resp, &body)
	if len(body.Decompositions) != 2 {
		t.Fatalf("got %d decompositions, want 2 (limit)", len(body.Decompositions))
	}
}

func TestModelConfigLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/v1/model-configs"

	resp := postJSON(t, base, map[string]any{
		"name":       "primary",
		"provider":   "openai",
		"model":      "gpt-4o-mini",
		"max_tokens": 512,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		MaxTokens int    `json:"max_tokens"`
		IsDefault bool   `json:"is_default"`
	}
	decodeInto(t, resp, &created)
	if created.ID == "" || created.Name != "primary" || created.MaxTokens != 512 {
		t.Fatalf("unexpected created config: %+v", created)
	}

	resp = putJSON(t, base+"/"+created.ID, map[string]any{"max_tokens": 2048})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	var updated struct {
		MaxTokens int `json:"max_tokens"`
	}
	decodeInto(t, resp, &updated)
	if updated.MaxTokens != 2048 {
		t.Fatalf("max_tokens = %d after update, want 2048", updated.MaxTokens)
	}

	resp = postJSON(t, base+"/"+created.ID+"/default", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set default status = %d, want 200", resp.StatusCode)
	}
	var promoted struct {
		IsDefault bool `json:"is_default"`
	}
	decodeInto(t, resp, &promoted)
	if !promoted.IsDefault {
		t.Fatal("expected is_default=true after promotion")
	}

	req, _ := http.NewRequest(http.MethodDelete, base+"/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	var deleted struct {
		Deleted bool `json:"deleted"`
	}
	decodeInto(t, resp, &deleted)
	if !deleted.Deleted {
		t.Fatal(`expected {"deleted": true}`)
	}

	resp, err = http.Get(base + "/" + created.ID)
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestModelConfigCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/model-configs", map[string]any{
		"name":  "broken",
		"model": "gpt-4o-mini",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := flatError(t, resp); !strings.Contains(msg, "provider") {
		t.Fatalf("error = %q, want a provider complaint", msg)
	}
}

func TestSettingsToggleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	url := srv.URL + "/v1/settings/decomposition"

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var state struct {
		Enabled bool `json:"enabled"`
	}
	decodeInto(t, resp, &state)
	if !state.Enabled {
		t.Fatal("expected default enabled=true")
	}

	resp = putJSON(t, url, map[string]bool{"enabled": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", resp.StatusCode)
	}
	decodeInto(t, resp, &state)
	if state.Enabled {
		t.Fatal("expected enabled=false after PUT")
	}

	resp = putJSON(t, url, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("PUT without enabled status = %d, want 400", resp.StatusCode)
	}
	if msg := flatError(t, resp); msg != "enabled is required" {
		t.Fatalf("error = %q", msg)
	}
}

func TestEventsStream(t *testing.T) {
	srv, sseMan := newTestServer(t)

	// Published before the subscription, delivered by replay.
	sseMan.PublishJSON(service.TopicActivity, "decomposition.created",
		map[string]string{"decomposition_id": "dec-1"})

	resp, err := http.Get(srv.URL + "/v1/events?since_seq=0")
	if err != nil {
		t.Fatalf("GET /v1/events: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	lines := make(chan string, 32)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimRight(line, "\n")
		}
	}()

	readEvent := func(wantID string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		var sawType, sawData bool
		for !(sawType && sawData) {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatal("stream closed before event arrived")
				}
				if line == "event: decomposition.created" {
					sawType = true
				}
				if strings.HasPrefix(line, "data: ") && strings.Contains(line, wantID) {
					sawData = true
				}
			case <-deadline:
				t.Fatalf("timed out waiting for event %s", wantID)
			}
		}
	}

	readEvent("dec-1")

	// Published while connected, delivered live.
	sseMan.PublishJSON(service.TopicActivity, "decomposition.created",
		map[string]string{"decomposition_id": "dec-2"})
	readEvent("dec-2")
}
