package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/guardline-ai/guardline/pkg/engine"
	"github.com/guardline-ai/guardline/pkg/upstream"
)

// stubUpstream returns an OpenAI-compatible server always answering with the
// given content.
func stubUpstream(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": ` + mustJSON(t, content) + `}, "finish_reason": "stop"}]
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func newTestApp(t *testing.T, upstreamContent string) *fiber.App {
	t.Helper()
	eng := engine.New()
	t.Cleanup(func() { _ = eng.Close() })

	srv := stubUpstream(t, upstreamContent)
	model := upstream.NewClient(srv.URL, "", "test-model")
	return newApp(eng, model)
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(mustJSON(t, body))))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(data, &decoded)
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, "ok")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDetectEndpoint(t *testing.T) {
	app := newTestApp(t, "ok")

	resp, body := postJSON(t, app, "/detect", map[string]string{"text": "I lost my job"})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["level"] != "ENHANCED" {
		t.Errorf("level = %v, want ENHANCED", body["level"])
	}
}

func TestTrackEndpointMintsConversationID(t *testing.T) {
	app := newTestApp(t, "ok")

	resp, body := postJSON(t, app, "/track", map[string]string{"text": "hello"})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	id, _ := body["conversation_id"].(string)
	if id == "" {
		t.Fatal("no conversation id minted")
	}

	// Same id continues the same session.
	resp, body = postJSON(t, app, "/track", map[string]string{
		"conversation_id": id,
		"text":            "I lost my job",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	state, _ := body["state"].(map[string]any)
	if state["turn_count"] != float64(2) {
		t.Errorf("turn_count = %v, want 2", state["turn_count"])
	}
}

func TestCrisisEndpoint(t *testing.T) {
	app := newTestApp(t, "ok")

	resp, body := postJSON(t, app, "/crisis", map[string]string{
		"text": "I can't take it anymore, this is my last hope",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	assessment, _ := body["assessment"].(map[string]any)
	if assessment["crisis_type"] != "mental_health" {
		t.Errorf("crisis_type = %v", assessment["crisis_type"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "988") {
		t.Errorf("crisis message missing 988:\n%s", msg)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	app := newTestApp(t, "ok")

	resp, body := postJSON(t, app, "/verify", map[string]any{
		"response":    "Cheer up, it gets better.",
		"level":       "crisis",
		"crisis_type": "mental_health",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["blocked"] != true {
		t.Errorf("resourceless crisis response not blocked: %v", body)
	}

	resp, _ = postJSON(t, app, "/verify", map[string]any{
		"response": "x", "level": "bogus",
	})
	if resp.StatusCode != 400 {
		t.Errorf("bad level status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownConversationReturns404(t *testing.T) {
	app := newTestApp(t, "ok")

	req := httptest.NewRequest(http.MethodGet, "/conversations/never-seen", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestChatProxySubstitutesCrisisResources(t *testing.T) {
	// Upstream answers a crisis message with cheerful fluff and no resources.
	app := newTestApp(t, "Don't worry, things always work out in the end!")

	resp, body := postJSON(t, app, "/v1/chat/completions", upstream.ChatRequest{
		Messages: []upstream.Message{
			{Role: "user", Content: "I can't take it anymore, this is my last hope"},
		},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	choices, _ := body["choices"].([]any)
	if len(choices) == 0 {
		t.Fatal("no choices in proxy response")
	}
	first := choices[0].(map[string]any)
	message := first["message"].(map[string]any)
	content, _ := message["content"].(string)

	if !strings.Contains(content, "988") {
		t.Errorf("substituted response missing crisis resources:\n%s", content)
	}
	if strings.Contains(content, "always work out") {
		t.Error("unverified upstream response leaked through")
	}
	if first["finish_reason"] != "content_filter" {
		t.Errorf("finish_reason = %v, want content_filter", first["finish_reason"])
	}
}

func TestChatProxyPassesCleanResponses(t *testing.T) {
	app := newTestApp(t, "Happy to help. What kind of party are you planning?")

	resp, body := postJSON(t, app, "/v1/chat/completions", upstream.ChatRequest{
		Messages: []upstream.Message{
			{Role: "user", Content: "Help me plan a birthday party"},
		},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	choices, _ := body["choices"].([]any)
	message := choices[0].(map[string]any)["message"].(map[string]any)
	if got := message["content"]; got != "Happy to help. What kind of party are you planning?" {
		t.Errorf("clean response altered: %v", got)
	}
}

func TestChatProxyRejectsEmptyRequest(t *testing.T) {
	app := newTestApp(t, "ok")

	resp, _ := postJSON(t, app, "/v1/chat/completions", upstream.ChatRequest{
		Messages: []upstream.Message{{Role: "system", Content: "be nice"}},
	})
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"standard", false},
		{"ENHANCED", false},
		{" crisis ", false},
		{"", false},
		{"maximum", true},
	}
	for _, tt := range tests {
		if _, err := parseLevel(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) err = %v", tt.in, err)
		}
	}
}
