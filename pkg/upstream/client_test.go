package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func stubServer(t *testing.T, status int, handler func(ChatRequest) ChatResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(handler(req))
		} else {
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func okResponse(content string) func(ChatRequest) ChatResponse {
	return func(ChatRequest) ChatResponse {
		var resp ChatResponse
		resp.ID = "chatcmpl-test"
		resp.Choices = append(resp.Choices, struct {
			Index        int     `json:"index"`
			Message      Message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		}{Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"})
		return resp
	}
}

func TestComplete(t *testing.T) {
	srv := stubServer(t, http.StatusOK, okResponse("hello back"))
	c := NewClient(srv.URL, "test-key", "test-model")

	resp, err := c.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := Content(resp); got != "hello back" {
		t.Errorf("Content = %q", got)
	}
}

func TestCompleteFillsModel(t *testing.T) {
	var gotModel string
	srv := stubServer(t, http.StatusOK, func(req ChatRequest) ChatResponse {
		gotModel = req.Model
		return okResponse("ok")(req)
	})
	c := NewClient(srv.URL, "", "fallback-model")

	if _, err := c.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotModel != "fallback-model" {
		t.Errorf("request model = %q, want fallback-model", gotModel)
	}
}

func TestCompleteValidation(t *testing.T) {
	c := NewClient("http://localhost:0", "", "m")
	if _, err := c.Complete(context.Background(), ChatRequest{}); err == nil {
		t.Error("Complete accepted empty message list")
	}
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := stubServer(t, http.StatusTooManyRequests, nil)
	c := NewClient(srv.URL, "", "m")

	_, err := c.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete succeeded against failing upstream")
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := stubServer(t, http.StatusOK, func(ChatRequest) ChatResponse {
		return ChatResponse{ID: "empty"}
	})
	c := NewClient(srv.URL, "", "m")

	_, err := c.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete accepted a response without choices")
	}
}

func TestContentNil(t *testing.T) {
	if got := Content(nil); got != "" {
		t.Errorf("Content(nil) = %q", got)
	}
}
