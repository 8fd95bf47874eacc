package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/llms"
)

func sse(lines ...string) string {
	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "data: %s\n\n", line)
	}
	return b.String()
}

func TestStreamYieldsContentAndAssembledToolCalls(t *testing.T) {
	var received requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing authorization header")
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sse(
			`{"choices":[{"delta":{"role":"assistant","content":"YE"}}]}`,
			`{"choices":[{"delta":{"content":"S"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"query\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]},"finish_reason":"tool_calls"}],"x_groq":{"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}}`,
			"[DONE]",
		))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL+"/openai/v1"), WithHTTPClient(server.Client()))
	messages := []conversation.Message{
		conversation.SystemMessage("classify"),
		{Role: conversation.RoleAssistant, ToolCalls: []conversation.ToolCall{{ID: "a", Name: "x", Arguments: "{}"}}},
		conversation.ToolResultMessage("a", "x", "done"),
		conversation.UserMessage("hello"),
	}
	tools := []conversation.ToolSchema{{Type: "function", Function: conversation.FunctionSchema{Name: "web_search"}}}

	var content string
	var calls []conversation.ToolCall
	var usage llms.Usage
	for chunk, err := range client.Stream(context.Background(), messages, tools).Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		switch c := chunk.(type) {
		case llms.StreamContentChunk:
			content += c.Content()
		case llms.StreamToolCallChunk:
			calls = append(calls, c.ToolCall())
		case llms.StreamUsageChunk:
			usage = c.Usage()
		}
	}

	if content != "YES" {
		t.Fatalf("expected content YES, got %q", content)
	}
	if len(calls) != 1 || calls[0].ID != "call_1" || calls[0].Name != "web_search" || calls[0].Arguments != `{"query":"go"}` {
		t.Fatalf("unexpected tool calls %+v", calls)
	}
	if usage.TotalTokens != 12 {
		t.Fatalf("expected usage to be reported, got %+v", usage)
	}

	if received.Model != DefaultModel || !received.Stream {
		t.Fatalf("unexpected request %+v", received)
	}
	if len(received.Messages) != 4 || received.Messages[1].ToolCalls[0].Function.Name != "x" || received.Messages[2].ToolCallID != "a" {
		t.Fatalf("unexpected converted messages %+v", received.Messages)
	}
	if len(received.Tools) != 1 || received.Tools[0].Function.Name != "web_search" {
		t.Fatalf("unexpected converted tools %+v", received.Tools)
	}
}

func TestStreamReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	var gotErr error
	for _, err := range client.Stream(context.Background(), nil, nil).Chunks(context.Background()) {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "429") {
		t.Fatalf("expected status error, got %v", gotErr)
	}
}
