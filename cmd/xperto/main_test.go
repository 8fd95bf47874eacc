package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/sessions"
	"github.com/koscakluka/xperto/core/tools"
)

func TestPrintSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store, err := sessions.NewStore(t.TempDir(), sessions.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	var out bytes.Buffer
	if err := printSessions(context.Background(), &out, store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No saved sessions") {
		t.Fatalf("expected empty listing, got %q", out.String())
	}

	state := conversation.New(
		conversation.SystemMessage("persona"),
		conversation.UserMessage("hello"),
		conversation.AssistantMessage("hi"),
	)
	id := store.NewSessionID("work")
	if _, err := store.Save(context.Background(), id, "work", 2, state.Snapshot()); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	out.Reset()
	if err := printSessions(context.Background(), &out, store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "SESSION") {
		t.Fatalf("expected header and one session, got %q", out.String())
	}
	fields := strings.Fields(lines[1])
	if fields[0] != id || fields[3] != "3" || fields[4] != "work" || fields[5] != "2" {
		t.Fatalf("unexpected session line %q", lines[1])
	}
}

func TestToolRegistry(t *testing.T) {
	registry, err := newToolRegistry(nil)
	if err != nil || registry != nil {
		t.Fatalf("expected no registry without tool names, got %v, %v", registry, err)
	}

	registry, err = newToolRegistry([]string{"web_search"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	schemas := registry.Schemas()
	if len(schemas) != 1 || schemas[0].Function.Name != "web_search" {
		t.Fatalf("unexpected schemas %+v", schemas)
	}

	if _, err := newToolRegistry([]string{"calculator"}); !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestGeneratorNeedsAPIKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	if _, err := newGenerator("groq", "", ""); err == nil {
		t.Fatalf("expected missing api key to fail")
	}

	t.Setenv("OPENAI_API_KEY", "test")
	if _, err := newGenerator("OpenAI", "gpt-4.1", "http://localhost:1234/v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := newGenerator("anthropic", "", ""); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}
