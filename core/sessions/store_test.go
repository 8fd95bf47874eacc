package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koscakluka/xperto/core/conversation"
)

func newTestStore(t *testing.T, now *time.Time) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func encodeJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	return string(b)
}

func sampleSnapshot() conversation.Snapshot {
	state := conversation.New(
		conversation.SystemMessage("persona"),
		conversation.SystemMessage("intro"),
		conversation.Message{Role: conversation.RoleUser, Parts: []conversation.ContentPart{
			{Type: conversation.ContentPartText, Text: "<speaker_0>hello</speaker_0>"},
		}},
		conversation.Message{Role: conversation.RoleAssistant, ToolCalls: []conversation.ToolCall{
			{ID: "call_1", Name: "web_search", Arguments: `{"query":"go"}`},
		}},
		conversation.ToolResultMessage("call_1", "web_search", "results"),
		conversation.AssistantMessage("Hi there."),
	)
	state.SetTools([]conversation.ToolSchema{{
		Type: "function",
		Function: conversation.FunctionSchema{
			Name:        "web_search",
			Description: "Search the web",
			Parameters: map[string]any{
				"type":     "object",
				"required": []any{"query"},
			},
		},
	}})
	return state.Snapshot()
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	store := newTestStore(t, &now)
	snapshot := sampleSnapshot()

	id := store.NewSessionID("meeting")
	if id != "20250314_092653_meeting" {
		t.Fatalf("unexpected session id %q", id)
	}

	path, err := store.Save(context.Background(), id, "meeting", 3, snapshot)
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if filepath.Base(path) != id+".json" {
		t.Fatalf("unexpected path %s", path)
	}

	record, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if got, want := encodeJSON(t, record.Messages), encodeJSON(t, snapshot.Messages); got != want {
		t.Fatalf("messages differ after round trip:\n%s\n%s", got, want)
	}
	if got, want := encodeJSON(t, record.Tools), encodeJSON(t, snapshot.Tools); got != want {
		t.Fatalf("tools differ after round trip:\n%s\n%s", got, want)
	}
	if record.Messages[3].ToolCalls[0].Arguments != `{"query":"go"}` {
		t.Fatalf("unexpected tool call %+v", record.Messages[3])
	}
	if record.ConfigUsed != "meeting" || record.ParticipantCount != 3 || record.MessageCount != 6 {
		t.Fatalf("unexpected record header %+v", record)
	}
	if record.Metadata.Version != FormatVersion || !record.Timestamp.Equal(now) {
		t.Fatalf("unexpected metadata %+v", record.Metadata)
	}
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)

	for range 2 {
		if _, err := store.Save(context.Background(), "session", "default", 1, sampleSnapshot()); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "session.json" {
		t.Fatalf("expected a single session file, got %v", entries)
	}
}

func TestLoadResolvesPartialIDs(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	for _, id := range []string{"20250101_100000_default", "20250101_110000_default", "20250102_090000_meeting"} {
		if _, err := store.Save(context.Background(), id, "default", 1, sampleSnapshot()); err != nil {
			t.Fatalf("failed to save %s: %v", id, err)
		}
	}

	record, err := store.Load(context.Background(), "meeting")
	if err != nil {
		t.Fatalf("expected unique partial match to load: %v", err)
	}
	if record.SessionID != "20250102_090000_meeting" {
		t.Fatalf("loaded wrong session %s", record.SessionID)
	}

	_, err = store.Load(context.Background(), "20250101")
	if !errors.Is(err, ErrAmbiguousSession) {
		t.Fatalf("expected ambiguous match error, got %v", err)
	}
	var ambiguous *AmbiguousMatchError
	if !errors.As(err, &ambiguous) || len(ambiguous.Matches) != 2 {
		t.Fatalf("expected both matches to be listed, got %v", err)
	}

	if _, err := store.Load(context.Background(), "nothing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListSortsNewestFirstAndSkipsCorruptFiles(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, &now)

	for _, id := range []string{"older", "newer"} {
		if _, err := store.Save(context.Background(), id, "default", 2, sampleSnapshot()); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		now = now.Add(time.Hour)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	infos, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(infos) != 2 || infos[0].SessionID != "newer" || infos[1].SessionID != "older" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	if infos[0].MessageCount != 6 || infos[0].ParticipantCount != 2 {
		t.Fatalf("unexpected info %+v", infos[0])
	}
}

func TestLoadRejectsMalformedRecord(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	if err := os.WriteFile(filepath.Join(store.Dir(), "bad.json"), []byte(`{"messages":[]}`), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := store.Load(context.Background(), "bad"); err == nil {
		t.Fatalf("expected malformed record to fail")
	}
}

func TestLoadRejectsPathLikeQueries(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "contexts"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	elsewhere, err := NewStore(filepath.Join(root, "elsewhere"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if _, err := elsewhere.Save(context.Background(), "20250101_100000_default", "default", 1, sampleSnapshot()); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	for _, query := range []string{
		"../elsewhere/20250101_100000_default",
		filepath.Join("..", "elsewhere", "20250101_100000_default"),
		"..",
		`..\elsewhere\20250101_100000_default`,
	} {
		if _, err := store.Load(context.Background(), query); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected %q to be rejected, got %v", query, err)
		}
	}
}
