package turns

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/notifier"
	"github.com/koscakluka/xperto/core/pipeline"
)

type countingNotifier struct {
	notified atomic.Int32
}

func (n *countingNotifier) Notify() { n.notified.Add(1) }

func (n *countingNotifier) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type collector struct {
	mu     sync.Mutex
	events []events.Event
	dirs   []events.Direction
}

func (c *collector) Push(_ context.Context, event events.Event, direction events.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.dirs = append(c.dirs, direction)
}

func (c *collector) snapshot() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

func (c *collector) texts() []string {
	var texts []string
	for _, event := range c.snapshot() {
		if text, ok := event.(events.GeneratedText); ok {
			texts = append(texts, text.Text)
		}
	}
	return texts
}

func (c *collector) count(kind events.Kind) int {
	n := 0
	for _, event := range c.snapshot() {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !condition() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for condition")
		case <-time.After(time.Millisecond):
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOutputGateFlushesBufferInOrderOnSignal(t *testing.T) {
	n := notifier.New()
	gate := NewOutputGate(n)
	out := &collector{}
	ctx := context.Background()

	gate.Process(ctx, events.NewStart(), events.Downstream, out)
	defer gate.Process(ctx, events.NewEnd(), events.Downstream, out)

	for _, text := range []string{"one", "two", "three"} {
		gate.Process(ctx, events.NewGeneratedText(text), events.Downstream, out)
	}
	if got := out.texts(); len(got) != 0 {
		t.Fatalf("expected closed gate to hold output, got %v", got)
	}
	if gate.Buffered() != 3 {
		t.Fatalf("expected 3 buffered events, got %d", gate.Buffered())
	}

	n.Notify()
	waitFor(t, func() bool { return len(out.texts()) == 3 })

	if got := out.texts(); !equalStrings(got, []string{"one", "two", "three"}) {
		t.Fatalf("expected buffered output in order, got %v", got)
	}
	if gate.Buffered() != 0 {
		t.Fatalf("expected empty buffer after release, got %d", gate.Buffered())
	}
	if !gate.Open() {
		t.Fatalf("expected gate to be open after release")
	}

	gate.Process(ctx, events.NewGeneratedText("four"), events.Downstream, out)
	if got := out.texts(); len(got) != 4 || got[3] != "four" {
		t.Fatalf("expected open gate to forward immediately, got %v", got)
	}
}

func TestOutputGateInterruptionDiscardsBufferedOutput(t *testing.T) {
	n := notifier.New()
	gate := NewOutputGate(n, StartOpen())
	out := &collector{}
	ctx := context.Background()

	gate.Process(ctx, events.NewStart(), events.Downstream, out)
	defer gate.Process(ctx, events.NewEnd(), events.Downstream, out)

	gate.Process(ctx, events.NewGeneratedText("greeting"), events.Downstream, out)
	gate.Process(ctx, events.NewInterruptionStarted(), events.Downstream, out)
	if gate.Open() {
		t.Fatalf("expected interruption to close the gate")
	}

	gate.Process(ctx, events.NewGeneratedText("stale"), events.Downstream, out)
	gate.Process(ctx, events.NewInterruptionStarted(), events.Downstream, out)
	if gate.Buffered() != 0 {
		t.Fatalf("expected interruption to clear the buffer, got %d", gate.Buffered())
	}

	gate.Process(ctx, events.NewGeneratedText("fresh"), events.Downstream, out)
	n.Notify()
	waitFor(t, func() bool { return len(out.texts()) == 2 })

	if got := out.texts(); !equalStrings(got, []string{"greeting", "fresh"}) {
		t.Fatalf("expected stale output to be dropped, got %v", got)
	}
	if out.count(events.KindInterruptionStarted) != 2 {
		t.Fatalf("expected interruptions to be forwarded")
	}
}

func TestOutputGateDoubleSignalDoesNotDuplicate(t *testing.T) {
	n := notifier.New()
	gate := NewOutputGate(n)
	out := &collector{}
	ctx := context.Background()

	gate.Process(ctx, events.NewStart(), events.Downstream, out)
	defer gate.Process(ctx, events.NewEnd(), events.Downstream, out)

	gate.Process(ctx, events.NewGeneratedText("a"), events.Downstream, out)
	gate.Process(ctx, events.NewGeneratedText("b"), events.Downstream, out)

	n.Notify()
	n.Notify()
	waitFor(t, func() bool { return len(out.texts()) == 2 })
	time.Sleep(20 * time.Millisecond)

	if got := out.texts(); !equalStrings(got, []string{"a", "b"}) {
		t.Fatalf("expected a single flush, got %v", got)
	}
}

func TestOutputGatePassesFunctionCallsAndUpstream(t *testing.T) {
	gate := NewOutputGate(notifier.New())
	out := &collector{}
	ctx := context.Background()

	gate.Process(ctx, events.NewFunctionCallStarted("1", "web_search", "{}"), events.Downstream, out)
	gate.Process(ctx, events.NewFunctionCallResult("1", "web_search", "ok", nil), events.Downstream, out)
	gate.Process(ctx, events.NewGeneratedText("up"), events.Upstream, out)
	gate.Process(ctx, events.NewGeneratedText("down"), events.Downstream, out)

	if got := len(out.snapshot()); got != 3 {
		t.Fatalf("expected 3 events to pass a closed gate, got %d", got)
	}
	if gate.Buffered() != 1 {
		t.Fatalf("expected downstream output to be buffered")
	}
}

func TestOutputGateStopsReleasingAfterEnd(t *testing.T) {
	n := notifier.New()
	gate := NewOutputGate(n)
	out := &collector{}
	ctx := context.Background()

	gate.Process(ctx, events.NewStart(), events.Downstream, out)
	gate.Process(ctx, events.NewStart(), events.Downstream, out)
	gate.Process(ctx, events.NewEnd(), events.Downstream, out)
	gate.Process(ctx, events.NewGeneratedText("late"), events.Downstream, out)

	n.Notify()
	time.Sleep(20 * time.Millisecond)

	if got := out.texts(); len(got) != 0 {
		t.Fatalf("expected no release after End, got %v", got)
	}
	if out.count(events.KindStart) != 2 || out.count(events.KindEnd) != 1 {
		t.Fatalf("expected lifecycle events to pass through")
	}
}

func runVerdict(t *testing.T, reply ...string) (*countingNotifier, *collector) {
	t.Helper()
	n := &countingNotifier{}
	check := NewCompletenessCheck(n)
	out := &collector{}
	ctx := context.Background()

	check.Process(ctx, events.NewResponseStarted(), events.Downstream, out)
	for _, chunk := range reply {
		check.Process(ctx, events.NewGeneratedText(chunk), events.Downstream, out)
	}
	check.Process(ctx, events.NewResponseEnded(), events.Downstream, out)
	return n, out
}

func TestCompletenessCheckYesSignalsOnce(t *testing.T) {
	n, out := runVerdict(t, "Y", "ES\n")

	if got := n.notified.Load(); got != 1 {
		t.Fatalf("expected exactly one signal, got %d", got)
	}
	if out.count(events.KindUserStoppedSpeaking) != 1 {
		t.Fatalf("expected a user stopped speaking event")
	}
	if len(out.texts()) != 0 || out.count(events.KindResponseStarted) != 0 {
		t.Fatalf("expected classifier reply to be consumed")
	}
}

func TestCompletenessCheckNoDoesNothing(t *testing.T) {
	n, out := runVerdict(t, "NO")

	if got := n.notified.Load(); got != 0 {
		t.Fatalf("expected no signal, got %d", got)
	}
	if len(out.snapshot()) != 0 {
		t.Fatalf("expected nothing to be emitted, got %d events", len(out.snapshot()))
	}
}

func TestCompletenessCheckUnexpectedReplyIsDropped(t *testing.T) {
	n, out := runVerdict(t, "maybe")

	if got := n.notified.Load(); got != 0 {
		t.Fatalf("expected no signal, got %d", got)
	}
	if len(out.snapshot()) != 0 {
		t.Fatalf("expected nothing to be emitted")
	}
}

func TestCompletenessCheckForwardsOtherEvents(t *testing.T) {
	check := NewCompletenessCheck(&countingNotifier{})
	out := &collector{}

	check.Process(context.Background(), events.NewStart(), events.Downstream, out)
	check.Process(context.Background(), events.NewInterruptionStarted(), events.Downstream, out)

	if len(out.snapshot()) != 2 {
		t.Fatalf("expected control events to pass")
	}
}

func TestJudgeBuildsRequestFromTrailingUserText(t *testing.T) {
	n := &countingNotifier{}
	judge := NewJudgeContextFilter(n, WithClassifierPrompt("classify"))
	out := &collector{}

	state := conversation.New(
		conversation.SystemMessage("persona"),
		conversation.UserMessage("earlier question"),
		conversation.AssistantMessage("What's your address?"),
		conversation.UserMessage("1234 Main Street"),
		conversation.Message{Role: conversation.RoleUser, Parts: []conversation.ContentPart{
			{Type: conversation.ContentPartText, Text: "Irving"},
			{Type: conversation.ContentPartText, Text: "Texas"},
		}},
	)
	judge.Process(context.Background(), events.NewContextUpdate(state), events.Downstream, out)

	got := out.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one request, got %d events", len(got))
	}
	request, ok := got[0].(events.MessagesRequest)
	if !ok {
		t.Fatalf("expected messages request, got %s", got[0].Kind())
	}
	if len(request.Messages) != 3 {
		t.Fatalf("expected prompt, assistant and user messages, got %d", len(request.Messages))
	}
	if request.Messages[0].Role != conversation.RoleSystem || request.Messages[0].Content != "classify" {
		t.Fatalf("unexpected prompt message: %+v", request.Messages[0])
	}
	if request.Messages[1].Content != "What's your address?" {
		t.Fatalf("unexpected assistant message: %+v", request.Messages[1])
	}
	if request.Messages[2].Content != "1234 Main Street Irving Texas" {
		t.Fatalf("unexpected user text: %q", request.Messages[2].Content)
	}
	if n.notified.Load() != 0 {
		t.Fatalf("expected classification, not a direct signal")
	}
}

func TestJudgeIgnoresConversationWithoutTrailingUserText(t *testing.T) {
	judge := NewJudgeContextFilter(&countingNotifier{})
	out := &collector{}

	state := conversation.New(
		conversation.SystemMessage("persona"),
		conversation.UserMessage("hi"),
		conversation.AssistantMessage("hello"),
	)
	judge.Process(context.Background(), events.NewContextUpdate(state), events.Downstream, out)
	judge.Process(context.Background(), events.NewGeneratedText("noise"), events.Downstream, out)

	if len(out.snapshot()) != 0 {
		t.Fatalf("expected no classification request")
	}
}

func TestJudgeOmitsAssistantWhenNotDirectlyPreceding(t *testing.T) {
	judge := NewJudgeContextFilter(&countingNotifier{})
	out := &collector{}

	state := conversation.New(
		conversation.AssistantMessage("earlier"),
		conversation.SystemMessage("note"),
		conversation.UserMessage("tell me about black holes"),
	)
	judge.Process(context.Background(), events.NewContextUpdate(state), events.Downstream, out)

	request := out.snapshot()[0].(events.MessagesRequest)
	if len(request.Messages) != 2 {
		t.Fatalf("expected prompt and user messages only, got %d", len(request.Messages))
	}
	if request.Messages[0].Content == "" {
		t.Fatalf("expected the built-in prompt to be used")
	}
}

func TestJudgeSignalsDirectlyOnExplicitRequest(t *testing.T) {
	n := &countingNotifier{}
	judge := NewJudgeContextFilter(n)
	out := &collector{}

	judge.Process(context.Background(), events.NewStart(), events.Downstream, out)
	judge.Process(context.Background(), events.NewMessagesRequest([]conversation.Message{conversation.UserMessage("hi")}), events.Downstream, out)

	if n.notified.Load() != 1 {
		t.Fatalf("expected explicit request to signal completeness")
	}
	if got := out.snapshot(); len(got) != 1 || got[0].Kind() != events.KindStart {
		t.Fatalf("expected only the start event to pass")
	}
}

func TestIdleWatchdogSignalsAfterTimeout(t *testing.T) {
	n := &countingNotifier{}
	watchdog := NewIdleWatchdog(n, WithTimeout(10*time.Millisecond))
	out := &collector{}

	watchdog.Process(context.Background(), events.NewTranscription("so um", ""), events.Downstream, out)
	if !watchdog.Armed() {
		t.Fatalf("expected final transcription to arm the watchdog")
	}
	waitFor(t, func() bool { return n.notified.Load() == 1 })

	if watchdog.Armed() {
		t.Fatalf("expected watchdog to disarm after firing")
	}
	if len(out.snapshot()) != 1 {
		t.Fatalf("expected event to pass through")
	}
}

func TestIdleWatchdogDisarmedByResponse(t *testing.T) {
	n := &countingNotifier{}
	watchdog := NewIdleWatchdog(n, WithTimeout(20*time.Millisecond))
	out := &collector{}
	ctx := context.Background()

	watchdog.Process(ctx, events.NewInterimTranscription("so", ""), events.Downstream, out)
	if watchdog.Armed() {
		t.Fatalf("expected interim transcription not to arm the watchdog")
	}

	watchdog.Process(ctx, events.NewTranscription("so what", ""), events.Downstream, out)
	watchdog.Process(ctx, events.NewResponseStarted(), events.Downstream, out)
	time.Sleep(50 * time.Millisecond)

	if n.notified.Load() != 0 {
		t.Fatalf("expected no signal once the response started")
	}
}

func TestIdleWatchdogArming(t *testing.T) {
	tests := []struct {
		name       string
		events     []events.Event
		wantArmed  bool
		wantNotify int32
	}{
		{
			name:   "interruption started disarms",
			events: []events.Event{events.NewTranscription("so", ""), events.NewInterruptionStarted()},
		},
		{
			name:   "user stopped speaking disarms",
			events: []events.Event{events.NewTranscription("so", ""), events.NewUserStoppedSpeaking()},
		},
		{
			name:   "end stops the countdown",
			events: []events.Event{events.NewTranscription("so", ""), events.NewEnd()},
		},
		{
			name:   "cancel stops the countdown",
			events: []events.Event{events.NewTranscription("so", ""), events.NewCancel()},
		},
		{
			name:       "interruption ended re-arms",
			events:     []events.Event{events.NewInterruptionStarted(), events.NewInterruptionEnded()},
			wantArmed:  true,
			wantNotify: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &countingNotifier{}
			watchdog := NewIdleWatchdog(n, WithTimeout(20*time.Millisecond))
			out := &collector{}

			for _, event := range tt.events {
				watchdog.Process(context.Background(), event, events.Downstream, out)
			}
			if got := watchdog.Armed(); got != tt.wantArmed {
				t.Fatalf("expected armed=%v, got %v", tt.wantArmed, got)
			}
			if got := len(out.snapshot()); got != len(tt.events) {
				t.Fatalf("expected every event to pass through, got %d", got)
			}

			if tt.wantNotify > 0 {
				waitFor(t, func() bool { return n.notified.Load() == tt.wantNotify })
				return
			}
			time.Sleep(50 * time.Millisecond)
			if got := n.notified.Load(); got != 0 {
				t.Fatalf("expected no signal, got %d", got)
			}
		})
	}
}

var _ pipeline.Output = (*collector)(nil)
