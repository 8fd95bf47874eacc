package checkpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultInterval = time.Minute

	// Conversations holding only the persona and intro are not worth a record.
	minMessagesToSave = 3
)

// Store persists conversation snapshots.
type Store interface {
	Save(ctx context.Context, id, configName string, participants int, snapshot conversation.Snapshot) (string, error)
}

type Options struct {
	Interval     time.Duration
	Now          func() time.Time
	Participants int
}

type Option func(*Options)

func WithInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.Interval = interval
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

func WithParticipants(n int) Option {
	return func(o *Options) {
		o.Participants = n
	}
}

// Saver passes every event through and saves the conversation in the
// background once the save interval has passed. Cancel and End are held
// until a final save completed, since the process may exit right after.
type Saver struct {
	state      *conversation.State
	store      Store
	sessionID  string
	configName string
	interval   time.Duration
	now        func() time.Time

	participants atomic.Int64

	mu       sync.Mutex
	lastSave time.Time
	inFlight bool
	saves    sync.WaitGroup
}

func New(state *conversation.State, store Store, sessionID, configName string, opts ...Option) *Saver {
	options := Options{Interval: DefaultInterval, Now: time.Now, Participants: 1}
	for _, opt := range opts {
		opt(&options)
	}
	s := &Saver{
		state:      state,
		store:      store,
		sessionID:  sessionID,
		configName: configName,
		interval:   options.Interval,
		now:        options.Now,
		lastSave:   options.Now(),
	}
	s.participants.Store(int64(options.Participants))
	return s
}

func (s *Saver) Name() string { return "checkpoint" }

func (s *Saver) SetParticipants(n int) {
	s.participants.Store(int64(n))
}

func (s *Saver) LastSave() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

func (s *Saver) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	switch event.(type) {
	case events.Cancel, events.End:
		logger.Info("session ending, saving conversation", "event", event.Kind())
		if err := s.Flush(ctx); err != nil {
			logger.Error("failed to save conversation before shutdown", "error", err)
		}
		out.Push(ctx, event, direction)
		return
	}

	s.mu.Lock()
	due := s.now().Sub(s.lastSave) >= s.interval && !s.inFlight
	if due {
		s.inFlight = true
		s.saves.Add(1)
	}
	s.mu.Unlock()

	if due {
		go func() {
			defer s.saves.Done()
			s.save(context.WithoutCancel(ctx), true)
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		}()
	}

	out.Push(ctx, event, direction)
}

// Flush waits for a background save and then saves synchronously.
func (s *Saver) Flush(ctx context.Context) error {
	s.saves.Wait()
	return s.save(ctx, false)
}

func (s *Saver) save(ctx context.Context, periodic bool) error {
	ctx, span := tracer.Start(ctx, "checkpoint conversation")
	defer span.End()
	span.SetAttributes(attribute.Bool("checkpoint.periodic", periodic))

	snapshot := s.state.Snapshot()
	if len(snapshot.Messages) < minMessagesToSave {
		logger.Debug("no conversation to save yet", "messages", len(snapshot.Messages))
		span.AddEvent("skipped")
		s.markSaved()
		checkpointsSkipped.Add(ctx, 1)
		return nil
	}

	path, err := s.store.Save(ctx, s.sessionID, s.configName, int(s.participants.Load()), snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to save conversation", "session_id", s.sessionID, "error", err)
		checkpointFailures.Add(ctx, 1)
		return err
	}

	s.markSaved()
	checkpoints.Add(ctx, 1, metric.WithAttributes(attribute.Bool("checkpoint.periodic", periodic)))
	logger.Debug("conversation saved", "path", path, "messages", len(snapshot.Messages))
	return nil
}

func (s *Saver) markSaved() {
	s.mu.Lock()
	s.lastSave = s.now()
	s.mu.Unlock()
}
