package bot

import (
	"context"
	"sync"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
)

type participantLog interface {
	ParticipantJoined(id string)
	ParticipantLeft(id string)
}

type participantCounter interface {
	SetParticipants(n int)
}

// participantTracker treats every diarized speaker id as a participant.
// It logs who joined, leaves them all at the end of the session and keeps
// the checkpoint's participant count up to date.
type participantTracker struct {
	log     participantLog
	counter participantCounter
	minimum int

	mu       sync.Mutex
	speakers []string
}

func newParticipantTracker(log participantLog, counter participantCounter, minimum int) *participantTracker {
	return &participantTracker{log: log, counter: counter, minimum: minimum}
}

func (p *participantTracker) Name() string { return "participant tracker" }

func (p *participantTracker) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	switch e := event.(type) {
	case events.TranscriptionUpdate:
		if e.Final && e.SpeakerID != "" {
			p.join(ctx, e.SpeakerID)
		}
	case events.End, events.Cancel:
		p.leaveAll()
	}
	out.Push(ctx, event, direction)
}

func (p *participantTracker) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return max(len(p.speakers), p.minimum)
}

func (p *participantTracker) join(ctx context.Context, speakerID string) {
	p.mu.Lock()
	for _, known := range p.speakers {
		if known == speakerID {
			p.mu.Unlock()
			return
		}
	}
	p.speakers = append(p.speakers, speakerID)
	count := max(len(p.speakers), p.minimum)
	p.mu.Unlock()

	participantsJoined.Add(ctx, 1)
	logger.Info("participant joined", "speaker", speakerID, "participants", count)
	p.log.ParticipantJoined(speakerLabel(speakerID))
	p.counter.SetParticipants(count)
}

func (p *participantTracker) leaveAll() {
	p.mu.Lock()
	speakers := p.speakers
	p.speakers = nil
	p.mu.Unlock()

	for _, speakerID := range speakers {
		p.log.ParticipantLeft(speakerLabel(speakerID))
	}
}

func speakerLabel(speakerID string) string {
	return "speaker_" + speakerID
}
