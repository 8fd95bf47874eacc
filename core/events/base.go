package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

type Event interface {
	Kind() Kind
	ID() string
	Timestamp() time.Time

	isEvent()
}

type base struct {
	id        string
	timestamp time.Time
}

func newBase() base {
	return base{id: uuid.NewString(), timestamp: time.Now()}
}

func (b base) ID() string {
	return b.id
}

func (b base) Timestamp() time.Time {
	return b.timestamp
}

func (base) isEvent() {}

// Direction is the way an event travels through the pipeline. Downstream
// flows from the input transport toward the speaker, upstream flows back
// toward the input.
type Direction int

const (
	Downstream Direction = iota
	Upstream
)

func (d Direction) String() string {
	switch d {
	case Downstream:
		return "downstream"
	case Upstream:
		return "upstream"
	}
	return "unknown"
}
