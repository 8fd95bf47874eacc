package events

const (
	// KindStart identifies pipeline start.
	KindStart Kind = "system.start"
	// KindEnd identifies graceful pipeline shutdown.
	KindEnd Kind = "system.end"
	// KindCancel identifies terminal pipeline cancellation.
	KindCancel Kind = "system.cancel"
	// KindError identifies a stage failure.
	KindError Kind = "system.error"
)

// Start is the first event pushed through a pipeline.
type Start struct{ base }

// NewStart creates a start event.
func NewStart() Start { return Start{base: newBase()} }

func (Start) Kind() Kind { return KindStart }

// End asks every stage to finish its work and stop.
type End struct{ base }

// NewEnd creates an end event.
func NewEnd() End { return End{base: newBase()} }

func (End) Kind() Kind { return KindEnd }

// Cancel asks every stage to stop immediately. The process may exit right
// after a cancel reaches the end of the pipeline.
type Cancel struct{ base }

// NewCancel creates a cancel event.
func NewCancel() Cancel { return Cancel{base: newBase()} }

func (Cancel) Kind() Kind { return KindCancel }

// Error reports a stage failure. Non-fatal errors are informational, the
// pipeline keeps running.
type Error struct {
	base
	Err   error
	Fatal bool
}

// NewError creates a non-fatal error event.
func NewError(err error) Error { return Error{base: newBase(), Err: err} }

// NewFatalError creates an error event that should stop the pipeline.
func NewFatalError(err error) Error { return Error{base: newBase(), Err: err, Fatal: true} }

func (Error) Kind() Kind { return KindError }
