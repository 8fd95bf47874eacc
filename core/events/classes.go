package events

// IsSystem reports whether e is a lifecycle or control signal. Filtering and
// gating stages must never hold these back.
func IsSystem(e Event) bool {
	switch e.(type) {
	case Start, End, Cancel, Error,
		InterruptionStarted, InterruptionEnded, UserStoppedSpeaking:
		return true
	default:
		return false
	}
}

// IsLifecycle reports whether e starts, stops or reports the failure of the
// pipeline. No stage may drop these.
func IsLifecycle(e Event) bool {
	switch e.(type) {
	case Start, End, Cancel, Error:
		return true
	default:
		return false
	}
}

// IsFunctionCall reports whether e belongs to a tool execution lifecycle.
func IsFunctionCall(e Event) bool {
	switch e.(type) {
	case FunctionCallStarted, FunctionCallResult:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether e stops the pipeline.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case End, Cancel:
		return true
	default:
		return false
	}
}
