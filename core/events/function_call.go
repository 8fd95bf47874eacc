package events

const (
	// KindFunctionCallStarted identifies tool execution start.
	KindFunctionCallStarted Kind = "function_call.started"
	// KindFunctionCallResult identifies tool execution completion.
	KindFunctionCallResult Kind = "function_call.result"
)

// FunctionCallStarted marks start of tool execution.
type FunctionCallStarted struct {
	base
	CallID    string
	Name      string
	Arguments string
}

// NewFunctionCallStarted creates a function call started event.
func NewFunctionCallStarted(callID, name, arguments string) FunctionCallStarted {
	return FunctionCallStarted{base: newBase(), CallID: callID, Name: name, Arguments: arguments}
}

func (FunctionCallStarted) Kind() Kind { return KindFunctionCallStarted }

// FunctionCallResult marks the end of tool execution. Err is set when the
// tool failed, Result then holds the message reported back to the model.
type FunctionCallResult struct {
	base
	CallID string
	Name   string
	Result string
	Err    error
}

// NewFunctionCallResult creates a function call result event.
func NewFunctionCallResult(callID, name, result string, err error) FunctionCallResult {
	return FunctionCallResult{base: newBase(), CallID: callID, Name: name, Result: result, Err: err}
}

func (FunctionCallResult) Kind() Kind { return KindFunctionCallResult }
