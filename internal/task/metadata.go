package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// now is the clock used for lifecycle timestamps. Timestamps are always UTC
// and carry no monotonic reading, so they survive a wire round trip intact.
var now = func() time.Time {
	return time.Now().UTC()
}

// ExecutionContext holds the arguments a task is executed with. Arguments
// are kept JSON-encoded so they cross the connector without losing type
// fidelity; callables decode them with Arg and Kwarg.
type ExecutionContext struct {
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs"`
}

// NewExecutionContext encodes positional and keyword arguments.
func NewExecutionContext(args []any, kwargs map[string]any) (ExecutionContext, error) {
	var ec ExecutionContext
	if len(args) > 0 {
		ec.Args = make([]json.RawMessage, 0, len(args))
		for i, arg := range args {
			raw, err := json.Marshal(arg)
			if err != nil {
				return ExecutionContext{}, fmt.Errorf("failed to encode argument %d: %w", i, err)
			}
			ec.Args = append(ec.Args, raw)
		}
	}
	if len(kwargs) > 0 {
		ec.Kwargs = make(map[string]json.RawMessage, len(kwargs))
		for name, arg := range kwargs {
			raw, err := json.Marshal(arg)
			if err != nil {
				return ExecutionContext{}, fmt.Errorf("failed to encode keyword argument %q: %w", name, err)
			}
			ec.Kwargs[name] = raw
		}
	}
	return ec, nil
}

// NumArgs returns the number of positional arguments.
func (ec ExecutionContext) NumArgs() int {
	return len(ec.Args)
}

// Arg decodes the i-th positional argument into dst.
func (ec ExecutionContext) Arg(i int, dst any) error {
	if i < 0 || i >= len(ec.Args) {
		return fmt.Errorf("argument %d out of range (%d arguments)", i, len(ec.Args))
	}
	if err := json.Unmarshal(ec.Args[i], dst); err != nil {
		return fmt.Errorf("failed to decode argument %d: %w", i, err)
	}
	return nil
}

// Kwarg decodes the keyword argument name into dst.
func (ec ExecutionContext) Kwarg(name string, dst any) error {
	raw, ok := ec.Kwargs[name]
	if !ok {
		return fmt.Errorf("missing keyword argument %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode keyword argument %q: %w", name, err)
	}
	return nil
}

type executionContextJSON struct {
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs"`
}

// MarshalJSON encodes missing arguments as [] and {} rather than null.
func (ec ExecutionContext) MarshalJSON() ([]byte, error) {
	w := executionContextJSON{Args: ec.Args, Kwargs: ec.Kwargs}
	if w.Args == nil {
		w.Args = []json.RawMessage{}
	}
	if w.Kwargs == nil {
		w.Kwargs = map[string]json.RawMessage{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a context produced by MarshalJSON. Empty and null
// argument lists both come back nil, matching NewExecutionContext.
func (ec *ExecutionContext) UnmarshalJSON(data []byte) error {
	var w executionContextJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*ec = ExecutionContext{}
	if len(w.Args) > 0 {
		ec.Args = w.Args
	}
	if len(w.Kwargs) > 0 {
		ec.Kwargs = w.Kwargs
	}
	return nil
}

// ExecutionResult is the outcome of running a task's callable. A success
// has a non-nil Value (a nil return value is encoded as JSON null); a
// failure has a nil Value and a non-nil Err.
type ExecutionResult struct {
	Value json.RawMessage
	Err   error
}

// Succeeded returns the result of a callable that returned value.
func Succeeded(value any) ExecutionResult {
	raw, err := json.Marshal(value)
	if err != nil {
		return Failed(fmt.Errorf("failed to encode task result: %w", err))
	}
	return ExecutionResult{Value: raw}
}

// Failed returns the result of a callable that failed with err.
func Failed(err error) ExecutionResult {
	return ExecutionResult{Err: err}
}

type executionResultJSON struct {
	Value json.RawMessage `json:"value"`
	Exc   *CapturedError  `json:"exc"`
}

// MarshalJSON encodes the result as {"value": ..., "exc": ...}.
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	w := executionResultJSON{Value: r.Value}
	if r.Err != nil {
		w.Value = nil
		w.Exc = captureError(r.Err)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a result produced by MarshalJSON. Errors come back
// as *CapturedError.
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	var w executionResultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Exc != nil {
		*r = ExecutionResult{Err: w.Exc}
		return nil
	}
	*r = ExecutionResult{Value: w.Value}
	return nil
}

// Metadata is the state every task carries regardless of where it is bound.
type Metadata struct {
	ID               ulid.ULID
	ExecutionContext ExecutionContext
	ExecutionResult  *ExecutionResult
	QueuedAt         time.Time
	StartedAt        *time.Time
	FinalizedAt      *time.Time
}

func timePtr(t time.Time) *time.Time {
	return &t
}
