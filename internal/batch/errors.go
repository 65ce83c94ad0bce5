package batch

import "fmt"

// PipelineError aborts a whole batch before any row is attempted: the file
// could not be read or parsed, or the sender could not be resolved.
type PipelineError struct {
	Op  string
	Err error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
