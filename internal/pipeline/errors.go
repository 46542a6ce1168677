package pipeline

import "errors"

// ErrInvalidInput marks caller-input problems (nothing to analyze). These are
// the only errors that are the caller's fault; everything else the pipeline
// returns is an upstream or operational failure.
var ErrInvalidInput = errors.New("invalid input")
