package enrich

import (
	"errors"
	"fmt"
)

// ErrNoMatch reports that a source answered successfully but holds no record
// for the query. It is cached as a negative result and is not an error to the
// caller of the pipeline.
var ErrNoMatch = errors.New("no match at source")

// SourceError wraps a failure to consult a source. Transient failures were
// retried up to the configured ceiling before being surfaced; the pipeline
// continues with whatever other source succeeded.
type SourceError struct {
	Source    Source
	Transient bool
	Err       error
}

func (e *SourceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("source %s unavailable (%s): %v", e.Source, kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// AsSourceError extracts a *SourceError from an error chain.
func AsSourceError(err error) (*SourceError, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
