package navgraph

import (
	"errors"
	"fmt"
)

// ErrGraphLoad matches every *LoadError via errors.Is.
var ErrGraphLoad = errors.New("graph load error")

// LoadError reports malformed or missing graph source data.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("navgraph: load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrGraphLoad, e.Err} }
