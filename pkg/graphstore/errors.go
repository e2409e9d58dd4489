package graphstore

import "errors"

var (
	// ErrNotFound is returned when an operation references an id that does
	// not exist in the graph.
	ErrNotFound = errors.New("graphstore: not found")

	// ErrSelfLoop is returned when a news relation would connect a news
	// item to itself.
	ErrSelfLoop = errors.New("graphstore: self-loop rejected")

	// ErrMissingEndpoint is returned when an actor relation references an
	// actor that is not in the graph.
	ErrMissingEndpoint = errors.New("graphstore: relation endpoint missing")
)
