package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrUpstreamTransient = errors.New("upstream transient failure")
	ErrUpstreamFatal     = errors.New("upstream fatal failure")
	ErrAllChunksFailed   = errors.New("all chunks failed")
	ErrSinkError         = errors.New("audio sink error")
)
