package repository

import "errors"

var (
	ErrFetchTimeout   = errors.New("fetch timed out")
	ErrFetchTransport = errors.New("fetch transport failure")
	ErrFetchRejected  = errors.New("fetch rejected by backend")
	ErrEmptyContent   = errors.New("fetch returned no content")
	ErrQueueEmpty     = errors.New("queue is empty")
)
