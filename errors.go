package qec

import "errors"

var (
	ErrUnknownGate      = errors.New("unknown gate")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrProbability      = errors.New("probability out of range")
	ErrRecordOutOfRange = errors.New("measurement record out of range")
	ErrArguments        = errors.New("invalid gate arguments")
	ErrNoWorkers        = errors.New("no available workers")
	ErrBreakerOpen      = errors.New("breaker open")
	ErrUnknownDecoder   = errors.New("unknown decoder")
)
