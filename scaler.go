package qec

import "time"

/*
BatchScaler sizes Monte-Carlo batches so each one takes roughly Target.

A batch that finished in under half the target doubles the next one, and a
batch that took over twice the target is cut in proportion to the overrun, so
one slow batch is enough to bring the size near the target. The size always stays within
[Min, Max]. Cheap circuits quickly reach large batches while expensive ones
keep the pool responsive to cancellation and budgets.
*/
type BatchScaler struct {
	Min    int
	Max    int
	Target time.Duration
}

// Next returns the size of the batch that follows one of size current that took took.
func (s BatchScaler) Next(current int, took time.Duration) int {
	next := current
	switch {
	case s.Target <= 0:
	case took < s.Target/2:
		next = current * 2
	case took > s.Target*2:
		next = int(int64(current) * int64(s.Target) / int64(took))
	}

	if s.Max > 0 {
		next = min(next, s.Max)
	}
	return max(next, s.Min, 1)
}
