package qec

import "fmt"

// Target is either a qubit index or a lookback into the measurement record.
type Target struct {
	Value int
	Rec   bool
}

// Qubit targets a single qubit.
func Qubit(q int) Target {
	return Target{Value: q}
}

// TargetRec targets the measurement taken lookback measurements ago, so -1
// is the most recent one.
func TargetRec(lookback int) Target {
	return Target{Value: lookback, Rec: true}
}

// Qubits turns qubit indices into targets.
func Qubits(qs ...int) []Target {
	targets := make([]Target, len(qs))
	for i, q := range qs {
		targets[i] = Qubit(q)
	}
	return targets
}

// QubitRange targets the qubits in [start, end).
func QubitRange(start, end int) []Target {
	targets := make([]Target, 0, max(end-start, 0))
	for q := start; q < end; q++ {
		targets = append(targets, Qubit(q))
	}
	return targets
}

// Recs turns lookbacks into record targets.
func Recs(lookbacks ...int) []Target {
	targets := make([]Target, len(lookbacks))
	for i, k := range lookbacks {
		targets[i] = TargetRec(k)
	}
	return targets
}

func (t Target) String() string {
	if t.Rec {
		return fmt.Sprintf("rec[%d]", t.Value)
	}
	return fmt.Sprintf("%d", t.Value)
}
