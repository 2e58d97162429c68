package qec

import (
	"fmt"
	"sort"
	"strings"
)

/*
DecodeRepetition turns one shot of a repetition code into a logical bit.

The stabilizer bits are folded left to right into a running parity, so
correction[i+1] is s[0] ^ ... ^ s[i] and correction[0] is 0. That pattern is
the error on every data qubit relative to qubit 0; its complement is the only
other pattern consistent with the syndrome, and the lighter of the two is
applied. The corrected data bits are then majority voted. Ties, which only
happen for even n, decode to 0.

Complementing the data bits alone complements the result for odd n.
Complementing the stabilizer bits as well changes the syndrome, so the result
follows the new syndrome instead: 000/00 decodes to 0 and 111/11 to 1.

Missing stabilizer bits count as 0; extra ones are ignored.
*/
func DecodeRepetition(data, stabs []bool) bool {
	n := len(data)
	if n == 0 {
		return false
	}

	correction := make([]bool, n)
	weight := 0
	curr := false
	for i := 1; i < n; i++ {
		if i-1 < len(stabs) {
			curr = curr != stabs[i-1]
		}
		correction[i] = curr
		if curr {
			weight++
		}
	}
	flip := 2*weight > n

	ones := 0
	for i, d := range data {
		if d != (correction[i] != flip) {
			ones++
		}
	}
	return 2*ones > n
}

// ParseBits reads a string of '0' and '1' characters.
func ParseBits(s string) ([]bool, error) {
	out := make([]bool, len(s))
	for i, ch := range s {
		switch ch {
		case '0':
		case '1':
			out[i] = true
		default:
			return nil, fmt.Errorf("%w: %q is not a bit string", ErrArguments, s)
		}
	}
	return out, nil
}

// FormatBits is the inverse of ParseBits.
func FormatBits(bits []bool) string {
	var b strings.Builder
	for _, v := range bits {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

/*
RepetitionCodeCircuit prepares logical 0 in an n-qubit repetition code,
flips each data qubit with probability p, measures every neighbouring parity
once through an ancilla and then measures the data.

Qubit 2i is data and 2i+1 the ancilla between data 2i and 2i+2. The record
holds the n-1 stabilizer results first, then the n data results.
*/
func RepetitionCodeCircuit(n int, p float64) (*Circuit, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n=%d", ErrArguments, n)
	}

	data := make([]int, n)
	for i := range data {
		data[i] = 2 * i
	}

	c := NewCircuit()
	if err := c.Append("R", QubitRange(0, 2*n-1)); err != nil {
		return nil, err
	}
	if err := c.AppendQubits("X_ERROR", data, p); err != nil {
		return nil, err
	}
	for i := 0; i < n-1; i++ {
		steps := []func() error{
			func() error { return c.AppendQubits("CX", []int{2 * i, 2*i + 1}) },
			func() error { return c.AppendQubits("CX", []int{2*i + 2, 2*i + 1}) },
			func() error { return c.AppendQubits("M", []int{2*i + 1}) },
		}
		if err := run(steps); err != nil {
			return nil, err
		}
	}
	if err := c.AppendQubits("M", data); err != nil {
		return nil, err
	}
	return c, nil
}

// Outcome is one observed (data, stabilizers) pair of bit strings.
type Outcome struct {
	Data  string
	Stabs string
}

// Tally counts how often each outcome was seen.
type Tally map[Outcome]int

// Shots is the total count.
func (t Tally) Shots() int {
	total := 0
	for _, count := range t {
		total += count
	}
	return total
}

// Outcomes returns the keys ordered by descending count, then lexically.
func (t Tally) Outcomes() []Outcome {
	keys := make([]Outcome, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if t[keys[i]] != t[keys[j]] {
			return t[keys[i]] > t[keys[j]]
		}
		if keys[i].Data != keys[j].Data {
			return keys[i].Data < keys[j].Data
		}
		return keys[i].Stabs < keys[j].Stabs
	})
	return keys
}

// SimulateRepetition samples a RepetitionCodeCircuit and tallies its outcomes.
func SimulateRepetition(c *Circuit, n, shots int, opts ...SamplerOption) (Tally, error) {
	if c.NumMeasurements() != 2*n-1 {
		return nil, fmt.Errorf("%w: circuit has %d measurements, want %d",
			ErrArguments, c.NumMeasurements(), 2*n-1)
	}

	tally := Tally{}
	for _, row := range c.CompileSampler(opts...).Sample(shots) {
		key := Outcome{
			Stabs: FormatBits(row[:n-1]),
			Data:  FormatBits(row[n-1:]),
		}
		tally[key]++
	}
	return tally, nil
}

// LogicalErrorRate is the fraction of shots that decode away from prepared.
func LogicalErrorRate(tally Tally, prepared bool) (float64, error) {
	errs, total := 0, 0
	for outcome, count := range tally {
		data, err := ParseBits(outcome.Data)
		if err != nil {
			return 0, err
		}
		stabs, err := ParseBits(outcome.Stabs)
		if err != nil {
			return 0, err
		}
		if DecodeRepetition(data, stabs) != prepared {
			errs += count
		}
		total += count
	}
	if total == 0 {
		return 0, nil
	}
	return float64(errs) / float64(total), nil
}
