package qec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Instruction is one gate applied to its targets.
type Instruction struct {
	Gate    string
	Targets []Target
	Args    []float64
}

// Info returns the gate table entry for the instruction.
func (inst Instruction) Info() GateInfo {
	info, _ := LookupGate(inst.Gate)
	return info
}

// Probability is the first argument of a noise channel.
func (inst Instruction) Probability() float64 {
	if len(inst.Args) == 0 {
		return 0
	}
	return inst.Args[0]
}

// QubitTargets returns the qubit indices of the instruction's targets.
func (inst Instruction) QubitTargets() []int {
	qs := make([]int, 0, len(inst.Targets))
	for _, t := range inst.Targets {
		if !t.Rec {
			qs = append(qs, t.Value)
		}
	}
	return qs
}

func (inst Instruction) String() string {
	var b strings.Builder
	b.WriteString(inst.Gate)
	if len(inst.Args) > 0 {
		b.WriteByte('(')
		for i, a := range inst.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatFloat(a, 'g', -1, 64))
		}
		b.WriteByte(')')
	}
	for _, t := range inst.Targets {
		b.WriteByte(' ')
		b.WriteString(t.String())
	}
	return b.String()
}

/*
Circuit is an ordered list of instructions over qubits, measurements,
detectors and observables.

Every Append is validated, so a Circuit that exists is always well formed:
record lookbacks point at earlier measurements and probabilities are in [0,1].
*/
type Circuit struct {
	instructions    []Instruction
	numQubits       int
	numMeasurements int
	numDetectors    int
	numObservables  int
}

// NewCircuit returns an empty circuit.
func NewCircuit() *Circuit {
	return &Circuit{}
}

// Append validates and adds an instruction.
func (c *Circuit) Append(gate string, targets []Target, args ...float64) error {
	info, ok := LookupGate(gate)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGate, gate)
	}

	if err := c.validate(info, targets, args); err != nil {
		return fmt.Errorf("%s: %w", info.Name, err)
	}

	inst := Instruction{
		Gate:    info.Name,
		Targets: append([]Target(nil), targets...),
		Args:    append([]float64(nil), args...),
	}
	c.instructions = append(c.instructions, inst)
	c.account(info, inst)
	return nil
}

// AppendQubits is Append for instructions that only target qubits.
func (c *Circuit) AppendQubits(gate string, qubits []int, args ...float64) error {
	return c.Append(gate, Qubits(qubits...), args...)
}

func (c *Circuit) validate(info GateInfo, targets []Target, args []float64) error {
	if info.Args >= 0 && len(args) != info.Args {
		return fmt.Errorf("%w: want %d, got %d", ErrArguments, info.Args, len(args))
	}

	if info.IsNoise() && (args[0] < 0 || args[0] > 1 || math.IsNaN(args[0])) {
		return fmt.Errorf("%w: %v", ErrProbability, args[0])
	}

	if info.Name == "OBSERVABLE_INCLUDE" {
		idx := args[0]
		if idx < 0 || idx != math.Trunc(idx) {
			return fmt.Errorf("%w: observable index %v", ErrArguments, idx)
		}
	}

	if info.Kind == KindTick && len(targets) > 0 {
		return fmt.Errorf("%w: TICK takes no targets", ErrInvalidTarget)
	}

	if info.TargetsPairs() {
		if len(targets)%2 != 0 {
			return fmt.Errorf("%w: odd number of targets for a two-qubit gate", ErrInvalidTarget)
		}
		for i := 0; i < len(targets); i += 2 {
			if targets[i] == targets[i+1] {
				return fmt.Errorf("%w: pair acts twice on qubit %d", ErrInvalidTarget, targets[i].Value)
			}
		}
	}

	for _, t := range targets {
		switch {
		case t.Rec && !info.Records:
			return fmt.Errorf("%w: %s does not take record targets", ErrInvalidTarget, info.Name)
		case !t.Rec && info.Records:
			return fmt.Errorf("%w: %s only takes record targets", ErrInvalidTarget, info.Name)
		case t.Rec && (t.Value >= 0 || -t.Value > c.numMeasurements):
			return fmt.Errorf("%w: %s with %d measurements", ErrRecordOutOfRange, t, c.numMeasurements)
		case !t.Rec && t.Value < 0:
			return fmt.Errorf("%w: negative qubit %d", ErrInvalidTarget, t.Value)
		}
	}

	return nil
}

func (c *Circuit) account(info GateInfo, inst Instruction) {
	for _, q := range inst.QubitTargets() {
		c.numQubits = max(c.numQubits, q+1)
	}

	switch {
	case info.Kind == KindMeasure:
		c.numMeasurements += len(inst.Targets)
	case info.Name == "DETECTOR":
		c.numDetectors++
	case info.Name == "OBSERVABLE_INCLUDE":
		c.numObservables = max(c.numObservables, int(inst.Args[0])+1)
	}
}

// NumQubits is one past the largest qubit index used.
func (c *Circuit) NumQubits() int { return c.numQubits }

// NumMeasurements counts measurement results the circuit produces.
func (c *Circuit) NumMeasurements() int { return c.numMeasurements }

// NumDetectors counts DETECTOR annotations.
func (c *Circuit) NumDetectors() int { return c.numDetectors }

// NumObservables is one past the largest observable index.
func (c *Circuit) NumObservables() int { return c.numObservables }

// Len is the number of instructions.
func (c *Circuit) Len() int { return len(c.instructions) }

// Instructions returns a copy of the instruction list.
func (c *Circuit) Instructions() []Instruction {
	return append([]Instruction(nil), c.instructions...)
}

// Copy returns an independent circuit with the same instructions.
func (c *Circuit) Copy() *Circuit {
	out := *c
	out.instructions = c.Instructions()
	return &out
}

// Noiseless drops every noise channel.
func (c *Circuit) Noiseless() *Circuit {
	out := NewCircuit()
	for _, inst := range c.instructions {
		if inst.Info().IsNoise() {
			continue
		}
		out.instructions = append(out.instructions, inst)
		out.account(inst.Info(), inst)
	}
	return out
}

/*
Replace rewrites every instruction using gate from into gate to. The rewritten
instructions are validated again, so swapping a single-qubit channel for a
two-qubit one with an odd target count fails.
*/
func (c *Circuit) Replace(from, to string) (*Circuit, error) {
	fromInfo, ok := LookupGate(from)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGate, from)
	}

	out := NewCircuit()
	for _, inst := range c.instructions {
		gate := inst.Gate
		if gate == fromInfo.Name {
			gate = to
		}
		if err := out.Append(gate, inst.Targets, inst.Args...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Extend appends all instructions of other.
func (c *Circuit) Extend(other *Circuit) error {
	for _, inst := range other.instructions {
		if err := c.Append(inst.Gate, inst.Targets, inst.Args...); err != nil {
			return err
		}
	}
	return nil
}

func (c *Circuit) String() string {
	lines := make([]string, len(c.instructions))
	for i, inst := range c.instructions {
		lines[i] = inst.String()
	}
	return strings.Join(lines, "\n")
}
