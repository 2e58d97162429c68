package qec

import (
	"math/rand/v2"
)

/*
frameSimulator tracks, for many shots at once, the Pauli frame separating each
shot from the noiseless reference. Shots are packed 64 to a word, so Clifford
gates are a handful of word operations regardless of shot count.

With randomize set, resets and measurements scramble the Z part of the frame,
which is how non-deterministic outcomes pick up their randomness. With it
cleared, the frame is propagated exactly, which the error model extraction
uses to follow one injected error per lane.
*/
type frameSimulator struct {
	shots     int
	words     int
	randomize bool
	rng       *rand.Rand

	x, z [][]uint64

	measurements [][]uint64
	detectors    [][]uint64
	observables  [][]uint64

	// onNoise, when set, replaces stochastic sampling of noise channels.
	onNoise func(f *frameSimulator, index int, inst Instruction)
}

func newFrameSimulator(c *Circuit, shots int, rng *rand.Rand, randomize bool) *frameSimulator {
	words := (shots + 63) / 64
	f := &frameSimulator{
		shots:        shots,
		words:        words,
		randomize:    randomize,
		rng:          rng,
		x:            make([][]uint64, c.NumQubits()),
		z:            make([][]uint64, c.NumQubits()),
		measurements: make([][]uint64, 0, c.NumMeasurements()),
		detectors:    make([][]uint64, 0, c.NumDetectors()),
		observables:  make([][]uint64, c.NumObservables()),
	}
	for q := range f.x {
		f.x[q] = make([]uint64, words)
		f.z[q] = make([]uint64, words)
		f.scrambleZ(q)
	}
	for k := range f.observables {
		f.observables[k] = make([]uint64, words)
	}
	return f
}

func (f *frameSimulator) run(c *Circuit) {
	for index, inst := range c.instructions {
		f.apply(index, inst)
	}
}

func (f *frameSimulator) apply(index int, inst Instruction) {
	qs := inst.QubitTargets()

	switch inst.Gate {
	case "H":
		for _, q := range qs {
			f.x[q], f.z[q] = f.z[q], f.x[q]
		}
	case "X", "Z", "TICK":
		// Pauli gates act identically on the reference, leaving the frame alone.
	case "CX":
		for i := 0; i < len(qs); i += 2 {
			c, t := qs[i], qs[i+1]
			xorInto(f.x[t], f.x[c])
			xorInto(f.z[c], f.z[t])
		}
	case "R":
		for _, q := range qs {
			clear(f.x[q])
			f.scrambleZ(q)
		}
	case "M":
		for _, q := range qs {
			f.measurements = append(f.measurements, append([]uint64(nil), f.x[q]...))
			f.scrambleZ(q)
		}
	case "MR":
		for _, q := range qs {
			f.measurements = append(f.measurements, append([]uint64(nil), f.x[q]...))
			clear(f.x[q])
			f.scrambleZ(q)
		}
	case "DETECTOR":
		f.detectors = append(f.detectors, f.parity(inst.Targets))
	case "OBSERVABLE_INCLUDE":
		xorInto(f.observables[int(inst.Args[0])], f.parity(inst.Targets))
	default:
		if f.onNoise != nil {
			f.onNoise(f, index, inst)
			return
		}
		f.sampleNoise(inst)
	}
}

func (f *frameSimulator) parity(targets []Target) []uint64 {
	out := make([]uint64, f.words)
	for _, t := range targets {
		xorInto(out, f.measurements[len(f.measurements)+t.Value])
	}
	return out
}

func (f *frameSimulator) scrambleZ(q int) {
	if !f.randomize {
		clear(f.z[q])
		return
	}
	for w := range f.z[q] {
		f.z[q][w] = f.rng.Uint64()
	}
}

func (f *frameSimulator) sampleNoise(inst Instruction) {
	p := inst.Probability()
	if p <= 0 {
		return
	}
	qs := inst.QubitTargets()

	switch inst.Gate {
	case "X_ERROR":
		for _, q := range qs {
			f.each(p, func(w int, bit uint64) { f.x[q][w] ^= bit })
		}
	case "Z_ERROR":
		for _, q := range qs {
			f.each(p, func(w int, bit uint64) { f.z[q][w] ^= bit })
		}
	case "DEPOLARIZE1":
		for _, q := range qs {
			f.each(p, func(w int, bit uint64) {
				f.pauli(q, w, bit, 1+f.rng.IntN(3))
			})
		}
	case "DEPOLARIZE2":
		for i := 0; i < len(qs); i += 2 {
			a, b := qs[i], qs[i+1]
			f.each(p, func(w int, bit uint64) {
				r := 1 + f.rng.IntN(15)
				f.pauli(a, w, bit, r&3)
				f.pauli(b, w, bit, r>>2)
			})
		}
	}
}

// pauli applies the Pauli encoded as x bit (1) and z bit (2) to one shot.
func (f *frameSimulator) pauli(q, w int, bit uint64, code int) {
	if code&1 != 0 {
		f.x[q][w] ^= bit
	}
	if code&2 != 0 {
		f.z[q][w] ^= bit
	}
}

// each calls fn for every shot hit by a coin with bias p.
func (f *frameSimulator) each(p float64, fn func(w int, bit uint64)) {
	for s := 0; s < f.shots; s++ {
		if f.rng.Float64() < p {
			fn(s>>6, 1<<(s&63))
		}
	}
}

func xorInto(dst, src []uint64) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

func bitAt(words []uint64, shot int) bool {
	return words[shot>>6]&(1<<(shot&63)) != 0
}
