package qec

import (
	"math/rand/v2"
	"sync"
)

type samplerConfig struct {
	seed   uint64
	seeded bool
}

// SamplerOption configures a compiled sampler.
type SamplerOption func(*samplerConfig)

// WithSeed makes a sampler reproducible.
func WithSeed(seed uint64) SamplerOption {
	return func(cfg *samplerConfig) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

func newRNG(opts []SamplerOption) *rand.Rand {
	cfg := samplerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.seeded {
		cfg.seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))
}

// MeasurementSampler draws raw measurement records from a circuit.
type MeasurementSampler struct {
	mu        sync.Mutex
	circuit   *Circuit
	reference []bool
	rng       *rand.Rand
}

// CompileSampler prepares a circuit for measurement sampling.
func (c *Circuit) CompileSampler(opts ...SamplerOption) *MeasurementSampler {
	return &MeasurementSampler{
		circuit:   c.Copy(),
		reference: ReferenceSample(c),
		rng:       newRNG(opts),
	}
}

// Sample returns one row of measurement results per shot; negative counts give no rows.
func (s *MeasurementSampler) Sample(shots int) [][]bool {
	shots = max(shots, 0)
	s.mu.Lock()
	f := newFrameSimulator(s.circuit, shots, s.rng, true)
	f.run(s.circuit)
	s.mu.Unlock()

	rows := make([][]bool, shots)
	for shot := range rows {
		row := make([]bool, len(f.measurements))
		for m, flips := range f.measurements {
			row[m] = s.reference[m] != bitAt(flips, shot)
		}
		rows[shot] = row
	}
	return rows
}

/*
DetectorSampler draws detection events and observable flips.

Both are reported relative to the noiseless reference, so a detector reads
true exactly when the measurements it covers disagree with what the circuit
would produce without noise.
*/
type DetectorSampler struct {
	mu      sync.Mutex
	circuit *Circuit
	rng     *rand.Rand
}

// CompileDetectorSampler prepares a circuit for detector sampling.
func (c *Circuit) CompileDetectorSampler(opts ...SamplerOption) *DetectorSampler {
	return &DetectorSampler{
		circuit: c.Copy(),
		rng:     newRNG(opts),
	}
}

// NumDetectors of the compiled circuit.
func (s *DetectorSampler) NumDetectors() int { return s.circuit.NumDetectors() }

// NumObservables of the compiled circuit.
func (s *DetectorSampler) NumObservables() int { return s.circuit.NumObservables() }

// Sample returns rows of detectors followed by observables.
func (s *DetectorSampler) Sample(shots int) [][]bool {
	shots = max(shots, 0)
	dets, obs := s.SampleSeparated(shots)
	rows := make([][]bool, shots)
	for i := range rows {
		rows[i] = append(dets[i], obs[i]...)
	}
	return rows
}

// SampleSeparated returns detector rows and observable rows.
func (s *DetectorSampler) SampleSeparated(shots int) ([][]bool, [][]bool) {
	shots = max(shots, 0)
	s.mu.Lock()
	f := newFrameSimulator(s.circuit, shots, s.rng, true)
	f.run(s.circuit)
	s.mu.Unlock()

	return unpack(f.detectors, shots), unpack(f.observables, shots)
}

func unpack(columns [][]uint64, shots int) [][]bool {
	rows := make([][]bool, shots)
	for shot := range rows {
		row := make([]bool, len(columns), len(columns)+1)
		for i, col := range columns {
			row[i] = bitAt(col, shot)
		}
		rows[shot] = row
	}
	return rows
}
