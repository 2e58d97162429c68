package qec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

/*
Config carries every tunable of the experiments and the pool.

The defaults are the parameters the experiments were designed around. A
qec.yaml in the working directory or QEC_* environment variables
(QEC_BENCHMARK_MAX_SHOTS=20000) override them.
*/
type Config struct {
	SchedulingTimeout time.Duration `mapstructure:"scheduling_timeout"`
	Workers           int           `mapstructure:"workers"`
	BatchSize         int           `mapstructure:"batch_size"`
	MaxBatchSize      int           `mapstructure:"max_batch_size"`
	BatchTarget       time.Duration `mapstructure:"batch_target"`
	ProgressInterval  time.Duration `mapstructure:"progress_interval"`
	Seed              uint64        `mapstructure:"seed"`
	OutputDir         string        `mapstructure:"output_dir"`
	LogLevel          string        `mapstructure:"log_level"`

	Detection  DetectionConfig  `mapstructure:"detection"`
	Repetition RepetitionConfig `mapstructure:"repetition"`
	Benchmark  BenchmarkConfig  `mapstructure:"benchmark"`
	Hamming    HammingConfig    `mapstructure:"hamming"`
}

type DetectionConfig struct {
	Shots int     `mapstructure:"shots"`
	Noise float64 `mapstructure:"noise"`
}

type RepetitionConfig struct {
	Shots     int     `mapstructure:"shots"`
	Distances []int   `mapstructure:"distances"`
	MinNoise  float64 `mapstructure:"min_noise"`
	MaxNoise  float64 `mapstructure:"max_noise"`
	Points    int     `mapstructure:"points"`
}

type BenchmarkConfig struct {
	Distances []int     `mapstructure:"distances"`
	Noise     []float64 `mapstructure:"noise"`
	MaxShots  int       `mapstructure:"max_shots"`
	MaxErrors int       `mapstructure:"max_errors"`
	Decoder   string    `mapstructure:"decoder"`
}

type HammingConfig struct {
	Noise    []float64 `mapstructure:"noise"`
	MaxShots int       `mapstructure:"max_shots"`
	Decoder  string    `mapstructure:"decoder"`
}

var defaults = map[string]any{
	"scheduling_timeout":   10 * time.Second,
	"workers":              4,
	"batch_size":           1000,
	"max_batch_size":       100000,
	"batch_target":         250 * time.Millisecond,
	"progress_interval":    250 * time.Millisecond,
	"seed":                 0,
	"output_dir":           ".",
	"log_level":            "info",
	"detection.shots":      100000,
	"detection.noise":      0.1,
	"repetition.shots":     2000,
	"repetition.distances": []int{3, 5},
	"repetition.min_noise": 0.01,
	"repetition.max_noise": 0.5,
	"repetition.points":    5,
	"benchmark.distances":  []int{3, 5},
	"benchmark.noise":      []float64{0.001, 0.01, 0.05, 0.1},
	"benchmark.max_shots":  5000,
	"benchmark.max_errors": 500,
	"benchmark.decoder":    "pymatching",
	"hamming.noise":        []float64{0.001, 0.01, 0.1},
	"hamming.max_shots":    5000,
	"hamming.decoder":      "pymatching",
}

// NewConfig returns the defaults without consulting files or the environment
func NewConfig() *Config {
	cfg, err := decodeConfig(newViper(false))
	if err != nil {
		// The defaults table always decodes.
		panic(err)
	}
	return cfg
}

// LoadConfig layers qec.yaml and QEC_* variables over the defaults
func LoadConfig(paths ...string) (*Config, error) {
	v := newViper(true)
	v.SetConfigName("qec")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return decodeConfig(v)
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	if env {
		v.SetEnvPrefix("QEC")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrArguments, cfg.Workers)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("%w: batch_size must be positive, got %d", ErrArguments, cfg.BatchSize)
	}
	if cfg.MaxBatchSize < cfg.BatchSize {
		cfg.MaxBatchSize = cfg.BatchSize
	}
	if cfg.SchedulingTimeout <= 0 {
		cfg.SchedulingTimeout = 10 * time.Second
	}
	return cfg, nil
}

// SetLogLevel applies a level name to the default logger, keeping info on bad input.
func SetLogLevel(name string) {
	level, err := log.ParseLevel(name)
	if err != nil {
		log.Warn("unknown log level, using info", "level", name)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
