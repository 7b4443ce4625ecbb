// Package config provides configuration loading and validation for pcarpet.
// Values come from DefaultConfig, then an optional YAML file, then PCARPET_* environment
// variables and finally command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/KyungWonPark/pcarpet/internal/carpet"
	"github.com/KyungWonPark/pcarpet/internal/pca"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the run configuration
type Config struct {
	Input struct {
		// FMRI is the 4-D image
		FMRI string `yaml:"fmri"`
		// Mask is the 3-D region of interest, in the space of FMRI
		Mask string `yaml:"mask"`
		// Carpet is a previously saved carpet.npy; when set, FMRI and Mask are not read
		Carpet string `yaml:"carpet,omitempty"`
		// TR is informational. Zero means the repetition time of the fMRI header.
		TR float64 `yaml:"tr"`
	} `yaml:"input"`

	Carpet struct {
		// TSNR is the minimum temporal SNR of a retained voxel; null disables the filter
		TSNR    *float64 `yaml:"tsnr"`
		Reorder bool     `yaml:"reorder"`
		Save    bool     `yaml:"save"`
	} `yaml:"carpet"`

	PCA struct {
		NComp  int  `yaml:"ncomp"`
		Scores bool `yaml:"scores"`
		Flip   bool `yaml:"flip"`
	} `yaml:"pca"`

	Output struct {
		Dir  string `yaml:"dir"`
		XLSX bool   `yaml:"xlsx"`
	} `yaml:"output"`

	// Workers for the row kernels; 0 uses every core
	Workers int `yaml:"workers"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	tsnr := carpet.DefaultQualityThreshold
	cfg.Carpet.TSNR = &tsnr
	cfg.Carpet.Reorder = true
	cfg.Carpet.Save = true

	cfg.PCA.NComp = pca.DefaultNComp
	cfg.PCA.Flip = true

	cfg.Output.Dir = "pcarpet_out"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(path string) (*Config, error) {
	const op = "config.LoadConfig"
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, pcerr.Wrap(pcerr.InvalidArgument, op, fmt.Errorf("error reading config file: %w", err))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, pcerr.Wrap(pcerr.InvalidArgument, op, fmt.Errorf("error parsing config file %s: %w", path, err))
	}

	return cfg, nil
}

// Environment variables read by ApplyEnv
const (
	EnvFMRI    = "PCARPET_FMRI"
	EnvMask    = "PCARPET_MASK"
	EnvOutput  = "PCARPET_OUTPUT"
	EnvNComp   = "PCARPET_NCOMP"
	EnvWorkers = "PCARPET_WORKERS"
)

// LoadEnv reads .env style files into the process environment. Missing files are ignored.
// Variables already set are kept.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return pcerr.Wrap(pcerr.InvalidArgument, "config.LoadEnv", err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with the PCARPET_* variables that are set
func (cfg *Config) ApplyEnv() error {
	const op = "config.ApplyEnv"

	if v, ok := os.LookupEnv(EnvFMRI); ok {
		cfg.Input.FMRI = v
	}
	if v, ok := os.LookupEnv(EnvMask); ok {
		cfg.Input.Mask = v
	}
	if v, ok := os.LookupEnv(EnvOutput); ok {
		cfg.Output.Dir = v
	}
	if v, ok := os.LookupEnv(EnvNComp); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return pcerr.New(pcerr.InvalidArgument, op, "%s = %q is not an integer", EnvNComp, v)
		}
		cfg.PCA.NComp = n
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return pcerr.New(pcerr.InvalidArgument, op, "%s = %q is not an integer", EnvWorkers, v)
		}
		cfg.Workers = n
	}

	return nil
}

// Validate reports the first invalid value as InvalidArgument
func (cfg *Config) Validate() error {
	const op = "config.Validate"

	if cfg.Input.Carpet == "" {
		if cfg.Input.FMRI == "" {
			return pcerr.New(pcerr.InvalidArgument, op, "an fMRI image is required")
		}
		if cfg.Input.Mask == "" {
			return pcerr.New(pcerr.InvalidArgument, op, "a mask image is required")
		}
	}
	if cfg.Output.Dir == "" {
		return pcerr.New(pcerr.InvalidArgument, op, "an output directory is required")
	}
	if cfg.Input.TR < 0 {
		return pcerr.New(pcerr.InvalidArgument, op, "tr must not be negative, got %g", cfg.Input.TR)
	}
	if cfg.PCA.NComp < 1 {
		return pcerr.New(pcerr.InvalidArgument, op, "ncomp must be a positive integer, got %d", cfg.PCA.NComp)
	}
	if cfg.Workers < 0 {
		return pcerr.New(pcerr.InvalidArgument, op, "workers must not be negative, got %d", cfg.Workers)
	}

	return nil
}

// CarpetOptions returns the carpet stage options
func (cfg *Config) CarpetOptions() carpet.Options {
	opts := carpet.Options{Reorder: cfg.Carpet.Reorder, Workers: cfg.Workers}
	if cfg.Carpet.TSNR != nil {
		v := *cfg.Carpet.TSNR
		opts.QualityThreshold = &v
	}
	return opts
}

// PCAOptions returns the decomposition stage options
func (cfg *Config) PCAOptions() pca.Options {
	return pca.Options{
		NComp:    cfg.PCA.NComp,
		FlipSign: cfg.PCA.Flip,
		Scores:   cfg.PCA.Scores,
		Workers:  cfg.Workers,
	}
}
