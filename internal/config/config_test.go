package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg.Carpet.TSNR)
	assert.Equal(t, 15.0, *cfg.Carpet.TSNR)
	assert.True(t, cfg.Carpet.Reorder)
	assert.True(t, cfg.Carpet.Save)
	assert.Equal(t, 5, cfg.PCA.NComp)
	assert.False(t, cfg.PCA.Scores)
	assert.True(t, cfg.PCA.Flip)

	// paths are still missing
	assert.True(t, errors.Is(cfg.Validate(), pcerr.InvalidArgument))
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcarpet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  fmri: func.nii.gz
  mask: gm.nii.gz
carpet:
  tsnr: null
pca:
  ncomp: 3
  scores: true
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "func.nii.gz", cfg.Input.FMRI)
	assert.Nil(t, cfg.Carpet.TSNR)
	assert.True(t, cfg.Carpet.Reorder, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.PCA.NComp)
	assert.True(t, cfg.PCA.Scores)
	assert.NoError(t, cfg.Validate())

	opts := cfg.CarpetOptions()
	assert.Nil(t, opts.QualityThreshold)
	assert.Equal(t, 3, cfg.PCAOptions().NComp)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pca: [1, 2"), 0o644))

	_, err := LoadConfig(path)
	assert.True(t, errors.Is(err, pcerr.InvalidArgument))
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Input.FMRI = "a.nii"
	cfg.Input.Mask = "b.nii"
	cfg.PCA.NComp = 7

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Input.FMRI = "func.nii"
		cfg.Input.Mask = "mask.nii"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"zero ncomp", func(c *Config) { c.PCA.NComp = 0 }, false},
		{"negative ncomp", func(c *Config) { c.PCA.NComp = -2 }, false},
		{"negative workers", func(c *Config) { c.Workers = -1 }, false},
		{"negative tr", func(c *Config) { c.Input.TR = -2 }, false},
		{"no fmri", func(c *Config) { c.Input.FMRI = "" }, false},
		{"no mask", func(c *Config) { c.Input.Mask = "" }, false},
		{"no output", func(c *Config) { c.Output.Dir = "" }, false},
		{"saved carpet needs no images", func(c *Config) {
			c.Input.FMRI, c.Input.Mask, c.Input.Carpet = "", "", "carpet.npy"
		}, true},
		{"quality filter disabled", func(c *Config) { c.Carpet.TSNR = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, pcerr.InvalidArgument), "got %v", err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PCARPET_MASK=env_mask.nii\nPCARPET_NCOMP=4\n"), 0o644))

	t.Setenv(EnvFMRI, "env_func.nii")
	t.Setenv(EnvWorkers, "2")
	// godotenv.Load sets these in the process; clear them when the test ends
	t.Setenv(EnvMask, "")
	t.Setenv(EnvNComp, "")
	require.NoError(t, os.Unsetenv(EnvMask))
	require.NoError(t, os.Unsetenv(EnvNComp))

	require.NoError(t, LoadEnv(envFile, filepath.Join(t.TempDir(), "missing.env")))

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "env_func.nii", cfg.Input.FMRI)
	assert.Equal(t, "env_mask.nii", cfg.Input.Mask)
	assert.Equal(t, 4, cfg.PCA.NComp)
	assert.Equal(t, 2, cfg.Workers)

	t.Setenv(EnvNComp, "five")
	assert.True(t, errors.Is(cfg.ApplyEnv(), pcerr.InvalidArgument))
}
