package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, KindSparse, cfg.Index.Kind)
	assert.Equal(t, uint(5000), cfg.Load.BatchSize)
	assert.Equal(t, uint(1), cfg.Load.Concurrency)
	assert.Equal(t, uint(1<<20), cfg.Load.MaxLineBytes)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "stderr", cfg.Log.Output)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symtrie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  name: words
  kind: dense
  degree: 36
  alphabet: abcdefghijklmnopqrstuvwxyz0123456789
load:
  concurrency: 4
  skip_invalid: true
log:
  level: debug
  encoding: json
`), 0o644))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, IndexConfig{
		Name:     "words",
		Kind:     KindDense,
		Degree:   36,
		Alphabet: "abcdefghijklmnopqrstuvwxyz0123456789",
	}, cfg.Index)
	assert.Equal(t, uint(4), cfg.Load.Concurrency)
	assert.True(t, cfg.Load.SkipInvalid)
	assert.Equal(t, "json", cfg.Log.Encoding)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SYMTRIE_INDEX_KIND", "dense")
	t.Setenv("SYMTRIE_INDEX_DEGREE", "2")
	t.Setenv("SYMTRIE_SERVER_ADDR", ":9090")
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, KindDense, cfg.Index.Kind)
	assert.Equal(t, 2, cfg.Index.Degree)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(NewViper(), "")
		require.NoError(t, err)
		return cfg
	}
	for _, test := range []struct {
		description string
		mutate      func(*Config)
		wantErr     string
	}{{
		description: "unknown kind",
		mutate:      func(c *Config) { c.Index.Kind = "radix" },
		wantErr:     "index.kind",
	}, {
		description: "dense without degree",
		mutate:      func(c *Config) { c.Index.Kind = KindDense },
		wantErr:     "index.degree",
	}, {
		description: "alphabet length mismatch",
		mutate: func(c *Config) {
			c.Index.Kind = KindDense
			c.Index.Degree = 3
			c.Index.Alphabet = "ab"
		},
		wantErr: "index.alphabet",
	}, {
		description: "zero batch size",
		mutate:      func(c *Config) { c.Load.BatchSize = 0 },
		wantErr:     "load.batch_size",
	}, {
		description: "unknown level",
		mutate:      func(c *Config) { c.Log.Level = "chatty" },
		wantErr:     "log.level",
	}, {
		description: "file output without path",
		mutate: func(c *Config) {
			c.Log.Output = "file"
			c.Log.Path = ""
		},
		wantErr: "log.path",
	}, {
		description: "dense digits",
		mutate: func(c *Config) {
			c.Index.Kind = KindDense
			c.Index.Degree = 10
		},
	}} {
		t.Run(test.description, func(t *testing.T) {
			cfg := base()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, test.wantErr)
		})
	}
}
