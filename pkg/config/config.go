package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	EngineBST   = "bst"
	EngineBTree = "btree"

	KeyCaseUpper = "upper" // normalize ids at load and at lookup
	KeyCaseExact = "exact" // compare ids exactly as stored and queried
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`     // HTTP Listen Address (e.g. :8080)
	TCPAddr string `yaml:"tcp_addr"` // TCP Listen Address (e.g. :9090)
}

type CatalogConfig struct {
	Path           string  `yaml:"path"` // .txt/.csv course file or .db sqlite store
	Engine         string  `yaml:"engine"`
	KeyCase        string  `yaml:"key_case"`
	BTreeDegree    int     `yaml:"btree_degree"`
	BloomSize      uint    `yaml:"bloom_size"`
	BloomFalseProb float64 `yaml:"bloom_false_prob"`
	// DataDir bounds the files remote callers may load; defaults to the
	// directory holding Path.
	DataDir string `yaml:"data_dir"`
}

type StorageConfig struct {
	Path string `yaml:"path"` // sqlite export target
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			TCPAddr: ":9090",
		},
		Catalog: CatalogConfig{
			Path:           "ABCU_Advising_Program_Input.txt",
			Engine:         EngineBST,
			KeyCase:        KeyCaseUpper,
			BTreeDegree:    32,
			BloomSize:      4096,
			BloomFalseProb: 0.01,
		},
		Storage: StorageConfig{
			Path: "catalog.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/catalog.yaml", "catalog.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, fmt.Errorf("parse %s: %w", p, err)
				}
				return cfg, applyDefaults(cfg)
			}
		}
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, applyDefaults(cfg)
}

// applyDefaults fills zero values and rejects settings no component understands.
func applyDefaults(cfg *Config) error {
	cfg.Catalog.ApplyDefaults()
	if cfg.Log.Level == "" {
		cfg.Log.Level = Default().Log.Level
	}
	return cfg.Catalog.Validate()
}

// ApplyDefaults fills every zero or out of range field from Default.
func (c *CatalogConfig) ApplyDefaults() {
	def := Default().Catalog
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.Engine == "" {
		c.Engine = def.Engine
	}
	if c.KeyCase == "" {
		c.KeyCase = def.KeyCase
	}
	if c.BTreeDegree < 2 {
		c.BTreeDegree = def.BTreeDegree
	}
	if c.BloomSize == 0 {
		c.BloomSize = def.BloomSize
	}
	if c.BloomFalseProb <= 0 || c.BloomFalseProb >= 1 {
		c.BloomFalseProb = def.BloomFalseProb
	}
}

// Validate rejects engine and key_case values no component understands.
// Call it again after overriding fields from flags.
func (c CatalogConfig) Validate() error {
	switch c.Engine {
	case EngineBST, EngineBTree:
	default:
		return fmt.Errorf("unknown catalog engine %q", c.Engine)
	}
	switch c.KeyCase {
	case KeyCaseUpper, KeyCaseExact:
	default:
		return fmt.Errorf("unknown key_case %q", c.KeyCase)
	}
	return nil
}
