package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

type WalkerCfg struct {
	TopDown        bool `yaml:"top_down" json:"top_down"`
	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`
	MaxDepth       *int `yaml:"max_depth" json:"max_depth" validate:"omitempty,min=-1"` // -1 = unlimited
}

type FinderCfg struct {
	SomeBytesSize   int  `yaml:"some_bytes_size" json:"some_bytes_size" validate:"gte=0,lte=1048576"` // First/last bytes feature size (default: 64)
	PartialHashSize int  `yaml:"partial_hash_size" json:"partial_hash_size" validate:"gte=0"`         // Bytes hashed by the partial hash accelerator (default: 10 KiB)
	UsePartialHash  bool `yaml:"use_partial_hash" json:"use_partial_hash"`                            // Run the partial hash stage before the full hash
	FastIO          bool `yaml:"fast_io" json:"fast_io"`                                              // Read features in (device, inode) order
	Workers         int  `yaml:"workers" json:"workers" validate:"gte=0,lte=1024"`                    // Concurrent group workers (default: NumCPU)
}

type CleanupCfg struct {
	DryRun         *bool      `yaml:"dry_run" json:"dry_run"`                                    // Defaults to true for safety
	Mode           string     `yaml:"mode" json:"mode" validate:"omitempty,oneof=delete move"` // delete | move
	TrashDir       string     `yaml:"trash_dir" json:"trash_dir"`                              // Destination for move mode
	Hierarchical   bool       `yaml:"hierarchical" json:"hierarchical"`                        // Keep the relative layout below trash_dir
	Verify         *bool      `yaml:"verify" json:"verify"`                                    // Byte-compare a set before acting on it (default: true)
	ProtectedPaths []string   `yaml:"protected_paths" json:"protected_paths"`
	Rules          []RuleSpec `yaml:"rules" json:"rules" validate:"dive"`
}

// RuleSpec selects one marking policy. Args are rule specific (a directory for
// by_directory, a parent name for by_parent, excluded common parents for by_depth).
type RuleSpec struct {
	Name string   `yaml:"name" json:"name" validate:"required"`
	Args []string `yaml:"args" json:"args"`
}

type LoggingCfg struct {
	Directory    string `yaml:"directory" json:"directory"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
	Level        string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

type MetricsCfg struct {
	Textfile string `yaml:"textfile" json:"textfile"` // node_exporter textfile collector output
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent" validate:"gte=0,lte=100"` // Maximum CPU usage (e.g., 10.0)
}

type RdfindCfg struct {
	Binary   string `yaml:"binary" json:"binary"`
	Checksum string `yaml:"checksum" json:"checksum" validate:"omitempty,oneof=md5 sha1 sha256 sha512"`
}

type Config struct {
	Roots          []string       `yaml:"roots" json:"roots" validate:"required,min=1"`
	Excludes       []string       `yaml:"excludes" json:"excludes"`
	Walker         WalkerCfg      `yaml:"walker" json:"walker"`
	Finder         FinderCfg      `yaml:"finder" json:"finder"`
	PoolPath       string         `yaml:"pool_path" json:"pool_path"`
	Cleanup        CleanupCfg     `yaml:"cleanup" json:"cleanup"`
	DatabasePath   string         `yaml:"database_path" json:"database_path"` // SQLite action history, empty disables
	Metrics        MetricsCfg     `yaml:"metrics" json:"metrics"`
	Logging        LoggingCfg     `yaml:"logging" json:"logging"`
	ResourceLimits ResourceLimits `yaml:"resource_limits" json:"resource_limits"`
	Rdfind         RdfindCfg      `yaml:"rdfind" json:"rdfind"`
}

var (
	errNoRoots     = errors.New("configuration must specify roots")
	errInvalidPath = errors.New("path must be absolute")
	errNoTrashDir  = errors.New("cleanup.trash_dir is required in move mode")
	errUnknownRule = errors.New("unknown cleanup rule")
	errMissingArgs = errors.New("cleanup rule requires an argument")
)

// Known rules and whether they need at least one argument.
var ruleArgs = map[string]bool{
	"by_stem":            false,
	"by_directory":       true,
	"by_parent":          true,
	"by_name":            false,
	"by_depth":           false,
	"keep_shortest_path": false,
	"keep_longest_path":  false,
	"keep_oldest":        false,
	"keep_newest":        false,
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration scanning the given roots with every default applied.
func Default(roots ...string) (*Config, error) {
	cfg := &Config{Roots: roots}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate re-applies defaults and validation after fields were changed,
// for instance by command line overrides.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if len(c.Roots) == 0 {
		return errNoRoots
	}

	c.applyDefaults()

	if err := validateStruct(c); err != nil {
		return err
	}

	cleaned := make([]string, 0, len(c.Roots))
	for _, p := range c.Roots {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, cp)
	}
	c.Roots = cleaned

	if c.Cleanup.Mode == "move" {
		if c.Cleanup.TrashDir == "" {
			return errNoTrashDir
		}
		cp, err := cleanAbsolute(c.Cleanup.TrashDir)
		if err != nil {
			return fmt.Errorf("cleanup.trash_dir: %w", err)
		}
		c.Cleanup.TrashDir = cp
	}

	for i, rule := range c.Cleanup.Rules {
		needsArgs, ok := ruleArgs[rule.Name]
		if !ok {
			return fmt.Errorf("cleanup.rules[%d]: %w: %q", i, errUnknownRule, rule.Name)
		}
		if needsArgs && len(rule.Args) == 0 {
			return fmt.Errorf("cleanup.rules[%d] %s: %w", i, rule.Name, errMissingArgs)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Walker.MaxDepth == nil {
		unlimited := -1
		c.Walker.MaxDepth = &unlimited
	}

	if c.Finder.SomeBytesSize <= 0 {
		c.Finder.SomeBytesSize = 64 // rdfind uses 64
	}
	if c.Finder.PartialHashSize <= 0 {
		c.Finder.PartialHashSize = 10 * 1024
	}
	if c.Finder.Workers <= 0 {
		c.Finder.Workers = runtime.NumCPU()
	}

	if c.PoolPath == "" {
		c.PoolPath = "duplicates.json"
	}

	// Dry run and verification default to true for safety
	if c.Cleanup.DryRun == nil {
		dryRun := true
		c.Cleanup.DryRun = &dryRun
	}
	if c.Cleanup.Verify == nil {
		verify := true
		c.Cleanup.Verify = &verify
	}
	if c.Cleanup.Mode == "" {
		c.Cleanup.Mode = "delete"
	}

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Rdfind.Binary == "" {
		c.Rdfind.Binary = "/usr/bin/rdfind"
	}
	if c.Rdfind.Checksum == "" {
		c.Rdfind.Checksum = "sha256"
	}
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// IsDryRun reports whether cleanup actions are only logged.
func (c *Config) IsDryRun() bool {
	return c.Cleanup.DryRun == nil || *c.Cleanup.DryRun
}

// ShouldVerify reports whether sets are byte-compared before any action.
func (c *Config) ShouldVerify() bool {
	return c.Cleanup.Verify == nil || *c.Cleanup.Verify
}

// MaxDepth returns the walker depth limit, -1 meaning unlimited.
func (c *Config) MaxDepth() int {
	if c.Walker.MaxDepth == nil {
		return -1
	}
	return *c.Walker.MaxDepth
}
