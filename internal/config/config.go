// Package config loads the per-alias configuration objects the pool
// manager registers databases from, via viper/BurntSushi-toml the same way
// the teacher's internal/config package layers viper over its own
// project-local settings file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/crossdbodm/odm/internal/cache"
	"github.com/crossdbodm/odm/internal/idgen"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/pool"
)

// BackendType names one of the four backend families a database alias may
// be configured against.
type BackendType string

const (
	BackendEmbeddedSQL BackendType = "embedded_sql"
	BackendSQLA        BackendType = "sql_a"
	BackendSQLB        BackendType = "sql_b"
	BackendDocument    BackendType = "document"
)

// Connection is the backend-specific connection tuple. Only the fields
// relevant to the alias's BackendType are populated; which ones matter is
// determined entirely by BackendType, not by which fields are non-zero.
type Connection struct {
	// Embedded SQL
	Path            string `mapstructure:"path"`
	CreateIfMissing bool   `mapstructure:"create_if_missing"`

	// Client-server SQL A/B and Document
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	TLS             bool   `mapstructure:"tls"`
	Compression     bool   `mapstructure:"compression"`
	AuthSource      string `mapstructure:"auth_source"`
	DirectConnection bool  `mapstructure:"direct_connection"`
}

// PoolSettings mirrors internal/pool.Config in the external configuration
// object's on-the-wire field names.
type PoolSettings struct {
	MinConnections    int `mapstructure:"min_connections"`
	MaxConnections    int `mapstructure:"max_connections"`
	ConnectionTimeoutS int `mapstructure:"connection_timeout_s"`
	IdleTimeoutS      int `mapstructure:"idle_timeout_s"`
	MaxLifetimeS      int `mapstructure:"max_lifetime_s"`
}

// ToPoolConfig converts the wire representation (seconds) into pool.Config
// (time.Duration).
func (p PoolSettings) ToPoolConfig() pool.Config {
	return pool.Config{
		MinConnections:    p.MinConnections,
		MaxConnections:    p.MaxConnections,
		ConnectionTimeout: time.Duration(p.ConnectionTimeoutS) * time.Second,
		IdleTimeout:       time.Duration(p.IdleTimeoutS) * time.Second,
		MaxLifetime:       time.Duration(p.MaxLifetimeS) * time.Second,
	}
}

// IDStrategySettings configures the selected identifier generation
// discipline for an alias.
type IDStrategySettings struct {
	Strategy     string `mapstructure:"strategy"`
	Datacenter   uint8  `mapstructure:"datacenter"`
	Machine      uint8  `mapstructure:"machine"`
	Prefix       string `mapstructure:"prefix"`
}

func (s IDStrategySettings) ToIdgenOptions(backend BackendType) idgen.Options {
	return idgen.Options{
		Strategy:          s.Strategy,
		DatacenterID:      s.Datacenter,
		MachineID:         s.Machine,
		Prefix:            s.Prefix,
		DelegateToBackend: s.Strategy == idgen.StrategyOpaque12 && backend == BackendDocument,
	}
}

// CacheTierSettings configures the memory (tier 1) cache.
type CacheTierSettings struct {
	MaxEntries int `mapstructure:"max_entries"`
	MaxMB      int `mapstructure:"max_mb"`
}

// CacheDiskSettings configures the disk (tier 2) cache; zero value (Path
// empty) means tier 2 is disabled.
type CacheDiskSettings struct {
	Path             string `mapstructure:"path"`
	MaxMB            int    `mapstructure:"max_mb"`
	CompressionLevel int    `mapstructure:"compression_level"`
	ClearOnStart     bool   `mapstructure:"clear_on_start"`
}

// CacheTTLSettings configures default/max TTLs and the sweep interval.
type CacheTTLSettings struct {
	DefaultS int `mapstructure:"default_s"`
	MaxS     int `mapstructure:"max_s"`
	SweepS   int `mapstructure:"sweep_s"`
}

// CacheSettings is the optional per-alias cache configuration block.
type CacheSettings struct {
	Enabled  bool              `mapstructure:"enabled"`
	Strategy string            `mapstructure:"strategy"`
	Tier1    CacheTierSettings `mapstructure:"tier1"`
	Tier2    *CacheDiskSettings `mapstructure:"tier2"`
	TTL      CacheTTLSettings  `mapstructure:"ttl"`
}

// ToCacheConfig converts the wire representation into *cache.Config, or nil
// when caching is disabled for this alias.
func (c *CacheSettings) ToCacheConfig(schemaVersion string) *cache.Config {
	if c == nil || !c.Enabled {
		return nil
	}
	cfg := &cache.Config{
		SchemaVersion: schemaVersion,
		Strategy:      cache.Strategy(c.Strategy),
		MaxEntries:    c.Tier1.MaxEntries,
		MaxBytes:      int64(c.Tier1.MaxMB) * 1024 * 1024,
		TTL: cache.TTLConfig{
			DefaultTTL:    time.Duration(c.TTL.DefaultS) * time.Second,
			MaxTTL:        time.Duration(c.TTL.MaxS) * time.Second,
			CheckInterval: time.Duration(c.TTL.SweepS) * time.Second,
		},
	}
	if c.Tier2 != nil && c.Tier2.Path != "" {
		cfg.Disk = &cache.DiskConfig{
			Path:           c.Tier2.Path,
			MaxMB:          c.Tier2.MaxMB,
			ClearOnStart:   c.Tier2.ClearOnStart,
			CompressionLvl: c.Tier2.CompressionLevel,
		}
	}
	return cfg
}

// AliasConfig is one alias's complete configuration object, matching the
// per-alias shape callers supply to add_database.
type AliasConfig struct {
	Alias         string              `mapstructure:"alias"`
	BackendType   BackendType         `mapstructure:"backend_type"`
	Connection    Connection          `mapstructure:"connection"`
	Pool          PoolSettings        `mapstructure:"pool"`
	IDStrategy    IDStrategySettings  `mapstructure:"id_strategy"`
	Cache         *CacheSettings      `mapstructure:"cache"`
	SchemaVersion string              `mapstructure:"schema_version"`
}

func (a AliasConfig) Validate() error {
	if a.Alias == "" {
		return &odmerr.ConfigError{Message: "alias name is required"}
	}
	switch a.BackendType {
	case BackendEmbeddedSQL, BackendSQLA, BackendSQLB, BackendDocument:
	default:
		return &odmerr.ConfigError{Message: fmt.Sprintf("alias %q declares unknown backend_type %q", a.Alias, a.BackendType)}
	}
	return nil
}

// File is the top-level configuration document: a default alias plus the
// set of databases to register with the pool manager at startup.
type File struct {
	DefaultAlias string        `mapstructure:"default_alias"`
	Databases    []AliasConfig `mapstructure:"databases"`
}

// Load reads a TOML configuration document from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &odmerr.ConfigError{Message: err.Error()}
	}
	return Parse(string(data))
}

// Parse decodes a TOML configuration document, using BurntSushi/toml for
// the actual unmarshal and viper only to layer ODM_-prefixed environment
// variable overrides on top (e.g. ODM_DEFAULT_ALIAS) — the same
// file-plus-env-overlay shape the teacher's own config loading follows,
// just with the TOML parsing itself done directly rather than through
// viper's internal codec.
func Parse(doc string) (*File, error) {
	var raw map[string]interface{}
	if _, err := toml.Decode(doc, &raw); err != nil {
		return nil, &odmerr.ConfigError{Message: err.Error()}
	}

	v := viper.New()
	v.SetEnvPrefix("ODM")
	v.AutomaticEnv()
	if err := v.MergeConfigMap(raw); err != nil {
		return nil, &odmerr.ConfigError{Message: err.Error()}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, &odmerr.ConfigError{Message: err.Error()}
	}
	for _, a := range f.Databases {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
