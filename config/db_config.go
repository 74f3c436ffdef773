// Package config loads the storage core's runtime configuration using
// viper, so the same settings can come from a config file, environment
// variables (prefixed JINDB_), or flags bound by the cobra CLI.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// PageId identifies a page by its position in the single database file.
// PageID 0 is reserved as an invalid sentinel; PageID 1 is the catalog's
// own head page.
type PageId uint32

const (
	// InvalidPageID never refers to a real on-disk page.
	InvalidPageID PageId = 0
	// CatalogPageID is the fixed head page of the system catalog relation.
	CatalogPageID PageId = 1
)

// DBConfig holds the resolved configuration for one database instance.
type DBConfig struct {
	DBPath     string `mapstructure:"dbpath"`
	DBFilename string `mapstructure:"db_filename"`
	PageSize   int    `mapstructure:"page_size"`
	BufferSize int    `mapstructure:"buffer_size"`
	BMPolicy   string `mapstructure:"bm_policy"`
}

// NewDBConfig returns the default configuration rooted at dbpath.
func NewDBConfig(dbpath string) *DBConfig {
	return &DBConfig{
		DBPath:     dbpath,
		DBFilename: "jindb.db",
		PageSize:   8192,
		BufferSize: 512,
		BMPolicy:   "LRU",
	}
}

// NewDBConfigWithParams returns a configuration with explicit page size and
// buffer pool frame count, everything else defaulted.
func NewDBConfigWithParams(dbpath string, pageSize, bufferSize int) *DBConfig {
	c := NewDBConfig(dbpath)
	c.PageSize = pageSize
	c.BufferSize = bufferSize
	return c
}

// LoadDBConfig resolves a DBConfig via viper: defaults, then an optional
// config file at filePath (any format viper autodetects: YAML, JSON,
// TOML, ...), then JINDB_-prefixed environment variables, highest
// precedence last.
func LoadDBConfig(filePath string) (*DBConfig, error) {
	v := newViper()
	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return decode(v)
}

// LoadDBConfigFromViper builds a DBConfig from a caller-supplied viper
// instance, letting the cobra command wire in flag bindings before
// resolution.
func LoadDBConfigFromViper(v *viper.Viper) (*DBConfig, error) {
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("JINDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("dbpath", ".")
	v.SetDefault("db_filename", "jindb.db")
	v.SetDefault("page_size", 8192)
	v.SetDefault("buffer_size", 512)
	v.SetDefault("bm_policy", "LRU")
	return v
}

func decode(v *viper.Viper) (*DBConfig, error) {
	var c DBConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.PageSize <= 0 {
		c.PageSize = 8192
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 512
	}
	if c.BMPolicy == "" {
		c.BMPolicy = "LRU"
	}
	if c.DBFilename == "" {
		c.DBFilename = "jindb.db"
	}
	return &c, nil
}
