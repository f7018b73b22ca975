package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file. ${VAR} references
// are expanded from the environment before parsing so secrets can stay out of
// the file.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML([]byte(os.ExpandEnv(string(cfgFile))))
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML converts YAML content into a defaulted, validated ConfigData
func ParseYAML(content []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(content, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Storage: StorageData{
			Backend:      yamlConfig.Storage.Backend,
			MaxOpenConns: yamlConfig.Storage.MaxOpenConns,
		},
		Server: ServerData{
			ListenAddr:  yamlConfig.Server.ListenAddr,
			Port:        yamlConfig.Server.Port,
			TLSCertPath: yamlConfig.Server.Cert,
			TLSKeyPath:  yamlConfig.Server.Key,
			EnableCORS:  yamlConfig.Server.EnableCORS,
		},
		Geometry: GeometryData{
			Enabled:  yamlConfig.Geometry.Enabled,
			Workers:  yamlConfig.Geometry.Workers,
			Function: yamlConfig.Geometry.Function,
		},
		Logging: LoggingData{
			Debug:      yamlConfig.Logging.Debug,
			File:       yamlConfig.Logging.File,
			MaxSizeMB:  yamlConfig.Logging.MaxSizeMB,
			MaxBackups: yamlConfig.Logging.MaxBackups,
			MaxAgeDays: yamlConfig.Logging.MaxAgeDays,
		},
	}

	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{
			ConnectionString: yamlConfig.Storage.Postgres.ConnectionString,
		}
	}
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{
			Path: yamlConfig.Storage.SQLite.Path,
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with the file's kebab-case keys
type ConfigYAML struct {
	Storage  StorageYAML  `yaml:"storage"`
	Server   ServerYAML   `yaml:"server,omitempty"`
	Geometry GeometryYAML `yaml:"geometry,omitempty"`
	Logging  LoggingYAML  `yaml:"logging,omitempty"`
}

type StorageYAML struct {
	Backend      string        `yaml:"backend"`
	Postgres     *PostgresYAML `yaml:"postgres,omitempty"`
	SQLite       *SQLiteYAML   `yaml:"sqlite,omitempty"`
	MaxOpenConns int           `yaml:"max-open-conns,omitempty"`
}

type PostgresYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type ServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	EnableCORS bool   `yaml:"enable-cors,omitempty"`
}

type GeometryYAML struct {
	Enabled  bool   `yaml:"enabled"`
	Workers  int    `yaml:"workers,omitempty"`
	Function string `yaml:"function,omitempty"`
}

type LoggingYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty"`
}
