package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Storage  StorageData  `json:"storage"`
	Server   ServerData   `json:"server"`
	Geometry GeometryData `json:"geometry"`
	Logging  LoggingData  `json:"logging"`
}

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// StorageData selects and configures the database holding trails, sections and activities
type StorageData struct {
	Backend      string        `json:"backend" validate:"required,oneof=postgres sqlite"`
	Postgres     *PostgresData `json:"postgres,omitempty" validate:"required_if=Backend postgres"`
	SQLite       *SQLiteData   `json:"sqlite,omitempty" validate:"required_if=Backend sqlite"`
	MaxOpenConns int           `json:"max_open_conns,omitempty" validate:"gte=0"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string" validate:"required"`
}

// GetConnectionString returns the connection string, or "" when p is nil
func (p *PostgresData) GetConnectionString() string {
	if p == nil {
		return ""
	}
	return p.ConnectionString
}

type SQLiteData struct {
	Path string `json:"path" validate:"required"`
}

// ServerData holds the REST API listener configuration
type ServerData struct {
	ListenAddr  string `json:"listen_addr,omitempty"`
	Port        int    `json:"port,omitempty" validate:"gte=0,lte=65535"`
	TLSCertPath string `json:"tls_cert_path,omitempty" validate:"required_with=TLSKeyPath"`
	TLSKeyPath  string `json:"tls_key_path,omitempty" validate:"required_with=TLSCertPath"`
	EnableCORS  bool   `json:"enable_cors,omitempty"`
}

// GeometryData configures the post-commit route geometry refresh
type GeometryData struct {
	Enabled bool `json:"enabled"`
	// Workers bounds how many refreshes run at once
	Workers int `json:"workers,omitempty" validate:"gte=0"`
	// Function is the database routine rebuilding a trail's route shape
	Function string `json:"function,omitempty" validate:"omitempty,sqlident"`
}

type LoggingData struct {
	Debug      bool   `json:"debug,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int    `json:"max_backups,omitempty" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days,omitempty" validate:"gte=0"`
}
