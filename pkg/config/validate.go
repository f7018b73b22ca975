package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by ApplyDefaults
const (
	DefaultListenAddr       = "0.0.0.0"
	DefaultPort             = 8080
	DefaultGeometryWorkers  = 4
	DefaultGeometryFunction = "update_geometry_of_evenement"
	DefaultMaxOpenConns     = 10
)

var sqlIdentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdentRegex.MatchString(fl.Field().String())
	})
}

// ApplyDefaults fills in unset optional values
func (c *ConfigData) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Geometry.Workers == 0 {
		c.Geometry.Workers = DefaultGeometryWorkers
	}
	if c.Geometry.Function == "" {
		c.Geometry.Function = DefaultGeometryFunction
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = DefaultMaxOpenConns
	}
}

// Validate checks the configuration for missing or inconsistent values
func (c *ConfigData) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
