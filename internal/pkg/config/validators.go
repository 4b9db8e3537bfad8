// internal/pkg/config/validators.go
package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Validator checks one aspect of a loaded configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// BasicValidator performs basic configuration validation
type BasicValidator struct{}

// Validate performs basic validation
func (v *BasicValidator) Validate(cfg *Config) error {
	if err := validateRequiredFields(cfg); err != nil {
		return err
	}

	drivers := []string{StoreDriverSQLite, StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory}
	if !slices.Contains(drivers, cfg.Store.Driver) {
		return fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if cfg.Store.SeedPolicy != "empty" && cfg.Store.SeedPolicy != "mismatch" {
		return fmt.Errorf("unsupported seed policy %q", cfg.Store.SeedPolicy)
	}
	if cfg.Store.Driver == StoreDriverSQLite && cfg.Store.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite path", ErrMissingRequiredConfig)
	}
	if len(cfg.Store.Variants) == 0 {
		return fmt.Errorf("%w: store variants", ErrMissingRequiredConfig)
	}

	if cfg.Store.Driver == StoreDriverPostgres {
		if cfg.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if cfg.Database.MaxConnections < cfg.Database.MinConnections {
			return fmt.Errorf("database max_connections must be >= min_connections")
		}
	}

	if cfg.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool_size must be positive")
	}

	if cfg.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate_limit_requests must be positive")
	}

	if cfg.Export.Driver != ExportDriverLocal && cfg.Export.Driver != ExportDriverS3 {
		return fmt.Errorf("unsupported export driver %q", cfg.Export.Driver)
	}

	if cfg.AI.Enabled && cfg.AI.Model == "" {
		return fmt.Errorf("%w: ai model", ErrMissingRequiredConfig)
	}

	return nil
}

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if cfg.Store.Driver == StoreDriverMemory {
		return fmt.Errorf("memory store cannot be used in production")
	}

	if cfg.Store.Driver == StoreDriverPostgres {
		if strings.Contains(cfg.Database.Password, "MISSING_") {
			return fmt.Errorf("%w: database password", ErrMissingRequiredConfig)
		}
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("database SSL must be enabled in production")
		}
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("secure headers must be enabled in production")
	}

	if slices.Contains(cfg.Security.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard origin (*) not allowed in production")
	}

	if cfg.Server.TLSEnabled {
		if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
			return fmt.Errorf("TLS cert and key files must be provided when TLS is enabled")
		}
	}

	return nil
}

// validateRequiredFields uses reflection to check required struct tags
func validateRequiredFields(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	return validateStruct(v, "")
}

func validateStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		fieldName := fieldType.Name

		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if required := fieldType.Tag.Get("required"); required == "true" {
			if isZeroValue(field) {
				return fmt.Errorf("%w: %s", ErrMissingRequiredConfig, fieldName)
			}
		}

		if field.Kind() == reflect.Struct {
			if err := validateStruct(field, fieldName); err != nil {
				return err
			}
		}
	}

	return nil
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == "" || strings.HasPrefix(v.String(), "MISSING_")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
