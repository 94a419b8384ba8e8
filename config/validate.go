package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Validate checks values the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.DBName == "" {
		errs = append(errs, errors.New("database.dbname is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	if key := c.Authentication.EncryptionKey; key != "" {
		b, err := hex.DecodeString(key)
		if err != nil || len(b) != 32 {
			errs = append(errs, errors.New("authentication.encryption_key must be 64 hex characters"))
		}
	}

	switch strings.ToLower(c.Authentication.Paseto.Mode) {
	case "", "local", "public":
	default:
		errs = append(errs, fmt.Errorf("authentication.paseto.mode %q must be local or public", c.Authentication.Paseto.Mode))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	if c.Logging.Output.Loki.Enabled && c.Logging.Output.Loki.Endpoint == "" {
		errs = append(errs, errors.New("logging.output.loki.endpoint is required when loki is enabled"))
	}

	if r := c.Phone.DefaultRegion; r != "" && len(r) != 2 {
		errs = append(errs, fmt.Errorf("phone.default_region %q must be a two-letter region code", r))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
