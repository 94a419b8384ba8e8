package config

import "testing"

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", DBName: "medcenter"},
		Server:   ServerConfig{Port: 8080, Environment: "production"},
		Authentication: AuthenticationConfig{
			EncryptionKey: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			Paseto:        PasetoConfig{Mode: "local"},
		},
		Logging: LoggingConfig{Format: "json"},
		Phone:   PhoneConfig{DefaultRegion: "IR"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing host", func(c *Config) { c.Database.Host = "" }, true},
		{"missing db name", func(c *Config) { c.Database.DBName = "" }, true},
		{"short encryption key", func(c *Config) { c.Authentication.EncryptionKey = "abcd" }, true},
		{"bad paseto mode", func(c *Config) { c.Authentication.Paseto.Mode = "v2" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"loki without endpoint", func(c *Config) { c.Logging.Output.Loki.Enabled = true }, true},
		{"bad region", func(c *Config) { c.Phone.DefaultRegion = "IRN" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	c := validConfig()
	if !c.IsProduction() {
		t.Fatal("expected production")
	}
	c.Server.Environment = "development"
	if c.IsProduction() {
		t.Fatal("expected non-production")
	}
}
