package database

import (
	"testing"
	"time"

	"github.com/Alijeyrad/medcenter_backend/config"
)

func TestNewDSN(t *testing.T) {
	tests := []struct {
		name string
		in   config.DatabaseConfig
		want string
	}{
		{
			name: "explicit",
			in:   config.DatabaseConfig{Host: "db", Port: 6543, User: "mc", Password: "pw", DBName: "medcenter", SSLMode: "require"},
			want: "host=db port=6543 user=mc password=pw dbname=medcenter sslmode=require",
		},
		{
			name: "defaults",
			in:   config.DatabaseConfig{Host: "localhost", User: "mc", DBName: "casbin"},
			want: "host=localhost port=5432 user=mc password= dbname=casbin sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewDSN(tt.in); got != tt.want {
				t.Errorf("NewDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPoolFor(t *testing.T) {
	got := poolFor(config.DatabasePoolConfig{})
	if got.maxOpen != defaultMaxOpenConns || got.maxIdle != defaultMaxIdleConns || got.lifetime != defaultConnMaxLifetime {
		t.Errorf("defaults = %+v", got)
	}
	got = poolFor(config.DatabasePoolConfig{MaxOpenConns: 50, MaxIdleConns: 10, ConnMaxLifetimeMin: 30})
	if got.maxOpen != 50 || got.maxIdle != 10 || got.lifetime != 30*time.Minute {
		t.Errorf("configured = %+v", got)
	}
}

func TestSlowQueryThreshold(t *testing.T) {
	tests := []struct {
		in   config.DatabaseLoggingConfig
		want time.Duration
	}{
		{config.DatabaseLoggingConfig{}, 0},
		{config.DatabaseLoggingConfig{SlowQueryThresholdMs: 50}, 0},
		{config.DatabaseLoggingConfig{Enabled: true}, 200 * time.Millisecond},
		{config.DatabaseLoggingConfig{Enabled: true, SlowQueryThresholdMs: 50}, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := SlowQueryThreshold(tt.in); got != tt.want {
			t.Errorf("SlowQueryThreshold(%+v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
