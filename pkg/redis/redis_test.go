package redis

import (
	"testing"
	"time"

	"github.com/Alijeyrad/medcenter_backend/config"
)

func TestOptions(t *testing.T) {
	tests := []struct {
		name      string
		in        config.RedisConfig
		pool      int
		idle      int
		dial      time.Duration
		readWrite time.Duration
	}{
		{
			name: "defaults",
			in:   config.RedisConfig{Addr: "localhost:6379"},
			pool: 10, idle: 2, dial: 5 * time.Second, readWrite: 3 * time.Second,
		},
		{
			name: "configured",
			in: config.RedisConfig{Addr: "cache:6379", DB: 2, PoolSize: 40, MinIdleConns: 8,
				DialTimeoutSeconds: 1, ReadTimeoutSeconds: 2, WriteTimeoutSeconds: 2},
			pool: 40, idle: 8, dial: time.Second, readWrite: 2 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Options(tt.in)
			if o.Addr != tt.in.Addr || o.DB != tt.in.DB {
				t.Errorf("addr/db = %s/%d", o.Addr, o.DB)
			}
			if o.PoolSize != tt.pool || o.MinIdleConns != tt.idle {
				t.Errorf("pool = %d idle = %d", o.PoolSize, o.MinIdleConns)
			}
			if o.DialTimeout != tt.dial || o.ReadTimeout != tt.readWrite || o.WriteTimeout != tt.readWrite {
				t.Errorf("timeouts = %v %v %v", o.DialTimeout, o.ReadTimeout, o.WriteTimeout)
			}
		})
	}
}

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(config.RedisConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
