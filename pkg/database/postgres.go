package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Alijeyrad/medcenter_backend/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// NewDSN builds a lib/pq key=value connection string.
func NewDSN(c config.DatabaseConfig) string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.DBName, sslmode)
}

type poolSettings struct {
	maxOpen, maxIdle int
	lifetime         time.Duration
}

func poolFor(p config.DatabasePoolConfig) poolSettings {
	out := poolSettings{maxOpen: defaultMaxOpenConns, maxIdle: defaultMaxIdleConns, lifetime: defaultConnMaxLifetime}
	if p.MaxOpenConns > 0 {
		out.maxOpen = p.MaxOpenConns
	}
	if p.MaxIdleConns > 0 {
		out.maxIdle = p.MaxIdleConns
	}
	if p.ConnMaxLifetimeMin > 0 {
		out.lifetime = time.Duration(p.ConnMaxLifetimeMin) * time.Minute
	}
	return out
}

// Open connects to Postgres, applies pool limits and pings within five seconds.
func Open(c config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", NewDSN(c))
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", c.DBName, err)
	}

	pool := poolFor(c.Pool)
	conn.SetMaxOpenConns(pool.maxOpen)
	conn.SetMaxIdleConns(pool.maxIdle)
	conn.SetConnMaxLifetime(pool.lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database %q: %w", c.DBName, err)
	}
	return conn, nil
}
