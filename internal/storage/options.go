package storage

import "time"

// Option customises a repository driver. Options unknown to a driver are
// ignored so the same slice can be handed to either constructor.
type Option interface {
	applyJSON(*Storage)
	applyPostgres(*PostgresConfig)
}

type jsonOption func(*Storage)

func (o jsonOption) applyJSON(s *Storage)          { o(s) }
func (o jsonOption) applyPostgres(*PostgresConfig) {}

type postgresOption func(*PostgresConfig)

func (o postgresOption) applyJSON(*Storage)              {}
func (o postgresOption) applyPostgres(c *PostgresConfig) { o(c) }

// WithPostgresPool bounds the pgx connection pool.
func WithPostgresPool(maxConns, minConns int32) Option {
	return postgresOption(func(c *PostgresConfig) {
		c.MaxConnections = maxConns
		c.MinConnections = minConns
	})
}

// WithPostgresLifetimes tunes connection recycling.
func WithPostgresLifetimes(maxLifetime, maxIdle, healthCheck time.Duration) Option {
	return postgresOption(func(c *PostgresConfig) {
		c.MaxConnLifetime = maxLifetime
		c.MaxConnIdleTime = maxIdle
		c.HealthCheckInterval = healthCheck
	})
}

// WithPostgresAcquireTimeout bounds connection establishment.
func WithPostgresAcquireTimeout(timeout time.Duration) Option {
	return postgresOption(func(c *PostgresConfig) {
		c.AcquireTimeout = timeout
	})
}

// WithPostgresApplicationName tags pool connections for pg_stat_activity.
func WithPostgresApplicationName(name string) Option {
	return postgresOption(func(c *PostgresConfig) {
		c.ApplicationName = name
	})
}

// WithPostgresOperationTimeout bounds individual repository operations.
func WithPostgresOperationTimeout(timeout time.Duration) Option {
	return postgresOption(func(c *PostgresConfig) {
		c.OperationTimeout = timeout
	})
}
