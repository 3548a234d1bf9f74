// Package relpool layers the pool policy §4.2 describes — bounded
// concurrency, validated acquisition, a connection-string cache, periodic
// idle reaping — over dialect/sql.Driver's already-pooled *sql.DB, rather
// than reimplementing an idle-connection stack database/sql already
// maintains internally (see DESIGN.md).
package relpool

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
)

// Config is the pool's tunable policy (§4.2).
type Config struct {
	// MaxPoolSize bounds both database/sql's MaxOpenConns and the
	// single-slot-per-connection semaphore Acquire blocks on.
	MaxPoolSize int
	// IdleTimeout evicts a pooled connection idle longer than this;
	// applied to database/sql via SetConnMaxIdleTime.
	IdleTimeout time.Duration
	// ReapInterval is how often the background reap-log loop wakes.
	ReapInterval time.Duration
	// ConnStringTTL is the sliding expiration for the connection-string
	// cache (§4.2); zero disables caching.
	ConnStringTTL time.Duration
}

// DefaultConfig matches the policy §4.2 states: a 5-minute reap interval
// and a 10-minute idle timeout.
func DefaultConfig() Config {
	return Config{
		MaxPoolSize:   10,
		IdleTimeout:   10 * time.Minute,
		ReapInterval:  5 * time.Minute,
		ConnStringTTL: 5 * time.Minute,
	}
}

// Pool acquires, validates, and releases connections against one
// dsql.Driver, and owns transaction-scope creation.
type Pool struct {
	driver *dsql.Driver
	cfg    Config
	sem    *semaphore.Weighted
	cache  *connStringCache
	logger *slog.Logger

	stopReap chan struct{}
}

// New builds a Pool over driver, applying cfg to the underlying *sql.DB
// and starting the background reap-log loop.
func New(driver *dsql.Driver, cfg Config) *Pool {
	driver.DB().SetMaxOpenConns(cfg.MaxPoolSize)
	driver.DB().SetConnMaxIdleTime(cfg.IdleTimeout)

	p := &Pool{
		driver:   driver,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxPoolSize)),
		cache:    newConnStringCache(cfg.ConnStringTTL),
		logger:   slog.Default(),
		stopReap: make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

// Conn is one connection slot handed out by Acquire, bound to this Pool's
// concurrency limit for its lifetime.
type Conn struct {
	pool   *Pool
	driver *dsql.Driver
}

func (c *Conn) Exec(ctx context.Context, query string, args, v any) error {
	return c.driver.Exec(ctx, query, args, v)
}

func (c *Conn) Query(ctx context.Context, query string, args, v any) error {
	return c.driver.Query(ctx, query, args, v)
}

var _ dialect.ExecQuerier = (*Conn)(nil)

// Acquire blocks until a connection slot is available or ctx is
// cancelled, per §4.2's bounded-concurrency acquire contract.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, relata.NewOpenFailure(p.driver.Dialect(), err)
	}
	return &Conn{pool: p, driver: p.driver}, nil
}

// Release returns conn's slot to the pool.
func (p *Pool) Release(conn *Conn) {
	p.sem.Release(1)
}

// With acquires a connection, invokes fn, and releases on every exit path.
func (p *Pool) With(ctx context.Context, fn func(*Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// WithTransaction acquires a connection, begins a TransactionScope,
// invokes fn, commits on success, and rolls back on any error or panic —
// releasing the connection on every exit path (§4.2).
func (p *Pool) WithTransaction(ctx context.Context, fn func(*TransactionScope) error) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)

	scope, err := p.beginScope(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			scope.Dispose()
			panic(r)
		}
	}()

	if err := fn(scope); err != nil {
		if rbErr := scope.Rollback(); rbErr != nil {
			p.logger.Warn("rollback after operation error also failed", "error", rbErr)
		}
		return err
	}
	return scope.Commit()
}

// BeginTransaction starts a TransactionScope directly, for callers that
// manage its lifetime themselves rather than going through WithTransaction.
func (p *Pool) BeginTransaction(ctx context.Context) (*TransactionScope, error) {
	return p.beginScope(ctx)
}

func (p *Pool) beginScope(ctx context.Context) (*TransactionScope, error) {
	tx, err := p.driver.Tx(ctx)
	if err != nil {
		return nil, relata.NewOpenFailure(p.driver.Dialect(), err)
	}
	return &TransactionScope{tx: tx, state: Active, logger: p.logger}, nil
}

// TestConnection opens one connection and pings it, reporting health.
func (p *Pool) TestConnection(ctx context.Context) bool {
	return p.driver.DB().PingContext(ctx) == nil
}

// ConnectionString returns the cached connection string for key, building
// it with build on a cache miss or expiry (§4.2's sliding-TTL cache).
func (p *Pool) ConnectionString(key string, build func() string) string {
	return p.cache.getOrBuild(key, build)
}

// Close stops the reap loop and closes the underlying driver.
func (p *Pool) Close() error {
	close(p.stopReap)
	return p.driver.Close()
}

func (p *Pool) reapLoop() {
	if p.cfg.ReapInterval <= 0 {
		return
	}
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := p.driver.DB().Stats()
			p.logger.Info("connection pool reap",
				"open", stats.OpenConnections, "inUse", stats.InUse, "idle", stats.Idle)
		case <-p.stopReap:
			return
		}
	}
}
