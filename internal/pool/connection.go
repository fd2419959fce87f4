package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/odmerr"
)

// connState is the per-connection lifecycle state.
type connState int

const (
	connIdle connState = iota
	connInUse
	connRetiring
	connRetired
)

// pooledConn wraps a native adapter.Conn with the bookkeeping the pool
// needs to enforce idle_timeout and max_lifetime.
type pooledConn struct {
	native    adapter.Conn
	state     connState
	createdAt time.Time
	idleSince time.Time
}

func (c *pooledConn) expired(now time.Time, idleTimeout, maxLifetime time.Duration) bool {
	if maxLifetime > 0 && now.Sub(c.createdAt) >= maxLifetime {
		return true
	}
	if c.state == connIdle && idleTimeout > 0 && now.Sub(c.idleSince) >= idleTimeout {
		return true
	}
	return false
}

// Config carries the bounded-pool parameters from the per-alias
// configuration object's `pool` block.
type Config struct {
	MinConnections   int
	MaxConnections   int
	ConnectionTimeout time.Duration
	IdleTimeout       time.Duration
	MaxLifetime       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.MinConnections < 0 {
		c.MinConnections = 0
	}
	if c.MinConnections > c.MaxConnections {
		c.MinConnections = c.MaxConnections
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 5 * time.Second
	}
	return c
}

// connPool is the bounded connection pool for one alias. Admission is
// governed by a weighted semaphore sized to max_connections; min_connections
// are opened eagerly at construction so the first operations do not pay a
// dial round-trip.
type connPool struct {
	cfg     Config
	adapter adapter.Adapter
	sem     *semaphore.Weighted

	mu   sync.Mutex
	idle []*pooledConn
	live int // total connections currently open (idle + in-use + retiring)
}

func newConnPool(ctx context.Context, a adapter.Adapter, cfg Config) (*connPool, error) {
	cfg = cfg.withDefaults()
	p := &connPool{
		cfg:     cfg,
		adapter: a,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}
	for i := 0; i < cfg.MinConnections; i++ {
		c, err := p.dial(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.idle = append(p.idle, c)
		p.live++
		p.mu.Unlock()
	}
	return p, nil
}

func (p *connPool) dial(ctx context.Context) (*pooledConn, error) {
	native, err := p.adapter.Connect(ctx)
	if err != nil {
		return nil, &odmerr.ConnectionError{Err: err}
	}
	now := time.Now()
	return &pooledConn{native: native, state: connIdle, createdAt: now, idleSince: now}, nil
}

// acquire reserves a connection, dialing a fresh one if none are idle and
// the pool has room, blocking on the semaphore until connection_timeout
// elapses otherwise.
func (p *connPool) acquire(ctx context.Context) (*pooledConn, error) {
	acqCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()

	if err := p.sem.Acquire(acqCtx, 1); err != nil {
		return nil, &odmerr.PoolTimeoutError{}
	}

	p.mu.Lock()
	now := time.Now()
	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if c.expired(now, p.cfg.IdleTimeout, p.cfg.MaxLifetime) {
			p.live--
			p.mu.Unlock()
			_ = c.native.Close(ctx)
			p.mu.Lock()
			continue
		}
		c.state = connInUse
		p.mu.Unlock()
		return c, nil
	}
	p.live++
	p.mu.Unlock()

	c, err := p.dial(acqCtx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, err
	}
	c.state = connInUse
	return c, nil
}

// release returns a healthy connection to the idle set, or retires it
// (closing the native handle) if the worker flagged it as suspect.
func (p *connPool) release(ctx context.Context, c *pooledConn, suspect bool) {
	if suspect || c.expired(time.Now(), p.cfg.IdleTimeout, p.cfg.MaxLifetime) {
		p.retire(ctx, c)
		return
	}
	c.state = connIdle
	c.idleSince = time.Now()
	p.mu.Lock()
	p.idle = append(p.idle, c)
	p.mu.Unlock()
	p.sem.Release(1)
}

func (p *connPool) retire(ctx context.Context, c *pooledConn) {
	c.state = connRetiring
	_ = c.native.Close(ctx)
	c.state = connRetired
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
	p.sem.Release(1)
}

// closeAll retires every idle connection; used during shutdown.
func (p *connPool) closeAll(ctx context.Context) {
	p.mu.Lock()
	conns := p.idle
	p.idle = nil
	p.mu.Unlock()
	for _, c := range conns {
		c.state = connRetiring
		_ = c.native.Close(ctx)
		c.state = connRetired
	}
}
