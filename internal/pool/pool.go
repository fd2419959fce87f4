// Package pool implements the per-alias operation queue and bounded
// connection pool: a single worker goroutine serializes all operations for
// one alias, checking out a connection per operation, consulting and
// maintaining the two-tier cache, and replying through a one-shot channel.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/cache"
	"github.com/crossdbodm/odm/internal/idgen"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// workerState is the per-worker lifecycle state from the Running ->
// Draining -> Stopped transition sequence.
type workerState int32

const (
	stateRunning workerState = iota
	stateDraining
	stateStopped
)

// queueCapacity approximates the "unbounded" operation queue with a large
// buffered channel; Go has no native unbounded channel, and a buffer this
// size means submit only blocks under pathological backlog rather than as
// routine backpressure.
const queueCapacity = 4096

// Pool owns one alias's connection pool, cache, ID generator, and worker
// goroutine. The facade talks to it through its exported operation
// methods, each of which enqueues through submit.
type Pool struct {
	alias         string
	adapterKind   string
	adapter       adapter.Adapter
	conns         *connPool
	cache         *cache.Manager
	idGen         idgen.Generator
	schemaVersion string

	// schemas records each table's declared schema as of its last
	// successful create_table, for the write path's pre-backend-call
	// validation. Only the single worker goroutine in run() ever reads or
	// writes it, so it needs no lock of its own.
	schemas map[string]schema.Schema

	ops      chan *operation
	stopped  chan struct{}
	state    atomic.Int32
	closeMu  sync.Mutex
	closed   bool
	cancelFn context.CancelFunc
}

// New constructs a Pool for one alias, eagerly opening min_connections and
// starting the worker goroutine. If cacheCfg is non-nil and its tier-2 open
// fails, New fails — there is no silent fallback to tier-1-only caching.
func New(ctx context.Context, alias string, a adapter.Adapter, connCfg Config, cacheCfg *cache.Config, idGen idgen.Generator, schemaVersion string) (*Pool, error) {
	conns, err := newConnPool(ctx, a, connCfg)
	if err != nil {
		return nil, err
	}

	var mgr *cache.Manager
	if cacheCfg != nil {
		mgr, err = cache.New(*cacheCfg)
		if err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		alias:         alias,
		adapterKind:   a.Dialect(),
		adapter:       a,
		conns:         conns,
		cache:         mgr,
		idGen:         idGen,
		schemaVersion: schemaVersion,
		schemas:       make(map[string]schema.Schema),
		ops:           make(chan *operation, queueCapacity),
		stopped:       make(chan struct{}),
		cancelFn:      cancel,
	}
	go p.run(runCtx)
	return p, nil
}

func (p *Pool) setState(s workerState) {
	p.state.Store(int32(s))
}

// State reports the worker's current lifecycle state.
func (p *Pool) State() string {
	switch workerState(p.state.Load()) {
	case stateDraining:
		return "draining"
	case stateStopped:
		return "stopped"
	default:
		return "running"
	}
}

// submit enqueues op and is the only way callers reach the worker.
func (p *Pool) submit(op *operation) (Result, error) {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return Result{}, &odmerr.PoolClosedError{Alias: p.alias}
	}
	p.closeMu.Unlock()

	select {
	case p.ops <- op:
	case <-p.stopped:
		return Result{}, &odmerr.PoolClosedError{Alias: p.alias}
	}
	r := <-op.reply
	return r, r.Err
}

// CreateTable enqueues a create_table operation.
func (p *Pool) CreateTable(ctx context.Context, table string, s schema.Schema) error {
	op := newOperation(opCreateTable, table)
	op.schema = s
	_, err := p.submit(op)
	return err
}

// DropTable enqueues a drop_table operation.
func (p *Pool) DropTable(ctx context.Context, table string) error {
	op := newOperation(opDropTable, table)
	_, err := p.submit(op)
	return err
}

// Create enqueues a create operation and returns the stored (possibly
// ID-generated) canonical record.
func (p *Pool) Create(ctx context.Context, table string, record value.Value) (value.Value, error) {
	op := newOperation(opCreate, table)
	op.record = record
	r, err := p.submit(op)
	return r.Value, err
}

// Find enqueues a find operation over a flat condition list.
func (p *Pool) Find(ctx context.Context, table string, opts query.Options) ([]value.Value, error) {
	op := newOperation(opFind, table)
	op.opts = opts
	r, err := p.submit(op)
	return r.Values, err
}

// FindByID enqueues a find_by_id operation.
func (p *Pool) FindByID(ctx context.Context, table string, id value.Value) (value.Value, bool, error) {
	op := newOperation(opFindByID, table)
	op.id = id
	r, err := p.submit(op)
	return r.Value, r.Found, err
}

// Update enqueues an update operation and returns the affected-row count.
func (p *Pool) Update(ctx context.Context, table string, opts query.Options, data value.Value) (int64, error) {
	if fields, _, _ := data.AsObject(); len(fields) == 0 {
		return 0, nil // open question: empty update-data map is a no-op success
	}
	op := newOperation(opUpdate, table)
	op.opts = opts
	op.data = data
	r, err := p.submit(op)
	return r.Affected, err
}

// UpdateByID enqueues an update_by_id operation.
func (p *Pool) UpdateByID(ctx context.Context, table string, id value.Value, data value.Value) (int64, error) {
	if fields, _, _ := data.AsObject(); len(fields) == 0 {
		return 0, nil
	}
	op := newOperation(opUpdateByID, table)
	op.id = id
	op.data = data
	r, err := p.submit(op)
	return r.Affected, err
}

// Delete enqueues a delete operation.
func (p *Pool) Delete(ctx context.Context, table string, opts query.Options) (int64, error) {
	op := newOperation(opDelete, table)
	op.opts = opts
	r, err := p.submit(op)
	return r.Affected, err
}

// DeleteByID enqueues a delete_by_id operation.
func (p *Pool) DeleteByID(ctx context.Context, table string, id value.Value) (int64, error) {
	op := newOperation(opDeleteByID, table)
	op.id = id
	r, err := p.submit(op)
	return r.Affected, err
}

// Count enqueues a count operation.
func (p *Pool) Count(ctx context.Context, table string, opts query.Options) (int64, error) {
	op := newOperation(opCount, table)
	op.opts = opts
	r, err := p.submit(op)
	return r.Affected, err
}

// Exists enqueues an exists operation.
func (p *Pool) Exists(ctx context.Context, table string, opts query.Options) (bool, error) {
	op := newOperation(opExists, table)
	op.opts = opts
	r, err := p.submit(op)
	return r.Found, err
}

// HealthCheck pings a fresh connection dial without consuming a pool slot
// from the steady-state pool, used by the process-wide manager's
// health_check.
func (p *Pool) HealthCheck(ctx context.Context) error {
	conn, err := p.adapter.Connect(ctx)
	if err != nil {
		return &odmerr.ConnectionError{Alias: p.alias, Err: err}
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

// Shutdown closes the operation channel, awaits the worker draining any
// already-enqueued operations, releases all connections, and flushes the
// tier-2 cache.
func (p *Pool) Shutdown(ctx context.Context) {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.ops)
	p.closeMu.Unlock()

	<-p.stopped
	p.conns.closeAll(ctx)
	if p.cache != nil {
		p.cache.Close()
	}
}
