package pool

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/crossdbodm/odm/internal/cache"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/value"
)

// poolTracer emits one span per worker-handled operation.
var poolTracer = otel.Tracer("github.com/crossdbodm/odm/pool")

// poolMetrics holds the OTel instruments shared by every alias's worker:
// a retry counter for ConnectionError retries and a checkout-wait
// histogram for connection acquisition latency.
var poolMetrics struct {
	retryCount  metric.Int64Counter
	checkoutMs  metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/crossdbodm/odm/pool")
	poolMetrics.retryCount, _ = m.Int64Counter("odm.pool.retry_count",
		metric.WithDescription("worker-local ConnectionError retries"),
		metric.WithUnit("{retry}"),
	)
	poolMetrics.checkoutMs, _ = m.Float64Histogram("odm.pool.checkout_wait_ms",
		metric.WithDescription("time spent waiting to acquire a pooled connection"),
		metric.WithUnit("ms"),
	)
}

const maxConnectionRetryElapsed = 10 * time.Second

func newConnectionRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxConnectionRetryElapsed
	return bo
}

// withConnectionRetry retries op only for ConnectionError, per spec: that
// is the sole class subject to automatic worker-local retry.
func (p *Pool) withConnectionRetry(ctx context.Context, op func() error) error {
	attempts := 0
	bo := newConnectionRetryBackoff()
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		var connErr *odmerr.ConnectionError
		if errors.As(err, &connErr) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		poolMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

// run is the single consumer loop: one goroutine per alias, reading
// operations strictly in arrival order. It transitions Running -> Draining
// when the channel closes, then Draining -> Stopped once in-flight work
// (there is none left, since the channel only closes after the last send)
// is accounted for.
func (p *Pool) run(ctx context.Context) {
	defer close(p.stopped)
	for {
		select {
		case op, ok := <-p.ops:
			if !ok {
				p.setState(stateDraining)
				p.setState(stateStopped)
				return
			}
			p.handle(ctx, op)
		case <-ctx.Done():
			p.setState(stateDraining)
			p.drainRemaining(ctx)
			p.setState(stateStopped)
			return
		}
	}
}

// drainRemaining completes operations already enqueued before shutdown so
// backend state stays consistent, per the cancellation semantics.
func (p *Pool) drainRemaining(ctx context.Context) {
	for {
		select {
		case op, ok := <-p.ops:
			if !ok {
				return
			}
			p.handle(context.Background(), op)
		default:
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, op *operation) {
	ctx, span := poolTracer.Start(ctx, "pool."+opName(op.kind),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("odm.alias", p.alias),
			attribute.String("odm.table", op.table),
			attribute.String("odm.backend", p.adapterKind),
		),
	)
	defer span.End()

	if op.kind == opFind || op.kind == opFindByID || op.kind == opCount || op.kind == opExists {
		if cached, ok := p.tryCache(op); ok {
			op.sendReply(cached)
			return
		}
	}

	acquireStart := time.Now()
	conn, err := p.conns.acquire(ctx)
	poolMetrics.checkoutMs.Record(ctx, float64(time.Since(acquireStart).Milliseconds()))
	if err != nil {
		var timeoutErr *odmerr.PoolTimeoutError
		if errors.As(err, &timeoutErr) {
			timeoutErr.Alias = p.alias
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		op.sendReply(Result{Err: err})
		return
	}

	result, adapterErr := p.invokeAdapter(ctx, conn, op)
	suspect := adapterErr != nil && isConnSuspect(adapterErr)
	p.conns.release(ctx, conn, suspect)

	if adapterErr != nil {
		span.RecordError(adapterErr)
		span.SetStatus(codes.Error, adapterErr.Error())
		result.Err = adapterErr
		op.sendReply(result)
		return
	}

	p.updateCache(op, result)
	op.sendReply(result)
}

func isConnSuspect(err error) bool {
	var connErr *odmerr.ConnectionError
	return errors.As(err, &connErr)
}

func opName(k opKind) string {
	switch k {
	case opCreateTable:
		return "create_table"
	case opDropTable:
		return "drop_table"
	case opCreate:
		return "create"
	case opFind:
		return "find"
	case opFindByID:
		return "find_by_id"
	case opUpdate:
		return "update"
	case opUpdateByID:
		return "update_by_id"
	case opDelete:
		return "delete"
	case opDeleteByID:
		return "delete_by_id"
	case opCount:
		return "count"
	case opExists:
		return "exists"
	default:
		return "unknown"
	}
}

// tryCache consults the cache for the four cacheable read kinds. It
// returns ok=false on any miss, disabled cache, or non-cacheable kind.
func (p *Pool) tryCache(op *operation) (Result, bool) {
	if p.cache == nil {
		return Result{}, false
	}
	key, ok := p.cacheKey(op)
	if !ok {
		return Result{}, false
	}
	values, hit := p.cache.Get(key)
	if !hit {
		return Result{}, false
	}
	switch op.kind {
	case opFindByID:
		if len(values) == 0 {
			return Result{Found: false}, true
		}
		return Result{Value: values[0], Found: true}, true
	case opCount:
		if len(values) == 0 {
			return Result{Affected: 0}, true
		}
		n, _ := values[0].AsInt()
		return Result{Affected: n}, true
	case opExists:
		if len(values) == 0 {
			return Result{Affected: 0}, true
		}
		n, _ := values[0].AsInt()
		return Result{Affected: n, Found: n != 0}, true
	default: // opFind
		return Result{Values: values}, true
	}
}

// cacheOpLabel distinguishes Find/Count/Exists within the same (table,
// conditions) fingerprint space — without it, a Find and a Count sharing
// identical conditions alias onto the same cache entry, and the reader
// on the losing side gets the other operation's result shape back.
func cacheOpLabel(kind opKind) string {
	switch kind {
	case opFind:
		return "find"
	case opCount:
		return "count"
	case opExists:
		return "exists"
	default:
		return ""
	}
}

func (p *Pool) cacheKey(op *operation) (cache.Key, bool) {
	switch op.kind {
	case opFindByID:
		return cache.Key{
			SchemaVersion: p.schemaVersion, Table: op.table,
			Kind: cache.KindRecord, Fingerprint: query.RecordFingerprint(op.id.String()),
		}, true
	case opFind, opCount, opExists:
		label := cacheOpLabel(op.kind)
		if op.opts.Groups != nil {
			return cache.Key{
				SchemaVersion: p.schemaVersion, Table: op.table,
				Kind: cache.KindGroups, Fingerprint: label + ":" + query.GroupsFingerprint(*op.opts.Groups, op.opts),
			}, true
		}
		return cache.Key{
			SchemaVersion: p.schemaVersion, Table: op.table,
			Kind: cache.KindQuery, Fingerprint: label + ":" + query.QueryFingerprint(op.opts),
		}, true
	default:
		return cache.Key{}, false
	}
}

// updateCache populates the cache on a successful read and invalidates it
// on a successful write, per the worker algorithm's steps 5-6.
func (p *Pool) updateCache(op *operation, result Result) {
	if p.cache == nil {
		return
	}
	switch op.kind {
	case opFind, opFindByID, opCount, opExists:
		key, ok := p.cacheKey(op)
		if !ok {
			return
		}
		p.cache.Put(key, resultToValues(op.kind, result))
	case opCreate, opUpdate, opUpdateByID, opDelete, opDeleteByID, opDropTable:
		p.cache.InvalidateTableQueries(op.table)
		if id, ok := writeOperationID(op, result); ok {
			p.cache.InvalidateRecord(op.table, query.RecordFingerprint(id.String()))
		}
	}
}

func resultToValues(kind opKind, r Result) []value.Value {
	switch kind {
	case opFindByID:
		if !r.Found {
			return nil
		}
		return []value.Value{r.Value}
	case opCount:
		return []value.Value{value.Int(r.Affected)}
	case opExists:
		n := int64(0)
		if r.Found {
			n = 1
		}
		return []value.Value{value.Int(n)}
	default:
		return r.Values
	}
}

// writeOperationID reports the ID a write targeted, so the worker can
// invalidate that record's cache entry specifically.
func writeOperationID(op *operation, result Result) (value.Value, bool) {
	switch op.kind {
	case opUpdateByID, opDeleteByID:
		return op.id, true
	case opCreate:
		id, ok := result.Value.Get("id")
		return id, ok && !id.IsNull()
	default:
		return value.Value{}, false
	}
}
