package pool

import (
	"context"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/idgen"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// invokeAdapter performs step 4 of the worker algorithm: invoke the
// adapter with the acquired connection and the operation's parameters.
// ConnectionError results are retried worker-locally per
// withConnectionRetry; every other error surfaces immediately.
func (p *Pool) invokeAdapter(ctx context.Context, conn *pooledConn, op *operation) (Result, error) {
	var result Result
	err := p.withConnectionRetry(ctx, func() error {
		var innerErr error
		result, innerErr = p.dispatch(ctx, conn, op)
		return innerErr
	})
	return result, err
}

func (p *Pool) dispatch(ctx context.Context, conn *pooledConn, op *operation) (Result, error) {
	native := conn.native
	switch op.kind {
	case opCreateTable:
		if err := p.adapter.CreateTable(ctx, native, op.table, op.schema); err != nil {
			return Result{}, err
		}
		p.schemas[op.table] = op.schema
		return Result{}, nil
	case opDropTable:
		if err := p.adapter.DropTable(ctx, native, op.table); err != nil {
			return Result{}, err
		}
		delete(p.schemas, op.table)
		return Result{}, nil
	case opCreate:
		record, err := p.withGeneratedID(op.record)
		if err != nil {
			return Result{}, err
		}
		if s, known := p.schemas[op.table]; known {
			if err := schema.ValidateRecord(s, record); err != nil {
				return Result{}, err
			}
		}
		stored, err := p.adapter.Create(ctx, native, op.table, record)
		return Result{Value: stored}, err
	case opFind:
		opts := op.opts
		values, err := p.adapter.Find(ctx, native, op.table, opts.Effective(), adapter.FindOptions{
			Sort: opts.Sort, Pagination: opts.Pagination, Fields: opts.Fields,
		})
		return Result{Values: values}, err
	case opFindByID:
		v, found, err := p.adapter.FindByID(ctx, native, op.table, op.id)
		return Result{Value: v, Found: found}, err
	case opUpdate:
		if s, known := p.schemas[op.table]; known {
			if err := schema.ValidatePartial(s, op.data); err != nil {
				return Result{}, err
			}
		}
		n, err := p.adapter.Update(ctx, native, op.table, op.opts.Effective(), op.data)
		return Result{Affected: n}, err
	case opUpdateByID:
		if s, known := p.schemas[op.table]; known {
			if err := schema.ValidatePartial(s, op.data); err != nil {
				return Result{}, err
			}
		}
		n, err := p.adapter.UpdateByID(ctx, native, op.table, op.id, op.data)
		return Result{Affected: n}, err
	case opDelete:
		n, err := p.adapter.Delete(ctx, native, op.table, op.opts.Effective())
		return Result{Affected: n}, err
	case opDeleteByID:
		n, err := p.adapter.DeleteByID(ctx, native, op.table, op.id)
		return Result{Affected: n}, err
	case opCount:
		n, err := p.adapter.Count(ctx, native, op.table, op.opts.Effective())
		return Result{Affected: n}, err
	case opExists:
		found, err := p.adapter.Exists(ctx, native, op.table, op.opts.Effective())
		return Result{Found: found}, err
	default:
		return Result{}, nil
	}
}

// withGeneratedID fills in the "id" field of record when the generator's
// NeedsGeneration trigger fires, leaving the record untouched otherwise
// (the opaque12/document-store delegation case relies on Generate
// returning Null, which this still writes — the adapter overwrites it with
// the backend-assigned ObjectID on the way back out).
func (p *Pool) withGeneratedID(record value.Value) (value.Value, error) {
	fields, order, _ := record.AsObject()
	existing, present := fields["id"]
	needsGen := idgen.NeedsGeneration(existing, present)
	if !needsGen && present {
		if rg, ok := p.idGen.(idgen.Regenerator); ok {
			needsGen = rg.NeedsRegeneration(existing)
		}
	}
	if !needsGen {
		return record, nil
	}
	id, err := p.idGen.Generate()
	if err != nil {
		return value.Value{}, err
	}
	newFields := make(map[string]value.Value, len(fields)+1)
	for k, v := range fields {
		newFields[k] = v
	}
	newFields["id"] = id
	newOrder := order
	if !present {
		newOrder = append(append([]string(nil), order...), "id")
	}
	return value.Object(newFields, newOrder), nil
}
