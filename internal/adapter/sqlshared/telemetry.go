package sqlshared

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry is the per-backend OTel tracer plus an error counter, grounded
// on the teacher's doltTracer/doltMetrics pattern in
// internal/storage/dolt/store.go: one span per database/sql call, attributes
// naming the system/operation/truncated statement.
type Telemetry struct {
	tracer   trace.Tracer
	backend  string
	errCount metric.Int64Counter
}

// NewTelemetry builds the tracer/meter pair for one backend name ("sqlite",
// "postgres", "mysql").
func NewTelemetry(backend string) Telemetry {
	t := Telemetry{
		tracer:  otel.Tracer("github.com/crossdbodm/odm/adapter/" + backend),
		backend: backend,
	}
	m := otel.Meter("github.com/crossdbodm/odm/adapter/" + backend)
	t.errCount, _ = m.Int64Counter("odm.adapter.errors",
		metric.WithDescription("adapter operation errors, by backend"),
		metric.WithUnit("{error}"),
	)
	return t
}

func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

func (t Telemetry) start(ctx context.Context, op, sqlText string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, t.backend+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.backend),
			attribute.String("db.operation", op),
			attribute.String("db.statement", spanSQL(sqlText)),
		),
	)
}

func (t Telemetry) end(ctx context.Context, span trace.Span, err error) {
	if err != nil {
		t.errCount.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Exec runs conn.ExecContext under a traced span.
func (t Telemetry) Exec(ctx context.Context, conn *sql.Conn, op, sqlText string, args []interface{}) (sql.Result, error) {
	ctx, span := t.start(ctx, op, sqlText)
	res, err := conn.ExecContext(ctx, sqlText, args...)
	t.end(ctx, span, err)
	return res, err
}

// Query runs conn.QueryContext under a traced span.
func (t Telemetry) Query(ctx context.Context, conn *sql.Conn, op, sqlText string, args []interface{}) (*sql.Rows, error) {
	ctx, span := t.start(ctx, op, sqlText)
	rows, err := conn.QueryContext(ctx, sqlText, args...)
	t.end(ctx, span, err)
	return rows, err
}

// QueryRow runs conn.QueryRowContext under a traced span, handing the row to
// scan for the caller to Scan() into destinations.
func (t Telemetry) QueryRow(ctx context.Context, conn *sql.Conn, op, sqlText string, args []interface{}, scan func(*sql.Row) error) error {
	ctx, span := t.start(ctx, op, sqlText)
	err := scan(conn.QueryRowContext(ctx, sqlText, args...))
	t.end(ctx, span, err)
	return err
}
