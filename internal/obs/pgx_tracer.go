package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type queryKey struct{}

type queryState struct {
	span      trace.Span
	operation string
	start     time.Time
}

// PGXTracer creates a span per query and, when Duration is set, observes the
// query latency in milliseconds labelled by SQL verb.
type PGXTracer struct {
	Duration *prometheus.HistogramVec
}

// NewPGXTracer registers the query duration histogram on reg.
func NewPGXTracer(namespace string, reg prometheus.Registerer) *PGXTracer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	t := &PGXTracer{Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_ms",
		Help:      "Postgres query latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 1000},
	}, []string{"operation"})}
	registerOrReuse(reg, &t.Duration)
	return t
}

func (t *PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlVerb(data.SQL)
	ctx, span := otel.Tracer("kitstore/pgx").Start(ctx, "pgx."+strings.ToLower(op))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	return context.WithValue(ctx, queryKey{}, queryState{span: span, operation: op, start: time.Now()})
}

func (t *PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	state, ok := ctx.Value(queryKey{}).(queryState)
	if !ok {
		return
	}
	if data.Err != nil {
		state.span.RecordError(data.Err)
		state.span.SetStatus(codes.Error, "query failed")
	}
	state.span.End()
	if t.Duration != nil {
		t.Duration.WithLabelValues(state.operation).Observe(DurationMillis(time.Since(state.start)))
	}
}

func sqlVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
