package telemetry

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttrDBState labels pool connection gauges.
var AttrDBState = attribute.Key("db.state")

// PoolStatsFunc returns the current connection pool statistics.
type PoolStatsFunc func() sql.DBStats

// RegisterDBPoolMetrics exposes the connection pool as observable gauges.
// Values are read on every collection, so no background goroutine is needed.
// Unregister the returned registration on shutdown.
func RegisterDBPoolMetrics(meter metric.Meter, stats PoolStatsFunc) (metric.Registration, error) {
	connections, err := meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	maxConnections, err := meter.Int64ObservableGauge(
		"db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	waitCount, err := meter.Int64ObservableCounter(
		"db_pool_wait_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(maxConnections, int64(s.MaxOpenConnections))
		o.ObserveInt64(connections, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(connections, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(connections, int64(s.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(waitCount, s.WaitCount)
		return nil
	}, connections, maxConnections, waitCount)
}
