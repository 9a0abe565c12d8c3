// Package metrics provides Prometheus metrics for pgkit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

// UpsertMetrics counts upsert chunks and rows. It implements upsert.Observer.
type UpsertMetrics struct {
	ChunksTotal *prometheus.CounterVec
	RowsTotal   *prometheus.CounterVec
	ChunkSize   prometheus.Histogram
}

// NewUpsertMetrics creates the collectors and registers them with reg.
// A nil reg skips registration, which keeps tests independent.
func NewUpsertMetrics(reg prometheus.Registerer) *UpsertMetrics {
	m := &UpsertMetrics{
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgkit_upsert_chunks_total",
				Help: "Total number of upsert chunk statements",
			},
			[]string{"table", "result"},
		),
		RowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgkit_upsert_rows_total",
				Help: "Total number of upserted rows by outcome",
			},
			[]string{"table", "status"},
		),
		ChunkSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pgkit_upsert_chunk_rows",
				Help:    "Number of input records per chunk",
				Buckets: prometheus.ExponentialBuckets(1, 4, 7),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ChunksTotal, m.RowsTotal, m.ChunkSize)
	}
	return m
}

// ObserveChunk records one finished chunk.
func (m *UpsertMetrics) ObserveChunk(table string, res upsert.ChunkResult) {
	m.ChunkSize.Observe(float64(res.Size))

	if res.Err != nil {
		m.ChunksTotal.WithLabelValues(table, "error").Inc()
		m.RowsTotal.WithLabelValues(table, "failed").Add(float64(res.Size))
		return
	}
	m.ChunksTotal.WithLabelValues(table, "ok").Inc()

	for _, row := range res.Rows {
		status := string(row.Status)
		if status == "" {
			status = "written"
		}
		m.RowsTotal.WithLabelValues(table, status).Inc()
	}
}
