package monitor

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type WorkloadStats struct {
	LookupCount uint64
	HitCount    uint64
	LoadCount   uint64

	registry   *prometheus.Registry
	lookups    *prometheus.CounterVec
	loads      *prometheus.CounterVec
	records    prometheus.Gauge
	treeHeight prometheus.Gauge
}

func NewWorkloadStats() *WorkloadStats {
	ws := &WorkloadStats{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_lookups_total",
			Help: "Course lookups by result (hit, miss).",
		}, []string{"result"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_loads_total",
			Help: "Catalog loads by result (ok, error).",
		}, []string{"result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_records",
			Help: "Records in the current index.",
		}),
		treeHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_tree_height",
			Help: "Longest root-to-leaf path of the current index, 0 when not tracked.",
		}),
	}
	ws.registry.MustRegister(ws.lookups, ws.loads, ws.records, ws.treeHeight)
	// pre-create label values so they are exported at zero
	for _, r := range []string{"hit", "miss"} {
		ws.lookups.WithLabelValues(r)
	}
	for _, r := range []string{"ok", "error"} {
		ws.loads.WithLabelValues(r)
	}
	return ws
}

func (ws *WorkloadStats) RecordLookup(hit bool) {
	atomic.AddUint64(&ws.LookupCount, 1)
	if hit {
		atomic.AddUint64(&ws.HitCount, 1)
		ws.lookups.WithLabelValues("hit").Inc()
		return
	}
	ws.lookups.WithLabelValues("miss").Inc()
}

// RecordLoad counts a load attempt by outcome.
func (ws *WorkloadStats) RecordLoad(err error) {
	if err != nil {
		ws.loads.WithLabelValues("error").Inc()
		return
	}
	atomic.AddUint64(&ws.LoadCount, 1)
	ws.loads.WithLabelValues("ok").Inc()
}

// RecordIndex describes the index that was just published, whether or not
// its load reported an error.
func (ws *WorkloadStats) RecordIndex(records, height int) {
	ws.records.Set(float64(records))
	ws.treeHeight.Set(float64(height))
}

func (ws *WorkloadStats) GetHitRatio() float64 {
	lookups := atomic.LoadUint64(&ws.LookupCount)
	hits := atomic.LoadUint64(&ws.HitCount)

	if lookups == 0 {
		return 0.0
	}
	return float64(hits) / float64(lookups)
}

// Registry holds only this instance's collectors, so several catalogs in
// one process never collide on registration.
func (ws *WorkloadStats) Registry() *prometheus.Registry {
	return ws.registry
}
