// Package metrics exposes daemon and worker statistics to Prometheus.
//
// Metrics implements daemon.Observer and worker.Observer, so one value
// can be handed to both configs:
//
//	m := metrics.New()
//	wcfg.Observer = m
//	dcfg.Observer = m
//	http.Handle("/metrics", m.Handler())
package metrics
