package main

import "sync/atomic"

type sinkMetrics struct {
	publishErrors atomic.Uint64
	rawLogErrors  atomic.Uint64
	seriesErrors  atomic.Uint64
}

func (m *sinkMetrics) snapshot() map[string]any {
	return map[string]any{
		"publish_errors_total": m.publishErrors.Load(),
		"rawlog_errors_total":  m.rawLogErrors.Load(),
		"series_errors_total":  m.seriesErrors.Load(),
	}
}
