package ingest

import "sync"

// RunLog keeps the most recent report per run kind for the status API.
type RunLog struct {
	mu      sync.RWMutex
	reports map[string]RunReport
}

// NewRunLog returns an empty log.
func NewRunLog() *RunLog {
	return &RunLog{reports: make(map[string]RunReport)}
}

// Record stores the latest report for kind ("schedules" or "boxscores").
func (l *RunLog) Record(kind string, r RunReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports[kind] = r
}

// Latest returns the most recent reports keyed by run kind.
func (l *RunLog) Latest() map[string]RunReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]RunReport, len(l.reports))
	for k, v := range l.reports {
		out[k] = v
	}
	return out
}
