package health

import "time"

// Tracker records the process start instant once and derives uptime from
// it. Constructed at startup and injected; never ambient.
type Tracker struct {
	start time.Time
}

// StartTracker captures the current instant as the process start.
func StartTracker() *Tracker {
	return &Tracker{start: time.Now().UTC()}
}

// StartedAt returns the recorded start instant.
func (t *Tracker) StartedAt() time.Time {
	return t.start
}

// UptimeSeconds returns whole seconds elapsed since start.
func (t *Tracker) UptimeSeconds() int64 {
	return int64(time.Since(t.start).Seconds())
}
