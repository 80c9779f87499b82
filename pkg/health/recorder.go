package health

import (
	"context"
	"time"

	"github.com/0xmhha/agentpulse/pkg/cache"
	"github.com/0xmhha/agentpulse/pkg/logger"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 5 * time.Minute

// Config contains recorder configuration.
type Config struct {
	// Interval between recorded snapshots. Default: 5m.
	Interval time.Duration

	// Capacity of the history ring. Default: 288.
	Capacity int

	// Now overrides the clock, mainly for tests.
	Now cache.Clock
}

// Recorder samples the host periodically into a Ring.
type Recorder struct {
	config  Config
	sampler Sampler
	ring    *Ring
	logger  logger.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg Config, s Sampler, log logger.Logger) *Recorder {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Recorder{
		config:  cfg,
		sampler: s,
		ring:    NewRing(cfg.Capacity),
		logger:  log,
	}
}

// Run records one snapshot immediately and then one per interval until ctx
// is done.
func (r *Recorder) Run(ctx context.Context) {
	r.Record()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Debug("health recorder started", "interval", r.config.Interval, "capacity", r.ring.Cap())

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("health recorder stopped", "snapshots", r.ring.Len())
			return
		case <-ticker.C:
			r.Record()
		}
	}
}

// Record samples once and appends the snapshot to the history.
func (r *Recorder) Record() Snapshot {
	s := r.Current()
	r.ring.Push(s)
	return s
}

// Current samples a fresh snapshot without recording it.
func (r *Recorder) Current() Snapshot {
	s := r.sampler.Sample()
	s.Timestamp = r.config.Now()
	return s
}

// History returns the recorded snapshots, oldest first.
func (r *Recorder) History() []Snapshot {
	return r.ring.Snapshots()
}

// Host returns static host facts.
func (r *Recorder) Host() HostInfo {
	return r.sampler.Host()
}
