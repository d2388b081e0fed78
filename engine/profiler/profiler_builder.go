package profiler

import "time"

// ProfilerBuilderOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a Report is logged. Non-positive values keep the 1 second default.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option to a Profiler
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithMemStats enables or disables reading runtime memory statistics at each report. Enabled by default.
func WithMemStats(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}
