package motion

import "math"

// GyroConfig holds the tunable parameters of a GyroTracker.
type GyroConfig struct {
	GyroGain float64
	Friction float64
}

// DefaultGyroConfig returns the tuning defaults used by the original
// implementation this pipeline was distilled from.
func DefaultGyroConfig() GyroConfig {
	return GyroConfig{GyroGain: 0.7, Friction: 0.86}
}

// GyroTracker converts rotation-rate samples into pixel deltas via damped
// integration. Same skeleton as AccelTracker minus the high-pass/deadzone/
// start stages. See spec.md §4.2.
type GyroTracker struct {
	cfg      GyroConfig
	vx, vy   float64
	lastTSMs *float64
}

// NewGyroTracker creates a tracker with the given configuration.
func NewGyroTracker(cfg GyroConfig) *GyroTracker {
	return &GyroTracker{cfg: cfg}
}

// Reset clears all filter state.
func (t *GyroTracker) Reset() {
	t.vx, t.vy = 0, 0
	t.lastTSMs = nil
}

// ProcessSample advances the filter by one inertial sample.
func (t *GyroTracker) ProcessSample(s ImuSample) MotionDelta {
	if s.TSMs == nil || s.GY == nil || s.GZ == nil {
		return invalidDelta(0)
	}
	tsMs, gy, gz := *s.TSMs, *s.GY, *s.GZ

	if t.lastTSMs == nil {
		t.lastTSMs = &tsMs
		return invalidDelta(tsMs)
	}

	dt := (tsMs - *t.lastTSMs) / 1000.0
	t.lastTSMs = &tsMs
	if dt <= 0 || dt > 0.2 {
		return invalidDelta(tsMs)
	}

	prevVX, prevVY := t.vx, t.vy
	t.vx = t.vx*t.cfg.Friction + gz*dt*t.cfg.GyroGain
	t.vy = t.vy*t.cfg.Friction + gy*dt*t.cfg.GyroGain

	if prevVX != 0 && math.Signbit(prevVX) != math.Signbit(t.vx) {
		t.vx = 0
	}
	if prevVY != 0 && math.Signbit(prevVY) != math.Signbit(t.vy) {
		t.vy = 0
	}

	return MotionDelta{DX: t.vx * dt, DY: t.vy * dt, TSMs: tsMs, Valid: true}
}
