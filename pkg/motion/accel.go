package motion

import "math"

// AccelConfig holds the tunable parameters of an AccelTracker. All effects
// are enumerated in spec.md §4.1.
type AccelConfig struct {
	// AccelGain scales integrated velocity.
	AccelGain float64
	// Friction damps velocity per sample, in [0,1].
	Friction float64
	// HPTauS is the high-pass time constant in seconds; 0 disables the filter.
	HPTauS float64
	// DeadzoneMPS2 ignores acceleration magnitudes below this threshold.
	DeadzoneMPS2 float64
	// StartMPS2 is the magnitude required to start moving from rest.
	StartMPS2 float64
}

// DefaultAccelConfig returns the tuning defaults from spec.md §4.1.
func DefaultAccelConfig() AccelConfig {
	return AccelConfig{
		AccelGain:    50.0,
		Friction:     0.8,
		HPTauS:       0.35,
		DeadzoneMPS2: 0.08,
		StartMPS2:    0.22,
	}
}

// AccelTracker converts linear-acceleration samples into pixel deltas via a
// high-pass filter followed by damped integration. See spec.md §4.1.
type AccelTracker struct {
	cfg AccelConfig

	vx, vy         float64
	lastTSMs       *float64
	prevAX, prevAY *float64
	hpAX, hpAY     float64
}

// NewAccelTracker creates a tracker with the given configuration.
func NewAccelTracker(cfg AccelConfig) *AccelTracker {
	return &AccelTracker{cfg: cfg}
}

// Reset clears all filter state.
func (t *AccelTracker) Reset() {
	t.vx, t.vy = 0, 0
	t.lastTSMs = nil
	t.prevAX, t.prevAY = nil, nil
	t.hpAX, t.hpAY = 0, 0
}

// ProcessSample advances the filter by one inertial sample.
func (t *AccelTracker) ProcessSample(s ImuSample) MotionDelta {
	if s.TSMs == nil || s.AX == nil || s.AY == nil {
		return invalidDelta(0)
	}
	tsMs, ax, ay := *s.TSMs, *s.AX, *s.AY

	if t.lastTSMs == nil {
		t.lastTSMs = &tsMs
		t.prevAX, t.prevAY = &ax, &ay
		return invalidDelta(tsMs)
	}

	dt := (tsMs - *t.lastTSMs) / 1000.0
	t.lastTSMs = &tsMs
	if dt <= 0 || dt > 0.2 {
		t.vx, t.vy = 0, 0
		t.prevAX, t.prevAY = &ax, &ay
		t.hpAX, t.hpAY = 0, 0
		return invalidDelta(tsMs)
	}

	if t.prevAX == nil || t.prevAY == nil {
		t.prevAX, t.prevAY = &ax, &ay
		return invalidDelta(tsMs)
	}

	axIn, ayIn := ax, ay
	if t.cfg.HPTauS > 0 {
		alpha := t.cfg.HPTauS / (t.cfg.HPTauS + dt)
		t.hpAX = alpha * (t.hpAX + ax - *t.prevAX)
		t.hpAY = alpha * (t.hpAY + ay - *t.prevAY)
		axIn, ayIn = t.hpAX, t.hpAY
	}
	t.prevAX, t.prevAY = &ax, &ay

	if t.cfg.DeadzoneMPS2 > 0 && Mag(axIn, ayIn) < t.cfg.DeadzoneMPS2 {
		axIn, ayIn = 0, 0
	}

	// Prevents bounce-back: once velocity has settled to zero, noise must
	// cross a real motion threshold before restarting motion.
	if t.vx == 0 && t.vy == 0 && t.cfg.StartMPS2 > 0 && Mag(axIn, ayIn) < t.cfg.StartMPS2 {
		axIn, ayIn = 0, 0
	}

	prevVX, prevVY := t.vx, t.vy
	t.vx = t.vx*t.cfg.Friction + axIn*dt*t.cfg.AccelGain
	t.vy = t.vy*t.cfg.Friction + ayIn*dt*t.cfg.AccelGain

	// Zero-crossing clamp: don't let friction alone ring the velocity
	// estimate past zero into a spurious reversal.
	if prevVX != 0 && math.Signbit(prevVX) != math.Signbit(t.vx) {
		t.vx = 0
	}
	if prevVY != 0 && math.Signbit(prevVY) != math.Signbit(t.vy) {
		t.vy = 0
	}

	return MotionDelta{DX: t.vx * dt, DY: t.vy * dt, TSMs: tsMs, Valid: true}
}
