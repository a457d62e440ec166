package motion

// OrientationConfig holds the tunable parameters of an OrientationTracker.
type OrientationConfig struct {
	Gain     float64
	Friction float64
}

// DefaultOrientationConfig returns the tuning defaults used by the original
// implementation this pipeline was distilled from.
func DefaultOrientationConfig() OrientationConfig {
	return OrientationConfig{Gain: 0.9, Friction: 0.9}
}

// OrientationTracker converts absolute Euler-angle samples (beta, gamma, in
// degrees) into pixel deltas via angle-wrapped differencing. See spec.md
// §4.3.
type OrientationTracker struct {
	cfg                  OrientationConfig
	vx, vy               float64
	lastTSMs             *float64
	lastBeta, lastGamma  *float64
}

// NewOrientationTracker creates a tracker with the given configuration.
func NewOrientationTracker(cfg OrientationConfig) *OrientationTracker {
	return &OrientationTracker{cfg: cfg}
}

// Reset clears all filter state.
func (t *OrientationTracker) Reset() {
	t.vx, t.vy = 0, 0
	t.lastTSMs = nil
	t.lastBeta, t.lastGamma = nil, nil
}

// wrapDeg wraps an angle delta into [-180, 180).
func wrapDeg(delta float64) float64 {
	w := mod(delta+180.0, 360.0) - 180.0
	return w
}

// mod is a floating-point modulo matching Python's `%` (result takes the
// sign of the divisor), unlike Go's math.Mod which takes the sign of the
// dividend.
func mod(a, b float64) float64 {
	r := a - b*float64(int(a/b))
	if r < 0 && b > 0 {
		r += b
	}
	return r
}

// ProcessSample advances the filter by one orientation sample.
func (t *OrientationTracker) ProcessSample(s ImuSample) MotionDelta {
	if s.TSMs == nil || s.Beta == nil || s.Gamma == nil {
		return invalidDelta(0)
	}
	tsMs, beta, gamma := *s.TSMs, *s.Beta, *s.Gamma

	if t.lastTSMs == nil || t.lastBeta == nil || t.lastGamma == nil {
		t.lastTSMs = &tsMs
		t.lastBeta, t.lastGamma = &beta, &gamma
		return invalidDelta(tsMs)
	}

	dt := (tsMs - *t.lastTSMs) / 1000.0
	t.lastTSMs = &tsMs
	if dt <= 0 || dt > 0.2 {
		t.lastBeta, t.lastGamma = &beta, &gamma
		return invalidDelta(tsMs)
	}

	dBeta := wrapDeg(beta - *t.lastBeta)
	dGamma := wrapDeg(gamma - *t.lastGamma)
	t.lastBeta, t.lastGamma = &beta, &gamma

	t.vx = t.vx*t.cfg.Friction + dGamma*t.cfg.Gain
	t.vy = t.vy*t.cfg.Friction + dBeta*t.cfg.Gain

	// Angles are already differenced; no further dt multiplication.
	return MotionDelta{DX: t.vx, DY: t.vy, TSMs: tsMs, Valid: true}
}
