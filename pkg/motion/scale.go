package motion

// moveScales converts each tracker's native output units into mouse-space
// pixels-per-tick before accumulation. Calibrated empirically per source.
var moveScales = map[string]float64{
	SourceCamera:      4.0,
	SourceAccel:       220.0,
	SourceGyro:        18.0,
	SourceOrientation: 4.0,
}

// ScaleMove applies the source's move scale to a rotated/sign-corrected
// delta, returning mouse-space (dx, dy). Unknown sources pass through
// unscaled.
func ScaleMove(source string, delta MotionDelta) (float64, float64) {
	scale, ok := moveScales[source]
	if !ok {
		scale = 1.0
	}
	return delta.DX * scale, delta.DY * scale
}
