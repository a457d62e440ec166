package motion

import "math"

// AxisSigns scales a rotated delta's components. The default {1, 1} is the
// identity; individual sources apply their own device-specific correction
// (see Rotate callers in pkg/session) rather than hard-coding signs here,
// per spec.md §9's open question on axis conventions.
type AxisSigns struct {
	X float64
	Y float64
}

// IdentityAxisSigns is the no-op axis correction.
func IdentityAxisSigns() AxisSigns { return AxisSigns{X: 1, Y: 1} }

// Rotate rotates delta by screenAngleDeg (mod 360) around the origin,
// special-casing the cardinal rotations with integer sign swaps and falling
// back to trigonometry for arbitrary angles. See spec.md §4.9.
func Rotate(delta MotionDelta, screenAngleDeg int) MotionDelta {
	if !delta.Valid {
		return delta
	}
	angle := ((screenAngleDeg % 360) + 360) % 360
	if angle == 0 {
		return delta
	}

	dx, dy := delta.DX, delta.DY
	switch angle {
	case 90:
		dx, dy = -dy, dx
	case 180:
		dx, dy = -dx, -dy
	case 270:
		dx, dy = dy, -dx
	default:
		rad := float64(angle) * math.Pi / 180.0
		cosA, sinA := math.Cos(rad), math.Sin(rad)
		dx, dy = dx*cosA-dy*sinA, dx*sinA+dy*cosA
	}
	return MotionDelta{DX: dx, DY: dy, TSMs: delta.TSMs, Valid: delta.Valid}
}

// ApplyAxisSigns multiplies a rotated delta's components by signs. Used
// after Rotate to apply a per-source, device-specific sign correction (the
// accel channel negates dx by default; see DESIGN.md's Open Question
// decision).
func ApplyAxisSigns(delta MotionDelta, signs AxisSigns) MotionDelta {
	if !delta.Valid {
		return delta
	}
	return MotionDelta{DX: delta.DX * signs.X, DY: delta.DY * signs.Y, TSMs: delta.TSMs, Valid: delta.Valid}
}

// DefaultAccelAxisSigns is the accel-channel default: x negated, y passed
// through (empirically-derived axis alignment so tilting right yields +x
// cursor motion).
func DefaultAccelAxisSigns() AxisSigns { return AxisSigns{X: -1, Y: 1} }
