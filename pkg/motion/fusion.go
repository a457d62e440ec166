package motion

// Source name constants for the accumulator / fusion priority order.
const (
	SourceCamera      = "camera"
	SourceDelta       = "delta"
	SourceAccel       = "accel"
	SourceGyro        = "gyro"
	SourceOrientation = "orientation"
)

var imuSources = map[string]bool{SourceAccel: true, SourceGyro: true, SourceOrientation: true}
var authoritativeSources = map[string]bool{SourceCamera: true, SourceDelta: true}

// fusionPriority is the fixed source priority used to pick the primary
// candidate each tick: camera > delta > accel > orientation > gyro.
var fusionPriority = []string{SourceCamera, SourceDelta, SourceAccel, SourceOrientation, SourceGyro}

// FusionConfig holds the tunable parameters of ComputeRawDelta. See
// spec.md §4.6 and §6 (the `fusion` config sub-object).
type FusionConfig struct {
	CameraGateEnabled                 bool
	CameraMaxAgeMs                    float64
	CameraStillPx                     float64
	CameraValidatorMinPx              float64
	ImuMinPxWhenCameraStill           float64
	ImuOppositeMaxPxWhenCameraStill   float64
	MaxAngleDeg                       float64
	MinMag                            float64
	WeakFallbackScale                 float64
}

// DefaultFusionConfig returns the tuning defaults from spec.md §4.6.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		CameraGateEnabled:               true,
		CameraMaxAgeMs:                  250.0,
		CameraStillPx:                   0.35,
		CameraValidatorMinPx:            0.75,
		ImuMinPxWhenCameraStill:         2.5,
		ImuOppositeMaxPxWhenCameraStill: 6.0,
		MaxAngleDeg:                     40.0,
		MinMag:                          0.01,
		WeakFallbackScale:               0.35,
	}
}

func (cfg FusionConfig) consensusConfig() ConsensusConfig {
	return ConsensusConfig{MaxAgeMs: cfg.CameraMaxAgeMs, MinMag: cfg.MinMag, MaxAngleDeg: cfg.MaxAngleDeg}
}

// ComputeRawDelta arbitrates the accumulated per-source deltas for one tick
// into a single (dx, dy). pendingOrder records the insertion order of
// pending (as produced by Accumulator.Drain) and is consulted only when no
// source matches the fixed priority list. See spec.md §4.6 for the full
// algorithm.
func ComputeRawDelta(
	pending map[string][2]float64,
	pendingOrder []string,
	enabled map[string]bool,
	lastMotion map[string]MotionDelta,
	lastOut [2]float64,
	nowMs float64,
	cfg FusionConfig,
) (float64, float64) {
	motions := make(map[string]MotionDelta, len(pending))
	var order []string
	for _, source := range pendingOrder {
		d, ok := pending[source]
		if !ok || (d[0] == 0 && d[1] == 0) || !finite(d[0], d[1]) {
			continue
		}
		motions[source] = MotionDelta{DX: d[0], DY: d[1], TSMs: nowMs, Valid: true}
		order = append(order, source)
	}
	if len(motions) == 0 {
		return 0, 0
	}

	primarySource := ""
	for _, s := range fusionPriority {
		if _, ok := motions[s]; ok {
			primarySource = s
			break
		}
	}
	if primarySource == "" {
		primarySource = order[0]
	}
	primary := motions[primarySource]

	if primarySource == SourceCamera && !enabled[SourceCamera] {
		return 0, 0
	}
	if imuSources[primarySource] && !enabled[primarySource] {
		return 0, 0
	}

	if authoritativeSources[primarySource] {
		return primary.DX, primary.DY
	}

	// Camera stillness veto: even on ticks where the camera contributed no
	// pending delta, a fresh "still" camera reading can suppress IMU
	// bounce-back at the end of a stroke.
	var cam *MotionDelta
	if enabled[SourceCamera] {
		if c, ok := lastMotion[SourceCamera]; ok {
			cam = &c
		}
	}
	camFresh := cfg.CameraGateEnabled && cam != nil && cam.Valid &&
		nowMs-cam.TSMs >= 0 && nowMs-cam.TSMs <= cfg.CameraMaxAgeMs

	if camFresh && imuSources[primarySource] {
		camMag := Mag(cam.DX, cam.DY)
		if camMag <= cfg.CameraStillPx {
			imuMag := Mag(primary.DX, primary.DY)
			prevDX, prevDY := lastOut[0], lastOut[1]
			oppositePrev := (prevDX != 0 || prevDY != 0) && (primary.DX*prevDX+primary.DY*prevDY) < 0
			if imuMag <= cfg.ImuMinPxWhenCameraStill {
				return 0, 0
			}
			if oppositePrev && imuMag <= cfg.ImuOppositeMaxPxWhenCameraStill {
				return 0, 0
			}
		}
	}

	validators := make([]MotionDelta, 0, len(motions))
	for s, v := range motions {
		if s != primarySource {
			validators = append(validators, v)
		}
	}
	camIsValidator := false
	if camFresh {
		if _, inMotions := motions[SourceCamera]; !inMotions && Mag(cam.DX, cam.DY) >= cfg.CameraValidatorMinPx {
			validators = append(validators, *cam)
			camIsValidator = true
		}
	}

	switch {
	case len(validators) >= 2:
		vote := MajorityValidateDirection(primary, validators, cfg.consensusConfig())
		if !vote.OK {
			return 0, 0
		}
		return primary.DX, primary.DY

	case len(validators) == 1:
		vote := MajorityValidateDirection(primary, validators, cfg.consensusConfig())
		if vote.OK {
			return primary.DX, primary.DY
		}
		// A disagreeing fresh camera is the strongest anti-bounce veto: prefer
		// a hard reject over a weak fallback.
		if camFresh && camIsValidator {
			return 0, 0
		}
		prevDX, prevDY := lastOut[0], lastOut[1]
		if prevDX == 0 && prevDY == 0 {
			return primary.DX * cfg.WeakFallbackScale, primary.DY * cfg.WeakFallbackScale
		}
		prev := MotionDelta{DX: prevDX, DY: prevDY, TSMs: nowMs, Valid: true}
		tieCfg := cfg.consensusConfig()
		tieCfg.MaxAgeMs = 10_000.0
		tie := MajorityValidateDirection(primary, []MotionDelta{prev}, tieCfg)
		if tie.OK {
			return primary.DX, primary.DY
		}
		return primary.DX * cfg.WeakFallbackScale, primary.DY * cfg.WeakFallbackScale

	default:
		return primary.DX, primary.DY
	}
}
