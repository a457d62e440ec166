// Package session ties one connected phone's protocol traffic to its own
// motion pipeline: per-source trackers, the accumulator, fusion tuning,
// and the smoother, plus the dispatch of parsed client messages onto that
// state. See pkg/transport for the wire format and pkg/motion for the
// pipeline itself.
package session

import (
	"log"
	"math"
	"sync"

	"github.com/tiltmouse/tiltmouse-server/internal/config"
	"github.com/tiltmouse/tiltmouse-server/pkg/inputsink"
	"github.com/tiltmouse/tiltmouse-server/pkg/motion"
	"github.com/tiltmouse/tiltmouse-server/pkg/transport"
)

// defaultEnabled is the source enable set a new session starts with:
// accel only, matching a bare phone tilt-to-move experience until the
// client opts into camera/gyro/orientation via a config message.
var defaultEnabled = map[string]bool{
	motion.SourceCamera:      false,
	motion.SourceAccel:       true,
	motion.SourceGyro:        false,
	motion.SourceOrientation: false,
}

// Session holds all per-connection motion-pipeline state. A Session is
// driven by two goroutines: the transport read-loop (which calls the
// Handle* methods) and the motion.MotionLoop goroutine (which calls the
// motion.TickSource methods). State shared between them is mutex-guarded
// or, for the accumulator, owned entirely by motion.Accumulator.
type Session struct {
	sink inputsink.Sink

	mu             sync.Mutex
	sensitivity    float64
	cameraFps      int
	screenAngleDeg int
	tickHz         float64
	enabled        map[string]bool
	fusionCfg      motion.FusionConfig
	last           map[string]motion.MotionDelta
	lastOutDX      float64
	lastOutDY      float64
	pendingFrame   *transport.CamFrameMetaMsg

	accel       *motion.AccelTracker
	gyro        *motion.GyroTracker
	orientation *motion.OrientationTracker
	vision      *motion.VisionTracker

	accum    *motion.Accumulator
	smoother *motion.MotionSmoother
	loop     *motion.MotionLoop

	logger *log.Logger
}

// New creates a session seeded from the server's default configuration,
// dispatching synthetic input to sink.
func New(cfg *config.Config, sink inputsink.Sink, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		sink:        sink,
		enabled:     cloneEnabled(defaultEnabled),
		last:        make(map[string]motion.MotionDelta),
		accel:       motion.NewAccelTracker(motion.DefaultAccelConfig()),
		gyro:        motion.NewGyroTracker(motion.DefaultGyroConfig()),
		orientation: motion.NewOrientationTracker(motion.DefaultOrientationConfig()),
		vision:      motion.NewVisionTracker(motion.DefaultVisionConfig()),
		accum:       motion.NewAccumulator(),
		smoother:    motion.NewMotionSmoother(motion.SmoothingConfig(cfg.Smoothing)),
		logger:      logger,
	}
	s.applyConfig(cfg)
	s.loop = motion.NewMotionLoop(s)
	return s
}

func cloneEnabled(src map[string]bool) map[string]bool {
	out := make(map[string]bool, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Start begins the session's motion loop goroutine.
func (s *Session) Start() { s.loop.Start() }

// Stop halts the motion loop and releases the vision tracker's OpenCV
// resources. Safe to call once, after Start.
func (s *Session) Stop() {
	s.loop.Stop()
	if err := s.vision.Close(); err != nil {
		s.logger.Printf("session: closing vision tracker: %v", err)
	}
}

func (s *Session) applyConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensitivity = cfg.Motion.Sensitivity
	s.cameraFps = 15
	s.screenAngleDeg = cfg.Motion.ScreenAngleDeg
	s.tickHz = cfg.Motion.TickHz
	s.fusionCfg = motion.FusionConfig(cfg.Fusion)
}

// HandleConfig applies a ConfigMsg, resetting all per-source filter state
// per the full reconfiguration lifecycle: a config change must not leak
// stale integrator state from the previous tuning into the new one.
func (s *Session) HandleConfig(msg *transport.ConfigMsg) {
	s.mu.Lock()

	if msg.Sensitivity != nil {
		s.sensitivity = *msg.Sensitivity
	}
	if msg.CameraFps != nil {
		s.cameraFps = clampInt(*msg.CameraFps, 1, 240)
	}
	if msg.ScreenAngle != nil {
		s.screenAngleDeg = ((*msg.ScreenAngle % 360) + 360) % 360
	}
	if msg.Enabled != nil {
		if msg.Enabled.Camera != nil {
			s.enabled[motion.SourceCamera] = *msg.Enabled.Camera
		}
		if msg.Enabled.Accel != nil {
			s.enabled[motion.SourceAccel] = *msg.Enabled.Accel
		}
		if msg.Enabled.Gyro != nil {
			s.enabled[motion.SourceGyro] = *msg.Enabled.Gyro
		}
		if msg.Enabled.Orientation != nil {
			s.enabled[motion.SourceOrientation] = *msg.Enabled.Orientation
		}
	}

	// Keep the motion loop aligned to the camera send rate when using
	// vision, so camera deltas are applied as soon as they arrive.
	if s.enabled[motion.SourceCamera] {
		s.tickHz = float64(s.cameraFps)
	}

	if msg.Fusion != nil {
		applyFusionOverride(&s.fusionCfg, msg.Fusion)
	}

	smoothingCfg := s.smoother.Config()
	if msg.SmoothingHalfLifeMs != nil {
		smoothingCfg.HalfLifeMs = maxFloat(0, *msg.SmoothingHalfLifeMs)
	}
	if msg.DeadzonePx != nil {
		smoothingCfg.DeadzonePx = maxFloat(0, *msg.DeadzonePx)
	}
	s.smoother.UpdateConfig(smoothingCfg)
	s.smoother.Reset()

	s.pendingFrame = nil
	s.accel.Reset()
	s.gyro.Reset()
	s.orientation.Reset()
	s.vision.Reset()
	s.last = make(map[string]motion.MotionDelta)
	s.mu.Unlock()

	s.accum.Drain()
}

func applyFusionOverride(cfg *motion.FusionConfig, o *transport.ClientFusionOverride) {
	if o.CameraGateEnabled != nil {
		cfg.CameraGateEnabled = *o.CameraGateEnabled
	}
	if o.CameraMaxAgeMs != nil {
		cfg.CameraMaxAgeMs = *o.CameraMaxAgeMs
	}
	if o.CameraStillPx != nil {
		cfg.CameraStillPx = *o.CameraStillPx
	}
	if o.CameraValidatorMinPx != nil {
		cfg.CameraValidatorMinPx = *o.CameraValidatorMinPx
	}
	if o.ImuMinPxWhenCameraStill != nil {
		cfg.ImuMinPxWhenCameraStill = *o.ImuMinPxWhenCameraStill
	}
	if o.ImuOppositeMaxPxWhenCameraStill != nil {
		cfg.ImuOppositeMaxPxWhenCameraStill = *o.ImuOppositeMaxPxWhenCameraStill
	}
	if o.MaxAngleDeg != nil {
		cfg.MaxAngleDeg = *o.MaxAngleDeg
	}
	if o.MinMag != nil {
		cfg.MinMag = *o.MinMag
	}
	if o.WeakFallbackScale != nil {
		cfg.WeakFallbackScale = *o.WeakFallbackScale
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// HandleClick forwards a click request to the input sink.
func (s *Session) HandleClick(msg *transport.ClickMsg) error {
	return s.sink.Button(msg.Button, msg.State)
}

// HandleScroll forwards a scroll request, scaled by sensitivity and
// truncated toward zero to whole units. A request that truncates to 0 is
// not forwarded.
func (s *Session) HandleScroll(msg *transport.ScrollMsg) error {
	s.mu.Lock()
	sens := s.sensitivity
	s.mu.Unlock()
	units := math.Trunc(msg.Delta * sens)
	if units == 0 {
		return nil
	}
	return s.sink.Scroll(units)
}

// HandleMoveDelta accumulates a pre-computed cursor delta under the
// authoritative "delta" source.
func (s *Session) HandleMoveDelta(msg *transport.MoveDeltaMsg) {
	s.accum.Add(motion.SourceDelta, msg.DX, msg.DY)
}

// HandleCamFrameMeta stashes the metadata preceding the next binary frame.
func (s *Session) HandleCamFrameMeta(msg *transport.CamFrameMetaMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.pendingFrame = &cp
}

// HandleCamFrameBody processes one binary camera frame against the
// pending metadata stashed by HandleCamFrameMeta. Frames arriving with no
// pending metadata, with a non-image mime type, or that fail to decode are
// silently dropped: a malformed frame is not a protocol error.
func (s *Session) HandleCamFrameBody(data []byte, nowMs float64) {
	s.mu.Lock()
	meta := s.pendingFrame
	s.pendingFrame = nil
	cameraEnabled := s.enabled[motion.SourceCamera]
	screenAngle := s.screenAngleDeg
	s.mu.Unlock()

	if !cameraEnabled || meta == nil {
		return
	}
	if len(meta.Mime) < 6 || meta.Mime[:6] != "image/" {
		return
	}

	frame, ok := motion.DecodeFrame(data)
	if !ok {
		return
	}
	defer frame.Close()

	vd := s.vision.ProcessBGR(frame)

	camDelta := motion.MotionDelta{DX: vd.DX, DY: vd.DY, TSMs: meta.TS, Valid: vd.Valid}
	camDelta = motion.Rotate(camDelta, screenAngle)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !camDelta.Valid {
		s.last[motion.SourceCamera] = motion.MotionDelta{TSMs: nowMs, Valid: false}
		return
	}
	dx, dy := motion.ScaleMove(motion.SourceCamera, camDelta)
	s.last[motion.SourceCamera] = motion.MotionDelta{DX: dx, DY: dy, TSMs: nowMs, Valid: true}
	s.accum.Add(motion.SourceCamera, dx, dy)
}

// HandleImuSample processes one IMU sample against every enabled IMU
// tracker and accumulates each resulting delta.
func (s *Session) HandleImuSample(msg *transport.ImuSampleMsg, nowMs float64) {
	sample := motion.ImuSample{
		TSMs:  msg.TS,
		AX:    msg.AX,
		AY:    msg.AY,
		AZ:    msg.AZ,
		GX:    msg.GX,
		GY:    msg.GY,
		GZ:    msg.GZ,
		Alpha: msg.Alpha,
		Beta:  msg.Beta,
		Gamma: msg.Gamma,
	}

	s.mu.Lock()
	accelOn := s.enabled[motion.SourceAccel]
	gyroOn := s.enabled[motion.SourceGyro]
	orientOn := s.enabled[motion.SourceOrientation]
	screenAngle := s.screenAngleDeg
	s.mu.Unlock()

	if accelOn {
		d := s.accel.ProcessSample(sample)
		d = motion.Rotate(d, screenAngle)
		// Cursor coordinates use +Y = down; the accel channel's raw axes
		// need an X-axis flip for expected tilt-to-move feel.
		d = motion.ApplyAxisSigns(d, motion.DefaultAccelAxisSigns())
		s.recordAndAccumulate(motion.SourceAccel, d, nowMs)
	}
	if gyroOn {
		d := s.gyro.ProcessSample(sample)
		d = motion.Rotate(d, screenAngle)
		s.recordAndAccumulate(motion.SourceGyro, d, nowMs)
	}
	if orientOn {
		d := s.orientation.ProcessSample(sample)
		d = motion.Rotate(d, screenAngle)
		s.recordAndAccumulate(motion.SourceOrientation, d, nowMs)
	}
}

func (s *Session) recordAndAccumulate(source string, d motion.MotionDelta, nowMs float64) {
	s.mu.Lock()
	if !d.Valid {
		s.last[source] = motion.MotionDelta{TSMs: nowMs, Valid: false}
		s.mu.Unlock()
		return
	}
	dx, dy := motion.ScaleMove(source, d)
	s.last[source] = motion.MotionDelta{DX: dx, DY: dy, TSMs: nowMs, Valid: true}
	s.mu.Unlock()
	s.accum.Add(source, dx, dy)
}

// --- motion.TickSource ---

// TickHz implements motion.TickSource.
func (s *Session) TickHz() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickHz
}

// Drain implements motion.TickSource.
func (s *Session) Drain() (map[string][2]float64, []string) {
	return s.accum.Drain()
}

// FusionConfig implements motion.TickSource.
func (s *Session) FusionConfig() motion.FusionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fusionCfg
}

// Enabled implements motion.TickSource.
func (s *Session) Enabled() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEnabled(s.enabled)
}

// LastMotion implements motion.TickSource.
func (s *Session) LastMotion() map[string]motion.MotionDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]motion.MotionDelta, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

// LastOut implements motion.TickSource.
func (s *Session) LastOut() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutDX, s.lastOutDY
}

// SetLastOut implements motion.TickSource.
func (s *Session) SetLastOut(dx, dy float64) {
	s.mu.Lock()
	s.lastOutDX, s.lastOutDY = dx, dy
	s.mu.Unlock()
}

// Sensitivity implements motion.TickSource.
func (s *Session) Sensitivity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensitivity
}

// Smoother implements motion.TickSource.
func (s *Session) Smoother() *motion.MotionSmoother {
	return s.smoother
}

// Emit implements motion.TickSource.
func (s *Session) Emit(dx, dy float64) {
	if err := s.sink.MoveRel(dx, dy); err != nil {
		s.logger.Printf("session: moving cursor: %v", err)
	}
}
