package motion

import "testing"

func defaultEnabledAll() map[string]bool {
	return map[string]bool{SourceCamera: true, SourceAccel: true, SourceGyro: false, SourceOrientation: false}
}

func drainedPending(m map[string][2]float64) (map[string][2]float64, []string) {
	order := make([]string, 0, len(m))
	for _, s := range fusionPriority {
		if _, ok := m[s]; ok {
			order = append(order, s)
		}
	}
	for s := range m {
		found := false
		for _, o := range order {
			if o == s {
				found = true
				break
			}
		}
		if !found {
			order = append(order, s)
		}
	}
	return m, order
}

func TestComputeRawDelta_CameraStillVetoesSmallImu(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.CameraStillPx = 0.5
	cfg.ImuMinPxWhenCameraStill = 2.5
	nowMs := 1000.0
	lastMotion := map[string]MotionDelta{
		SourceCamera: {DX: 0, DY: 0, TSMs: nowMs - 10, Valid: true},
	}
	pending, order := drainedPending(map[string][2]float64{SourceAccel: {1.0, 0.0}})

	dx, dy := ComputeRawDelta(pending, order, defaultEnabledAll(), lastMotion, [2]float64{5.0, 0.0}, nowMs, cfg)
	if dx != 0 || dy != 0 {
		t.Fatalf("expected (0,0), got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_CameraStillAllowsLargeImu(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.CameraStillPx = 0.5
	cfg.ImuMinPxWhenCameraStill = 2.5
	nowMs := 1000.0
	lastMotion := map[string]MotionDelta{
		SourceCamera: {DX: 0, DY: 0, TSMs: nowMs - 10, Valid: true},
	}
	pending, order := drainedPending(map[string][2]float64{SourceAccel: {10.0, 0.0}})

	dx, dy := ComputeRawDelta(pending, order, defaultEnabledAll(), lastMotion, [2]float64{0, 0}, nowMs, cfg)
	if dx != 10.0 || dy != 0.0 {
		t.Fatalf("expected (10,0), got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_CameraValidatorDisagreesRejectsImu(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.CameraValidatorMinPx = 1.0
	cfg.MaxAngleDeg = 40.0
	nowMs := 1000.0
	lastMotion := map[string]MotionDelta{
		SourceCamera: {DX: 10.0, DY: 0, TSMs: nowMs - 10, Valid: true},
	}
	pending, order := drainedPending(map[string][2]float64{SourceAccel: {0.0, 10.0}})

	dx, dy := ComputeRawDelta(pending, order, defaultEnabledAll(), lastMotion, [2]float64{0, 0}, nowMs, cfg)
	if dx != 0 || dy != 0 {
		t.Fatalf("expected (0,0), got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_CameraPrimaryIsAuthoritative(t *testing.T) {
	cfg := DefaultFusionConfig()
	nowMs := 1000.0
	lastMotion := map[string]MotionDelta{
		SourceCamera: {DX: 10.0, DY: 0, TSMs: nowMs - 10, Valid: true},
	}
	pending, order := drainedPending(map[string][2]float64{
		SourceCamera: {5.0, 0.0},
		SourceAccel:  {0.0, -10.0},
	})

	dx, dy := ComputeRawDelta(pending, order, defaultEnabledAll(), lastMotion, [2]float64{0, 0}, nowMs, cfg)
	if dx != 5.0 || dy != 0.0 {
		t.Fatalf("expected (5,0), got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_EmptyPendingYieldsZero(t *testing.T) {
	cfg := DefaultFusionConfig()
	dx, dy := ComputeRawDelta(map[string][2]float64{}, nil, defaultEnabledAll(), nil, [2]float64{}, 0, cfg)
	if dx != 0 || dy != 0 {
		t.Fatalf("expected (0,0), got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_DisabledPrimarySourceYieldsZero(t *testing.T) {
	cfg := DefaultFusionConfig()
	enabled := map[string]bool{SourceAccel: false}
	pending, order := drainedPending(map[string][2]float64{SourceAccel: {3.0, 3.0}})
	dx, dy := ComputeRawDelta(pending, order, enabled, nil, [2]float64{}, 0, cfg)
	if dx != 0 || dy != 0 {
		t.Fatalf("expected (0,0) for disabled primary, got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_DeltaSourceIsAuthoritative(t *testing.T) {
	cfg := DefaultFusionConfig()
	enabled := map[string]bool{SourceAccel: true}
	pending, order := drainedPending(map[string][2]float64{
		SourceDelta: {2.0, -3.0},
		SourceAccel: {100.0, 100.0},
	})
	dx, dy := ComputeRawDelta(pending, order, enabled, nil, [2]float64{}, 0, cfg)
	if dx != 2.0 || dy != -3.0 {
		t.Fatalf("expected delta source to win outright, got (%v,%v)", dx, dy)
	}
}

func TestComputeRawDelta_NoValidatorsPassesPrimaryThrough(t *testing.T) {
	cfg := DefaultFusionConfig()
	enabled := map[string]bool{SourceAccel: true}
	pending, order := drainedPending(map[string][2]float64{SourceAccel: {4.0, -1.0}})
	dx, dy := ComputeRawDelta(pending, order, enabled, nil, [2]float64{}, 0, cfg)
	if dx != 4.0 || dy != -1.0 {
		t.Fatalf("expected primary passthrough, got (%v,%v)", dx, dy)
	}
}
