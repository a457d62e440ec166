package session

import (
	"sync"
	"testing"

	"github.com/tiltmouse/tiltmouse-server/internal/config"
	"github.com/tiltmouse/tiltmouse-server/pkg/transport"
)

type recordingSink struct {
	mu      sync.Mutex
	moves   [][2]float64
	buttons [][2]string
	scrolls []float64
}

func (r *recordingSink) MoveRel(dx, dy float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, [2]float64{dx, dy})
	return nil
}

func (r *recordingSink) Button(button, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons = append(r.buttons, [2]string{button, state})
	return nil
}

func (r *recordingSink) Scroll(delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls = append(r.scrolls, delta)
	return nil
}

func newTestSession(t *testing.T) (*Session, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	sess := New(config.Default(), sink, nil)
	return sess, sink
}

func TestSession_DefaultEnabledIsAccelOnly(t *testing.T) {
	sess, _ := newTestSession(t)
	enabled := sess.Enabled()
	if !enabled["accel"] || enabled["camera"] || enabled["gyro"] || enabled["orientation"] {
		t.Fatalf("expected only accel enabled by default, got %+v", enabled)
	}
}

func TestSession_HandleClickForwardsToSink(t *testing.T) {
	sess, sink := newTestSession(t)
	if err := sess.HandleClick(&transport.ClickMsg{Button: "left", State: "down"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.buttons) != 1 || sink.buttons[0] != [2]string{"left", "down"} {
		t.Fatalf("expected button forwarded, got %+v", sink.buttons)
	}
}

func TestSession_HandleScrollAppliesSensitivity(t *testing.T) {
	sess, sink := newTestSession(t)
	sensTwo := 2.0
	sess.HandleConfig(&transport.ConfigMsg{Sensitivity: &sensTwo})
	if err := sess.HandleScroll(&transport.ScrollMsg{Delta: 3.0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.scrolls) != 1 || sink.scrolls[0] != 6.0 {
		t.Fatalf("expected scaled scroll of 6.0, got %+v", sink.scrolls)
	}
}

func TestSession_HandleMoveDeltaAccumulates(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.HandleMoveDelta(&transport.MoveDeltaMsg{DX: 2, DY: -3})
	pending, order := sess.Drain()
	if len(order) != 1 || order[0] != "delta" {
		t.Fatalf("expected delta source pending, got order=%v", order)
	}
	if pending["delta"] != [2]float64{2, -3} {
		t.Fatalf("expected (2,-3) pending, got %v", pending["delta"])
	}
}

func TestSession_HandleConfigUpdatesEnabledSources(t *testing.T) {
	sess, _ := newTestSession(t)
	camTrue := true
	sess.HandleConfig(&transport.ConfigMsg{
		Enabled: &transport.ClientEnabled{Camera: &camTrue},
	})
	enabled := sess.Enabled()
	if !enabled["camera"] {
		t.Fatalf("expected camera enabled after config, got %+v", enabled)
	}
	if !enabled["accel"] {
		t.Fatalf("expected accel to remain enabled (config only updates named fields), got %+v", enabled)
	}
}

func TestSession_HandleConfigTiesTickHzToCameraFpsWhenCameraEnabled(t *testing.T) {
	sess, _ := newTestSession(t)
	camTrue := true
	fps := 24
	sess.HandleConfig(&transport.ConfigMsg{
		Enabled:   &transport.ClientEnabled{Camera: &camTrue},
		CameraFps: &fps,
	})
	if got := sess.TickHz(); got != 24.0 {
		t.Fatalf("expected tick_hz tied to camera_fps (24), got %v", got)
	}
}

func TestSession_HandleConfigResetsPendingAccumulator(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.HandleMoveDelta(&transport.MoveDeltaMsg{DX: 5, DY: 5})
	sess.HandleConfig(&transport.ConfigMsg{})
	pending, order := sess.Drain()
	if len(pending) != 0 || len(order) != 0 {
		t.Fatalf("expected config reset to drain pending accumulator, got %v %v", pending, order)
	}
}

func TestSession_ImuSampleAccumulatesWhenAccelEnabled(t *testing.T) {
	sess, _ := newTestSession(t)
	ts1, ax1, ay1 := 0.0, 1.0, 0.0
	sess.HandleImuSample(&transport.ImuSampleMsg{TS: &ts1, AX: &ax1, AY: &ay1}, 0)
	ts2, ax2, ay2 := 20.0, 5.0, 0.0
	sess.HandleImuSample(&transport.ImuSampleMsg{TS: &ts2, AX: &ax2, AY: &ay2}, 20)

	_, order := sess.Drain()
	found := false
	for _, s := range order {
		if s == "accel" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected accel to have accumulated a pending delta, got order=%v", order)
	}
}
