//go:build cgo
// +build cgo

package motion

import (
	"math"
	"testing"

	"gocv.io/x/gocv"
)

// checkerFrame renders an 8px checkerboard into a BGR Mat, with the pattern
// itself shifted by shiftX columns. Feeding two frames with a known shiftX
// difference through ProcessBGR exercises the full CLAHE -> feature detect
// -> pyramidal LK -> forward/backward check -> RANSAC affine pipeline end to
// end (spec.md §8 S6).
func checkerFrame(w, h, shiftX int) gocv.Mat {
	gray := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(40)
			if (((x-shiftX)/8)+(y/8))%2 == 0 {
				v = 220
			}
			gray.SetUCharAt(y, x, v)
		}
	}
	bgr := gocv.NewMat()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)
	gray.Close()
	return bgr
}

func TestVisionTracker_DetectsKnownShift(t *testing.T) {
	const shift = 5

	frame1 := checkerFrame(200, 200, 0)
	defer frame1.Close()
	frame2 := checkerFrame(200, 200, shift)
	defer frame2.Close()

	tr := NewVisionTracker(DefaultVisionConfig())
	defer tr.Close()

	first := tr.ProcessBGR(frame1)
	if first.Valid {
		t.Fatalf("expected first frame invalid (nothing to compare against), got %+v", first)
	}

	d := tr.ProcessBGR(frame2)
	if !d.Valid {
		t.Fatalf("expected second frame to yield a valid delta, got %+v", d)
	}
	if math.Abs(d.DX-(-float64(shift))) > 1.0 {
		t.Errorf("expected dx ~= %v, got %v", -float64(shift), d.DX)
	}
	if math.Abs(d.DY) > 1.0 {
		t.Errorf("expected dy ~= 0, got %v", d.DY)
	}
}

func TestVisionTracker_FirstFrameInvalid(t *testing.T) {
	tr := NewVisionTracker(DefaultVisionConfig())
	defer tr.Close()

	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	d := tr.ProcessBGR(frame)
	if d.Valid {
		t.Fatalf("expected first frame to be invalid (no previous frame to compare), got %+v", d)
	}
}

func TestVisionTracker_ResetDropsCachedFrame(t *testing.T) {
	tr := NewVisionTracker(DefaultVisionConfig())
	defer tr.Close()

	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tr.ProcessBGR(frame)
	if !tr.havePrev {
		t.Fatalf("expected havePrev after first frame")
	}
	tr.Reset()
	if tr.havePrev || tr.havePts {
		t.Fatalf("expected Reset to drop cached frame/feature state")
	}
}

func TestMedian_OddAndEvenCounts(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("median([3,1,2]) = %v, want 2", got)
	}
	if got := median([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("median([1,2,3,4]) = %v, want 2.5", got)
	}
	if got := median(nil); got != 0 {
		t.Errorf("median(nil) = %v, want 0", got)
	}
}

func TestDecodeFrame_MalformedDataFails(t *testing.T) {
	_, ok := DecodeFrame([]byte("not an image"))
	if ok {
		t.Fatalf("expected malformed data to fail to decode")
	}
}
