//go:build cgo
// +build cgo

package motion

import (
	"image"

	"gocv.io/x/gocv"
)

// VisionConfig holds the tunable parameters of a VisionTracker. See
// spec.md §4.4.
type VisionConfig struct {
	MaxCorners   int
	QualityLevel float64
	MinDistance  float64
	MinPoints    int
	ResizeScale  float64
	MaxErr       float32
	FBThresh     float64
}

// DefaultVisionConfig returns the tuning defaults from spec.md §4.4.
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		MaxCorners:   400,
		QualityLevel: 0.01,
		MinDistance:  5,
		MinPoints:    30,
		ResizeScale:  1.0,
		MaxErr:       12.0,
		FBThresh:     1.5,
	}
}

// VisionDelta is the result of one VisionTracker.ProcessBGR call.
type VisionDelta struct {
	DX        float64
	DY        float64
	Valid     bool
	NumPoints int
}

// VisionTracker computes a translation estimate between consecutive
// rear-camera frames of a textured surface via sparse optical flow with
// forward-backward verification and RANSAC-gated affine estimation. See
// spec.md §4.4.
type VisionTracker struct {
	cfg      VisionConfig
	clahe    gocv.CLAHE
	prevGray gocv.Mat
	havePrev bool
	prevPts  gocv.Mat
	havePts  bool
}

// NewVisionTracker creates a tracker with the given configuration.
func NewVisionTracker(cfg VisionConfig) *VisionTracker {
	return &VisionTracker{
		cfg:   cfg,
		clahe: gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8)),
	}
}

// Close releases the tracker's OpenCV resources.
func (t *VisionTracker) Close() error {
	t.clahe.Close()
	if t.havePrev {
		t.prevGray.Close()
	}
	if t.havePts {
		t.prevPts.Close()
	}
	return nil
}

// Reset drops cached frame/feature state (but not the CLAHE context).
func (t *VisionTracker) Reset() {
	if t.havePrev {
		t.prevGray.Close()
		t.havePrev = false
	}
	if t.havePts {
		t.prevPts.Close()
		t.havePts = false
	}
}

func (t *VisionTracker) detectFeatures(gray gocv.Mat) (gocv.Mat, bool) {
	corners := gocv.NewMat()
	gocv.GoodFeaturesToTrackWithParams(gray, &corners, t.cfg.MaxCorners, t.cfg.QualityLevel, t.cfg.MinDistance,
		gocv.NewMat(), 7, false, 0.0)
	if corners.Rows() == 0 {
		corners.Close()
		return gocv.Mat{}, false
	}
	return corners, true
}

// ProcessBGR advances the tracker by one color frame. The caller retains
// ownership of frameBGR. See spec.md §4.4 for the algorithm.
func (t *VisionTracker) ProcessBGR(frameBGR gocv.Mat) VisionDelta {
	gray := gocv.NewMat()
	gocv.CvtColor(frameBGR, &gray, gocv.ColorBGRToGray)
	defer gray.Close()

	working := gray
	if t.cfg.ResizeScale != 1.0 {
		resized := gocv.NewMat()
		gocv.Resize(gray, &resized, image.Point{}, t.cfg.ResizeScale, t.cfg.ResizeScale, gocv.InterpolationArea)
		working = resized
		defer resized.Close()
	}

	equalized := gocv.NewMat()
	t.clahe.Apply(working, &equalized)

	if !t.havePrev {
		t.prevGray = equalized
		t.havePrev = true
		if pts, ok := t.detectFeatures(equalized); ok {
			t.prevPts = pts
			t.havePts = true
		}
		return VisionDelta{Valid: false}
	}

	if !t.havePts || t.prevPts.Rows() < t.cfg.MinPoints {
		if t.havePts {
			t.prevPts.Close()
			t.havePts = false
		}
		if pts, ok := t.detectFeatures(t.prevGray); ok {
			t.prevPts = pts
			t.havePts = true
		}
	}

	if !t.havePts {
		t.prevGray.Close()
		t.prevGray = equalized
		if pts, ok := t.detectFeatures(equalized); ok {
			t.prevPts = pts
			t.havePts = true
		}
		return VisionDelta{Valid: false}
	}

	nextPts := gocv.NewMat()
	status := gocv.NewMat()
	errMat := gocv.NewMat()
	defer status.Close()
	defer errMat.Close()

	winSize := image.Pt(21, 21)
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, 30, 0.01)
	gocv.CalcOpticalFlowPyrLKWithParams(t.prevGray, equalized, t.prevPts, &nextPts, &status, &errMat,
		winSize, 3, criteria, 0, 0.001)

	goodPrev, goodNext, survived := t.filterForwardBackward(equalized, t.prevPts, nextPts, status, errMat)
	nextPts.Close()

	if survived < t.cfg.MinPoints {
		t.prevGray.Close()
		t.prevGray = equalized
		t.prevPts.Close()
		t.havePts = false
		if pts, ok := t.detectFeatures(equalized); ok {
			t.prevPts = pts
			t.havePts = true
		}
		return VisionDelta{Valid: false, NumPoints: survived}
	}

	dx, dy, inlierPrev, inlierNext := t.estimateTranslation(goodPrev, goodNext)
	goodPrev.Close()
	goodNext.Close()

	t.prevGray.Close()
	t.prevGray = equalized
	t.prevPts.Close()
	t.prevPts = inlierNext
	t.havePts = true
	numPoints := inlierPrev.Rows()
	inlierPrev.Close()

	// Desk texture moves opposite the phone's own movement.
	return VisionDelta{DX: -dx, DY: -dy, Valid: true, NumPoints: numPoints}
}

// filterForwardBackward runs the curr->prev backward flow from the forward
// results and discards tracks whose round-trip endpoint deviates by more
// than FBThresh, or whose forward residual exceeds MaxErr. Returns the
// surviving (prev, next) point pairs as Nx1 2-channel float32 Mats.
func (t *VisionTracker) filterForwardBackward(curr gocv.Mat, prevPts, nextPts, status, errMat gocv.Mat) (gocv.Mat, gocv.Mat, int) {
	n := prevPts.Rows()
	type pair struct {
		px, py, nx, ny float32
	}
	var survivors []pair

	backPts := gocv.NewMat()
	backStatus := gocv.NewMat()
	backErr := gocv.NewMat()
	defer backPts.Close()
	defer backStatus.Close()
	defer backErr.Close()

	winSize := image.Pt(21, 21)
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, 30, 0.01)
	gocv.CalcOpticalFlowPyrLKWithParams(curr, t.prevGray, nextPts, &backPts, &backStatus, &backErr,
		winSize, 3, criteria, 0, 0.001)

	for i := 0; i < n; i++ {
		if status.GetUCharAt(i, 0) == 0 {
			continue
		}
		if errMat.GetFloatAt(i, 0) > t.cfg.MaxErr {
			continue
		}
		if backStatus.GetUCharAt(i, 0) == 0 {
			continue
		}
		px, py := prevPts.GetVecfAt(i, 0)[0], prevPts.GetVecfAt(i, 0)[1]
		bx, by := backPts.GetVecfAt(i, 0)[0], backPts.GetVecfAt(i, 0)[1]
		fbErr := Mag(float64(px-bx), float64(py-by))
		if fbErr > t.cfg.FBThresh {
			continue
		}
		nx, ny := nextPts.GetVecfAt(i, 0)[0], nextPts.GetVecfAt(i, 0)[1]
		survivors = append(survivors, pair{px, py, nx, ny})
	}

	goodPrev := gocv.NewMatWithSize(len(survivors), 1, gocv.MatTypeCV32FC2)
	goodNext := gocv.NewMatWithSize(len(survivors), 1, gocv.MatTypeCV32FC2)
	for i, s := range survivors {
		goodPrev.SetFloatAt(i, 0, s.px)
		goodPrev.SetFloatAt(i, 1, s.py)
		goodNext.SetFloatAt(i, 0, s.nx)
		goodNext.SetFloatAt(i, 1, s.ny)
	}
	return goodPrev, goodNext, len(survivors)
}

// estimateTranslation tries a RANSAC-gated partial-affine (similarity) fit
// first; if it doesn't yield enough inliers it falls back to the
// component-wise median displacement. Returns the estimated (dx, dy) plus
// the inlier point sets (owned by the caller) used to seed the next
// iteration's feature set.
func (t *VisionTracker) estimateTranslation(goodPrev, goodNext gocv.Mat) (dx, dy float64, inlierPrev, inlierNext gocv.Mat) {
	n := goodPrev.Rows()
	if n >= 6 {
		affine, inliers := gocv.EstimateAffinePartial2DWithParams(goodPrev, goodNext, gocv.RANSAC, 3.0, 2000, 0.99, 10)
		defer affine.Close()
		if !affine.Empty() && !inliers.Empty() {
			inlierCount := 0
			for i := 0; i < inliers.Rows(); i++ {
				if inliers.GetUCharAt(i, 0) != 0 {
					inlierCount++
				}
			}
			if inlierCount >= t.cfg.MinPoints {
				dx = affine.GetDoubleAt(0, 2)
				dy = affine.GetDoubleAt(1, 2)
				inlierPrev, inlierNext = t.compactInliers(goodPrev, goodNext, inliers)
				inliers.Close()
				return dx, dy, inlierPrev, inlierNext
			}
		}
		inliers.Close()
	}

	// Robust fallback: component-wise median of per-track displacements.
	dxs := make([]float64, n)
	dys := make([]float64, n)
	for i := 0; i < n; i++ {
		pv := goodPrev.GetVecfAt(i, 0)
		nv := goodNext.GetVecfAt(i, 0)
		dxs[i] = float64(nv[0] - pv[0])
		dys[i] = float64(nv[1] - pv[1])
	}
	dx, dy = median(dxs), median(dys)
	return dx, dy, goodPrev.Clone(), goodNext.Clone()
}

func (t *VisionTracker) compactInliers(goodPrev, goodNext, inliers gocv.Mat) (gocv.Mat, gocv.Mat) {
	n := 0
	for i := 0; i < inliers.Rows(); i++ {
		if inliers.GetUCharAt(i, 0) != 0 {
			n++
		}
	}
	outPrev := gocv.NewMatWithSize(n, 1, gocv.MatTypeCV32FC2)
	outNext := gocv.NewMatWithSize(n, 1, gocv.MatTypeCV32FC2)
	j := 0
	for i := 0; i < inliers.Rows(); i++ {
		if inliers.GetUCharAt(i, 0) == 0 {
			continue
		}
		pv := goodPrev.GetVecfAt(i, 0)
		nv := goodNext.GetVecfAt(i, 0)
		outPrev.SetFloatAt(j, 0, pv[0])
		outPrev.SetFloatAt(j, 1, pv[1])
		outNext.SetFloatAt(j, 0, nv[0])
		outNext.SetFloatAt(j, 1, nv[1])
		j++
	}
	return outPrev, outNext
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	insertionSort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// DecodeFrame decodes one encoded image (JPEG/PNG) into a BGR color Mat.
// Failure (malformed data, unsupported codec) yields ok=false; callers must
// silently drop the frame per spec.md §7, never treat it as a protocol
// error.
func DecodeFrame(data []byte) (frame gocv.Mat, ok bool) {
	frame = gocv.IMDecode(data, gocv.IMReadColor)
	if frame.Empty() {
		return gocv.Mat{}, false
	}
	return frame, true
}
