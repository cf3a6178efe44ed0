package pipeline

import (
	"image"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/config"
)

// RejectReason names the first filter rule a candidate failed. Rejections
// are design-intended pruning, never errors.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectLowConfidence RejectReason = "low confidence"
	RejectDegenerateBox RejectReason = "degenerate box"
	RejectTooSmall      RejectReason = "too small"
	RejectBadShape      RejectReason = "bad shape"
	RejectOffCenter     RejectReason = "off center"
	RejectBlurry        RejectReason = "too blurry"
)

// EvaluateCandidate applies the geometric and quality rules, in order, to
// one detected region. The first failing rule short-circuits. blurScore is
// the Laplacian variance of the grayscale crop, supplied by the caller so
// the rules themselves stay pure. On accept, the returned rect is the
// region clipped to frame bounds.
func EvaluateCandidate(region model.DetectedRegion, frameWidth, frameHeight int, blurScore float64, params config.FilterParameters) (image.Rectangle, RejectReason) {
	if region.ClassConfidence < params.MinClassConfidence {
		return image.Rectangle{}, RejectLowConfidence
	}

	rect := ClipToFrame(region, frameWidth, frameHeight)
	w := rect.Dx()
	h := rect.Dy()
	if w == 0 || h == 0 {
		return image.Rectangle{}, RejectDegenerateBox
	}

	if w*h < params.MinArea {
		return image.Rectangle{}, RejectTooSmall
	}

	// Wider than a plate's nominal shape to tolerate perspective skew.
	aspect := float64(w) / float64(h)
	if aspect < params.MinAspectRatio || aspect > params.MaxAspectRatio {
		return image.Rectangle{}, RejectBadShape
	}

	// Edge detections are unreliable and often belong to adjacent lanes.
	centerX := float64(rect.Min.X) + float64(w)/2
	minX := params.CenterZoneFraction * float64(frameWidth)
	maxX := (1 - params.CenterZoneFraction) * float64(frameWidth)
	if !(centerX > minX && centerX < maxX) {
		return image.Rectangle{}, RejectOffCenter
	}

	if blurScore < params.MinBlurScore {
		return image.Rectangle{}, RejectBlurry
	}

	return rect, RejectNone
}

// ClipToFrame clamps the region's box to the frame bounds.
func ClipToFrame(region model.DetectedRegion, frameWidth, frameHeight int) image.Rectangle {
	x := max(0, region.X)
	y := max(0, region.Y)
	x2 := min(frameWidth, region.X2)
	y2 := min(frameHeight, region.Y2)
	if x2 < x {
		x2 = x
	}
	if y2 < y {
		y2 = y
	}
	return image.Rect(x, y, x2, y2)
}
