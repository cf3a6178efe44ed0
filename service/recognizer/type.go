package recognizer

import (
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
)

// IService is the external recognition capability: region detection on a
// full frame and text reading on a cropped plate image. The pipeline must
// work with any implementation, including one that never returns a match.
type IService interface {
	DetectRegions(frame gocv.Mat) []model.DetectedRegion
	ReadText(crop gocv.Mat) []model.OcrSegment
	Close() error
}
