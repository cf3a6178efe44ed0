package imagestore

import "gocv.io/x/gocv"

// ManualPath is the sentinel recorded for decisions committed without a
// camera image.
const ManualPath = "MANUAL"

// IService persists plate crops for the entry log. SaveCrop returns the
// stored path; repeated saves of the same plate never collide.
type IService interface {
	SaveCrop(plate string, crop gocv.Mat) (string, error)
}
