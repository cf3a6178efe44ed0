package pipeline

import (
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/config"
	"github.com/khaledhikmat/gatewatch-go/service/imagestore"
	"github.com/khaledhikmat/gatewatch-go/service/recognizer"
	"github.com/khaledhikmat/gatewatch-go/service/repo"
)

type ServicesFactory struct {
	CfgSvc        config.IService
	RecognizerSvc recognizer.IService
	RepoSvc       repo.IService
	ImageSvc      imagestore.IService
}

// PlateReading is produced at most once per processed frame. The caller
// owns Crop and must Close it.
type PlateReading struct {
	Text       string
	Confidence float64
	Crop       gocv.Mat
	GateName   string
	Timestamp  time.Time
}

// DetectionEvent is a successfully filtered and assembled plate reading
// published by a camera worker, rate-limited by its cooldown. The
// dispatcher owns Crop once published.
type DetectionEvent struct {
	Text      string
	Crop      gocv.Mat
	Gate      model.Gate
	WorkerID  string
	Timestamp time.Time
}

// FrameUpdate carries a display frame; emitted every captured frame,
// independent of detection cadence. The consumer owns Mat.
type FrameUpdate struct {
	Mat       gocv.Mat
	GateName  string
	Timestamp time.Time
}

// FrameSource is the raw frame acquisition boundary a worker owns.
type FrameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// FrameSourceOpener opens the source configured on a gate.
type FrameSourceOpener func(source string) (FrameSource, error)

type captureSource struct {
	capture *gocv.VideoCapture
}

func (s *captureSource) Read(m *gocv.Mat) bool {
	return s.capture.Read(m)
}

func (s *captureSource) Close() error {
	return s.capture.Close()
}

// OpenCaptureSource opens a local device index or a stream URL through
// gocv. "0" is treated as device index 0, anything else as a URL.
func OpenCaptureSource(source string) (FrameSource, error) {
	if idx, err := strconv.Atoi(source); err == nil {
		capture, err := gocv.OpenVideoCapture(idx)
		if err != nil {
			return nil, err
		}
		return &captureSource{capture: capture}, nil
	}

	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, err
	}
	return &captureSource{capture: capture}, nil
}
