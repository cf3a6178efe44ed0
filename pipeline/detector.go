package pipeline

import (
	"image"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/service/config"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
	"github.com/khaledhikmat/gatewatch-go/service/recognizer"
)

// Detector composes the recognizer, the candidate filter and the OCR
// assembler into a single per-frame operation.
type Detector struct {
	CfgSvc        config.IService
	RecognizerSvc recognizer.IService
}

func NewDetector(cfgSvc config.IService, recognizerSvc recognizer.IService) *Detector {
	return &Detector{
		CfgSvc:        cfgSvc,
		RecognizerSvc: recognizerSvc,
	}
}

// ProcessFrame scans detected regions in recognizer order and stops at the
// FIRST region that passes the candidate filter; remaining regions are not
// considered. The accepted crop is upscaled before OCR. Returns false when
// no region is accepted or OCR yields nothing; a recognizer that reports
// zero regions is not an error. On success the caller owns reading.Crop.
func (d *Detector) ProcessFrame(frame gocv.Mat, gateName string) (PlateReading, bool) {
	if frame.Empty() {
		return PlateReading{}, false
	}

	params := d.CfgSvc.GetFilterParameters()
	frameWidth := frame.Cols()
	frameHeight := frame.Rows()

	for _, region := range d.RecognizerSvc.DetectRegions(frame) {
		// Cheap geometric rules come free; the blur score needs the crop.
		rect, reason := EvaluateCandidate(region, frameWidth, frameHeight, params.MinBlurScore, params)
		if reason != RejectNone {
			lgr.Logger.Debug(
				"candidate rejected",
				slog.String("gate", gateName),
				slog.String("reason", string(reason)),
			)
			continue
		}

		crop := frame.Region(rect)
		blurScore := laplacianVariance(crop)
		if _, reason = EvaluateCandidate(region, frameWidth, frameHeight, blurScore, params); reason != RejectNone {
			crop.Close()
			lgr.Logger.Debug(
				"candidate rejected",
				slog.String("gate", gateName),
				slog.String("reason", string(reason)),
				slog.Float64("blurScore", blurScore),
			)
			continue
		}

		text, ok := d.readPlate(crop, params)
		cropCopy := crop.Clone()
		crop.Close()
		if !ok {
			cropCopy.Close()
			return PlateReading{}, false
		}

		return PlateReading{
			Text:       text,
			Confidence: region.ClassConfidence,
			Crop:       cropCopy,
			GateName:   gateName,
			Timestamp:  time.Now(),
		}, true
	}

	return PlateReading{}, false
}

func (d *Detector) readPlate(crop gocv.Mat, params config.FilterParameters) (string, bool) {
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	gocv.Resize(crop, &enhanced, image.Pt(0, 0), params.UpscaleFactor, params.UpscaleFactor, gocv.InterpolationCubic)

	segments := d.RecognizerSvc.ReadText(enhanced)
	return AssembleText(segments, params)
}

// laplacianVariance is the sharpness metric used by the blur rule: the
// variance of a Laplacian edge response on the grayscale crop.
func laplacianVariance(crop gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stdDev := gocv.NewMat()
	defer stdDev.Close()
	gocv.MeanStdDev(lap, &mean, &stdDev)

	sd := stdDev.GetDoubleAt(0, 0)
	return sd * sd
}
