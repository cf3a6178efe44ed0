package recognizer

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/gatewatch-go/model"
)

const (
	detectorInputSize = 640
	ocrInputWidth     = 100
	ocrInputHeight    = 32
	// Index 0 is the CTC blank.
	ocrCharset = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Rotating log of raw recognition results, for offline threshold tuning.
var recognitionLogger = &lumberjack.Logger{
	Filename:   "recognitions.log",
	MaxSize:    10, // MB
	MaxBackups: 5,
	MaxAge:     7,    // days
	Compress:   true, // compress old logs
}

type dnnService struct {
	// WARNING: gocv nets are not thread-safe, and one recognizer is shared
	// by all camera workers. All forward passes are serialized.
	lock        sync.Mutex
	detectorNet gocv.Net
	ocrNet      gocv.Net
	logging     bool
}

// NewDNN loads a YOLO-style single-class plate detector and a CRNN-style
// text recognition model, both in ONNX form, through the OpenCV DNN module.
func NewDNN(detectorModelPath, ocrModelPath string, logging bool) (IService, error) {
	if _, err := os.Stat(detectorModelPath); os.IsNotExist(err) {
		return nil, xerrors.New(fmt.Sprintf("no detector model at %s", detectorModelPath))
	}
	if _, err := os.Stat(ocrModelPath); os.IsNotExist(err) {
		return nil, xerrors.New(fmt.Sprintf("no ocr model at %s", ocrModelPath))
	}

	detectorNet := gocv.ReadNet(detectorModelPath, "")
	if detectorNet.Empty() {
		return nil, xerrors.New("error reading detector model")
	}

	ocrNet := gocv.ReadNet(ocrModelPath, "")
	if ocrNet.Empty() {
		detectorNet.Close()
		return nil, xerrors.New("error reading ocr model")
	}

	for _, net := range []*gocv.Net{&detectorNet, &ocrNet} {
		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			detectorNet.Close()
			ocrNet.Close()
			return nil, fmt.Errorf("error setting backend: %w", err)
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			detectorNet.Close()
			ocrNet.Close()
			return nil, fmt.Errorf("error setting target: %w", err)
		}
	}

	return &dnnService{
		detectorNet: detectorNet,
		ocrNet:      ocrNet,
		logging:     logging,
	}, nil
}

func (svc *dnnService) DetectRegions(frame gocv.Mat) []model.DetectedRegion {
	if frame.Empty() {
		return nil
	}

	svc.lock.Lock()
	defer svc.lock.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(detectorInputSize, detectorInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	svc.detectorNet.SetInput(blob, "")

	output := svc.detectorNet.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil
	}

	reshaped := output.Reshape(1, dims[1])
	if reshaped.Empty() || reshaped.Rows() == 0 || reshaped.Cols() < 6 {
		reshaped.Close()
		return nil
	}
	defer reshaped.Close()

	var regions []model.DetectedRegion
	for i := 0; i < reshaped.Rows(); i++ {
		row := reshaped.RowRange(i, i+1)
		data, err := row.DataPtrFloat32()
		row.Close()
		if err != nil || len(data) < 6 {
			continue
		}

		// Rows are [cx, cy, w, h, objectness, plateScore]; the model has a
		// single plate class.
		objectConfidence := float64(data[4])
		classScore := float64(data[5])
		confidence := objectConfidence * classScore
		if confidence < 0.1 {
			continue
		}

		cx := float64(data[0]) * float64(frame.Cols())
		cy := float64(data[1]) * float64(frame.Rows())
		w := float64(data[2]) * float64(frame.Cols())
		h := float64(data[3]) * float64(frame.Rows())

		regions = append(regions, model.DetectedRegion{
			X:               int(cx - w/2),
			Y:               int(cy - h/2),
			X2:              int(cx + w/2),
			Y2:              int(cy + h/2),
			ClassConfidence: confidence,
		})
	}

	if svc.logging && len(regions) > 0 {
		logRecognition("detect", regions)
	}

	return regions
}

func (svc *dnnService) ReadText(crop gocv.Mat) []model.OcrSegment {
	if crop.Empty() {
		return nil
	}

	svc.lock.Lock()
	defer svc.lock.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	blob := gocv.BlobFromImage(gray, 1.0/127.5, image.Pt(ocrInputWidth, ocrInputHeight), gocv.NewScalar(127.5, 0, 0, 0), false, false)
	defer blob.Close()

	svc.ocrNet.SetInput(blob, "")

	output := svc.ocrNet.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) < 2 {
		return nil
	}

	// Output is (timesteps, 1, classes); collapse to timesteps x classes.
	steps := dims[0]
	reshaped := output.Reshape(1, steps)
	if reshaped.Empty() || reshaped.Cols() != len(ocrCharset) {
		reshaped.Close()
		return nil
	}
	defer reshaped.Close()

	text, probability := greedyDecode(&reshaped)
	if text == "" {
		return nil
	}

	segments := []model.OcrSegment{
		{XStart: 0, Text: text, Probability: probability},
	}

	if svc.logging {
		logRecognition("read", segments)
	}

	return segments
}

// greedyDecode performs best-path CTC decoding: argmax per timestep, then
// collapse repeats and drop blanks. Probability is the mean softmax score
// of the kept characters.
func greedyDecode(scores *gocv.Mat) (string, float64) {
	var text []byte
	var probSum float64
	var kept int
	prev := -1

	for t := 0; t < scores.Rows(); t++ {
		row := scores.RowRange(t, t+1)
		data, err := row.DataPtrFloat32()
		row.Close()
		if err != nil || len(data) != len(ocrCharset) {
			return "", 0
		}

		best := 0
		for c := 1; c < len(data); c++ {
			if data[c] > data[best] {
				best = c
			}
		}

		if best != 0 && best != prev {
			text = append(text, ocrCharset[best])
			probSum += softmaxAt(data, best)
			kept++
		}
		prev = best
	}

	if kept == 0 {
		return "", 0
	}
	return string(text), probSum / float64(kept)
}

func softmaxAt(scores []float32, idx int) float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	for _, s := range scores {
		sum += math.Exp(float64(s - maxScore))
	}
	return math.Exp(float64(scores[idx]-maxScore)) / sum
}

func (svc *dnnService) Close() error {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if err := svc.detectorNet.Close(); err != nil {
		return err
	}
	return svc.ocrNet.Close()
}

func logRecognition(direction string, payload interface{}) {
	entry := map[string]interface{}{
		"time":      time.Now().Format(time.RFC3339),
		"direction": direction,
		"payload":   payload,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = recognitionLogger.Write(append(jsonData, '\n'))
}
