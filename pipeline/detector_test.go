package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/config"
	"github.com/khaledhikmat/gatewatch-go/service/recognizer"
)

// stubConfig overrides the filter parameters so synthetic flat frames are
// not rejected as blurry.
type stubConfig struct {
	config.IService
	params config.FilterParameters
}

func newStubConfig() *stubConfig {
	base := config.NewHardCoded(nil, 5)
	params := base.GetFilterParameters()
	params.MinBlurScore = 0
	return &stubConfig{IService: base, params: params}
}

func (svc *stubConfig) GetFilterParameters() config.FilterParameters {
	return svc.params
}

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func goodRegion() model.DetectedRegion {
	return model.DetectedRegion{X: 540, Y: 330, X2: 740, Y2: 390, ClassConfidence: 0.9}
}

func goodSegments() []model.OcrSegment {
	return []model.OcrSegment{{XStart: 0, Text: "MH12AB1234", Probability: 0.9}}
}

func TestProcessFrameAcceptsFirstPassingRegion(t *testing.T) {
	regions := []model.DetectedRegion{
		// Too small; skipped before the accepted one.
		{X: 600, Y: 340, X2: 680, Y2: 370, ClassConfidence: 0.99},
		goodRegion(),
	}
	recognizerSvc := recognizer.NewFake(
		[][]model.DetectedRegion{regions},
		[][]model.OcrSegment{goodSegments()},
	)
	detector := NewDetector(newStubConfig(), recognizerSvc)

	reading, ok := detector.ProcessFrame(testFrame(t), "main-gate")
	require.True(t, ok)
	defer reading.Crop.Close()

	assert.Equal(t, "MH12AB1234", reading.Text)
	assert.Equal(t, "main-gate", reading.GateName)
	assert.InDelta(t, 0.9, reading.Confidence, 0.001)
	assert.False(t, reading.Crop.Empty())
}

func TestProcessFrameStopsAtFirstAcceptedRegion(t *testing.T) {
	// Two acceptable regions, but OCR on the first yields nothing usable.
	// The second region must not be scanned.
	regions := []model.DetectedRegion{goodRegion(), goodRegion()}
	recognizerSvc := recognizer.NewFake(
		[][]model.DetectedRegion{regions},
		[][]model.OcrSegment{
			{{XStart: 0, Text: "AB1", Probability: 0.9}},
			goodSegments(),
		},
	)
	detector := NewDetector(newStubConfig(), recognizerSvc)

	_, ok := detector.ProcessFrame(testFrame(t), "main-gate")
	assert.False(t, ok)
}

func TestProcessFrameNoRegions(t *testing.T) {
	recognizerSvc := recognizer.NewFake(nil, nil)
	detector := NewDetector(newStubConfig(), recognizerSvc)

	_, ok := detector.ProcessFrame(testFrame(t), "main-gate")
	assert.False(t, ok)
}

func TestProcessFrameEmptyFrame(t *testing.T) {
	recognizerSvc := recognizer.NewFake(
		[][]model.DetectedRegion{{goodRegion()}},
		[][]model.OcrSegment{goodSegments()},
	)
	detector := NewDetector(newStubConfig(), recognizerSvc)

	empty := gocv.NewMat()
	defer empty.Close()

	_, ok := detector.ProcessFrame(empty, "main-gate")
	assert.False(t, ok)
}

func TestProcessFrameBlurRejection(t *testing.T) {
	// Default parameters demand a sharpness a flat synthetic frame
	// cannot provide.
	recognizerSvc := recognizer.NewFake(
		[][]model.DetectedRegion{{goodRegion()}},
		[][]model.OcrSegment{goodSegments()},
	)
	detector := NewDetector(config.NewHardCoded(nil, 5), recognizerSvc)

	_, ok := detector.ProcessFrame(testFrame(t), "main-gate")
	assert.False(t, ok)
}
