package config

import "github.com/khaledhikmat/gatewatch-go/model"

type hardcodedService struct {
	gates    []model.Gate
	cooldown int
}

// NewHardCoded returns a config service with the built-in defaults. Used by
// tests and as a fallback when no config file is wanted.
func NewHardCoded(gates []model.Gate, cooldownSeconds int) IService {
	return &hardcodedService{
		gates:    gates,
		cooldown: cooldownSeconds,
	}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return 5
}

func (svc *hardcodedService) GetGates() []model.Gate {
	return svc.gates
}

func (svc *hardcodedService) GetDetectionCooldown() int {
	return svc.cooldown
}

func (svc *hardcodedService) GetFilterParameters() FilterParameters {
	return FilterParameters{
		MinClassConfidence: 0.5,
		MinArea:            3000,
		MinAspectRatio:     1.5,
		MaxAspectRatio:     6.0,
		CenterZoneFraction: 0.20,
		MinBlurScore:       80.0,
		MinOcrProbability:  0.3,
		MinPlateLength:     5,
		UpscaleFactor:      2.0,
	}
}

func (svc *hardcodedService) GetImagesFolder() string {
	return "./logs_images"
}

func (svc *hardcodedService) GetLogsFolder() string {
	return "./logs"
}

func (svc *hardcodedService) GetDatabasePath() string {
	return "./gatewatch.db"
}

func (svc *hardcodedService) GetDetectorModelPath() string {
	return "./models/plate_detector.onnx"
}

func (svc *hardcodedService) GetOcrModelPath() string {
	return "./models/plate_ocr.onnx"
}

func (svc *hardcodedService) IsDebug() bool {
	return false
}
