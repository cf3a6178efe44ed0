package config

import "github.com/khaledhikmat/gatewatch-go/model"

// FilterParameters are the candidate filter and OCR assembly thresholds.
// All of them are externally tunable without recompilation.
type FilterParameters struct {
	MinClassConfidence float64
	MinArea            int
	MinAspectRatio     float64
	MaxAspectRatio     float64
	CenterZoneFraction float64
	MinBlurScore       float64
	MinOcrProbability  float64
	MinPlateLength     int
	UpscaleFactor      float64
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetGates() []model.Gate
	GetDetectionCooldown() int // seconds
	GetFilterParameters() FilterParameters
	GetImagesFolder() string
	GetLogsFolder() string
	GetDatabasePath() string
	GetDetectorModelPath() string
	GetOcrModelPath() string
	IsDebug() bool
}
