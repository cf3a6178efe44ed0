package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/khaledhikmat/gatewatch-go/model"
)

type viperService struct {
	v     *viper.Viper
	gates []model.Gate
}

// NewViper builds a config service backed by a yaml file plus GATEWATCH_*
// environment variable overrides. A missing file is fine; defaults apply.
func NewViper(path string) (IService, error) {
	v := viper.New()

	v.SetDefault("debug", false)
	v.SetDefault("mode.maxshutdowntime", 5)
	v.SetDefault("detection.cooldown", 5)
	v.SetDefault("filter.minclassconfidence", 0.5)
	v.SetDefault("filter.minarea", 3000)
	v.SetDefault("filter.minaspectratio", 1.5)
	v.SetDefault("filter.maxaspectratio", 6.0)
	v.SetDefault("filter.centerzonefraction", 0.20)
	v.SetDefault("filter.minblurscore", 80.0)
	v.SetDefault("ocr.minprobability", 0.3)
	v.SetDefault("ocr.minplatelength", 5)
	v.SetDefault("ocr.upscalefactor", 2.0)
	v.SetDefault("folders.images", "./logs_images")
	v.SetDefault("folders.logs", "./logs")
	v.SetDefault("database.path", "./gatewatch.db")
	v.SetDefault("models.detector", "./models/plate_detector.onnx")
	v.SetDefault("models.ocr", "./models/plate_ocr.onnx")

	v.SetEnvPrefix("GATEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("gatewatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var gates []model.Gate
	if err := v.UnmarshalKey("gates", &gates); err != nil {
		return nil, fmt.Errorf("error unmarshalling gates: %w", err)
	}

	return &viperService{v: v, gates: gates}, nil
}

func (svc *viperService) GetModeMaxShutdownTime() int {
	return svc.v.GetInt("mode.maxshutdowntime")
}

func (svc *viperService) GetGates() []model.Gate {
	return svc.gates
}

func (svc *viperService) GetDetectionCooldown() int {
	return svc.v.GetInt("detection.cooldown")
}

func (svc *viperService) GetFilterParameters() FilterParameters {
	return FilterParameters{
		MinClassConfidence: svc.v.GetFloat64("filter.minclassconfidence"),
		MinArea:            svc.v.GetInt("filter.minarea"),
		MinAspectRatio:     svc.v.GetFloat64("filter.minaspectratio"),
		MaxAspectRatio:     svc.v.GetFloat64("filter.maxaspectratio"),
		CenterZoneFraction: svc.v.GetFloat64("filter.centerzonefraction"),
		MinBlurScore:       svc.v.GetFloat64("filter.minblurscore"),
		MinOcrProbability:  svc.v.GetFloat64("ocr.minprobability"),
		MinPlateLength:     svc.v.GetInt("ocr.minplatelength"),
		UpscaleFactor:      svc.v.GetFloat64("ocr.upscalefactor"),
	}
}

func (svc *viperService) GetImagesFolder() string {
	return svc.v.GetString("folders.images")
}

func (svc *viperService) GetLogsFolder() string {
	return svc.v.GetString("folders.logs")
}

func (svc *viperService) GetDatabasePath() string {
	return svc.v.GetString("database.path")
}

func (svc *viperService) GetDetectorModelPath() string {
	return svc.v.GetString("models.detector")
}

func (svc *viperService) GetOcrModelPath() string {
	return svc.v.GetString("models.ocr")
}

func (svc *viperService) IsDebug() bool {
	return svc.v.GetBool("debug")
}
