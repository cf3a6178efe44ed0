package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/gatewatch-go/service/config"
)

type filesService struct {
	CfgSvc config.IService
}

func NewFiles(cfgsvc config.IService) (IService, error) {
	if err := os.MkdirAll(cfgsvc.GetImagesFolder(), 0o755); err != nil {
		return nil, fmt.Errorf("error creating images folder: %w", err)
	}
	return &filesService{
		CfgSvc: cfgsvc,
	}, nil
}

// SaveCrop keys the file by plate, timestamp and a short uuid so that
// repeated entries of the same plate do not overwrite history.
func (svc *filesService) SaveCrop(plate string, crop gocv.Mat) (string, error) {
	if crop.Empty() {
		return "", xerrors.New("cannot save an empty crop")
	}

	name := fmt.Sprintf("%s_%d_%s.jpg", plate, time.Now().UnixNano(), uuid.NewString()[:8])
	path := filepath.Join(svc.CfgSvc.GetImagesFolder(), name)

	if ok := gocv.IMWrite(path, crop); !ok {
		return "", xerrors.New(fmt.Sprintf("error writing crop image to %s", path))
	}

	return path, nil
}
