package imagestore

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// FakeService records saves without touching disk.
type FakeService struct {
	lock     sync.Mutex
	Saves    []string
	FailSave error
}

func NewFake() *FakeService {
	return &FakeService{}
}

func (svc *FakeService) SaveCrop(plate string, _ gocv.Mat) (string, error) {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if svc.FailSave != nil {
		return "", svc.FailSave
	}
	path := fmt.Sprintf("fake/%s_%d.jpg", plate, len(svc.Saves))
	svc.Saves = append(svc.Saves, path)
	return path, nil
}
