package recognizer

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
)

type fakeService struct {
	lock     sync.Mutex
	regions  [][]model.DetectedRegion
	segments [][]model.OcrSegment
	detects  int
	reads    int
}

// NewFake returns a scripted recognizer. Each DetectRegions call pops the
// next regions slice, each ReadText call pops the next segments slice; once
// a script is exhausted the last entry repeats. Image contents are ignored.
func NewFake(regions [][]model.DetectedRegion, segments [][]model.OcrSegment) IService {
	return &fakeService{
		regions:  regions,
		segments: segments,
	}
}

func (svc *fakeService) DetectRegions(_ gocv.Mat) []model.DetectedRegion {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if len(svc.regions) == 0 {
		return nil
	}
	idx := svc.detects
	if idx >= len(svc.regions) {
		idx = len(svc.regions) - 1
	}
	svc.detects++
	return svc.regions[idx]
}

func (svc *fakeService) ReadText(_ gocv.Mat) []model.OcrSegment {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if len(svc.segments) == 0 {
		return nil
	}
	idx := svc.reads
	if idx >= len(svc.segments) {
		idx = len(svc.segments) - 1
	}
	svc.reads++
	return svc.segments[idx]
}

func (svc *fakeService) Close() error {
	return nil
}
