package model

import (
	"fmt"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Gate is a configured checkpoint: one camera source and a display name.
// Source is either a local device index ("0") or a stream URL.
// Immutable while a worker runs; changing it requires a worker restart.
type Gate struct {
	ID     string `json:"id" mapstructure:"id"`
	Name   string `json:"name" mapstructure:"name"`
	Source string `json:"source" mapstructure:"source"`
}

// DetectedRegion is one candidate region reported by the recognizer for a
// single frame. Box coordinates are frame pixels, confidence is 0-1.
type DetectedRegion struct {
	X               int     `json:"x"`
	Y               int     `json:"y"`
	X2              int     `json:"x2"`
	Y2              int     `json:"y2"`
	ClassConfidence float64 `json:"classConfidence"`
}

// OcrSegment is one text fragment read from a cropped plate image.
// XStart is the horizontal pixel offset of the fragment within the crop.
type OcrSegment struct {
	XStart      int     `json:"xStart"`
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
}

type Resident struct {
	PlateNumber string `json:"plateNumber"`
	OwnerName   string `json:"ownerName"`
	FlatNumber  string `json:"flatNumber"`
	PhoneNumber string `json:"phoneNumber"`
}

type EntryLogRecord struct {
	PlateNumber string     `json:"plateNumber"`
	EntryTime   time.Time  `json:"entryTime"`
	ExitTime    *time.Time `json:"exitTime,omitempty"`
	GateName    string     `json:"gateName"`
	ImagePath   string     `json:"imagePath"`
	Status      string     `json:"status"`
}

type AuditLogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Audit actions recorded by the entry decision workflow and the auth service.
const (
	AuditLogin              = "LOGIN"
	AuditLoginFailed        = "LOGIN_FAILED"
	AuditPassChangeSelf     = "PASS_CHANGE_SELF"
	AuditPassResetAdmin     = "PASS_RESET_ADMIN"
	AuditManualEntryCreated = "MANUAL_ENTRY_CREATED"
	AuditManualCorrection   = "MANUAL_CORRECTION"
	AuditAddResident        = "ADD_RESIDENT"
)

// EntryStatusInside is the only status this system ever writes; exit
// tracking is an external concern.
const EntryStatusInside = "INSIDE"

type WorkerStats struct {
	Gate       string `json:"gate"`
	Frames     int    `json:"frames"`
	Errors     int    `json:"errors"`
	Detections int    `json:"detections"`
	Suppressed int    `json:"suppressed"`
	Rejected   int    `json:"rejected"`
	Uptime     int64  `json:"uptime"`
	FPS        int    `json:"fps"`
	Timestamp  int64  `json:"timestamp"`
}

type DispatcherStats struct {
	Delivered int   `json:"delivered"`
	MaxQueued int   `json:"maxQueued"`
	Uptime    int64 `json:"uptime"`
	Timestamp int64 `json:"timestamp"`
}
