package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/pipeline"
	"github.com/khaledhikmat/gatewatch-go/service/imagestore"
	"github.com/khaledhikmat/gatewatch-go/service/repo"
)

type State string

const (
	StateEmpty     State = "EMPTY"
	StateKnown     State = "KNOWN"
	StateUnknown   State = "UNKNOWN"
	StateApproved  State = "APPROVED"
	StateCancelled State = "CANCELLED"
)

var (
	// ErrCaptureUnavailable is recoverable: recapture was requested but no
	// live frame exists. The workflow state is unchanged.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrBlankPlate rejects approval of a blank plate; the workflow stays open.
	ErrBlankPlate = errors.New("license plate is required")
	// ErrDecisionClosed guards operations on a terminal workflow.
	ErrDecisionClosed = errors.New("decision already closed")
)

// CommitError reports which commit stage failed so that partial success
// (e.g. resident added but log append failing) surfaces distinctly.
type CommitError struct {
	Stage string
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed at %s: %v", e.Stage, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

type Services struct {
	RepoSvc  repo.IService
	ImageSvc imagestore.IService
	Registry *pipeline.Registry
	Detector *pipeline.Detector
}

// Workflow is the state machine for one entry decision: it resolves a
// recognized (or manually supplied) plate against the resident registry,
// supports correction and recapture, and commits the outcome exactly once.
// It is driven from a single goroutine; its context is discarded on
// completion or cancellation.
type Workflow struct {
	svcs  Services
	actor string

	state        State
	originalText string
	currentText  string
	gateName     string

	image    gocv.Mat
	hasImage bool

	// Display defaults on Known, operator-supplied otherwise. Editable.
	OwnerName   string
	FlatNumber  string
	PhoneNumber string

	// Commit progress, so a retried Approve never duplicates a write.
	auditDone    bool
	residentDone bool
	imagePath    string
}

// FromDetection builds a workflow for a recognized plate. The workflow
// takes ownership of the event's crop. Call Check to resolve identity.
func FromDetection(event pipeline.DetectionEvent, actor string, svcs Services) *Workflow {
	return &Workflow{
		svcs:         svcs,
		actor:        actor,
		state:        StateEmpty,
		originalText: event.Text,
		currentText:  event.Text,
		gateName:     event.Gate.Name,
		image:        event.Crop,
		hasImage:     true,
	}
}

// Manual builds a workflow with no recognizer text: a pure manual entry.
// gateName may still name a live camera, which keeps recapture available.
func Manual(gateName, actor string, svcs Services) *Workflow {
	return &Workflow{
		svcs:     svcs,
		actor:    actor,
		state:    StateEmpty,
		gateName: gateName,
	}
}

func (w *Workflow) State() State {
	return w.state
}

func (w *Workflow) PlateText() string {
	return w.currentText
}

func (w *Workflow) OriginalText() string {
	return w.originalText
}

func (w *Workflow) GateName() string {
	return w.gateName
}

func (w *Workflow) HasImage() bool {
	return w.hasImage
}

// SetPlate replaces the plate text and re-resolves identity.
func (w *Workflow) SetPlate(ctx context.Context, text string) error {
	if w.closed() {
		return ErrDecisionClosed
	}
	w.currentText = strings.ToUpper(strings.TrimSpace(text))
	return w.Check(ctx)
}

// Check resolves the current plate text against the resident registry:
// blank goes to Empty, a registry hit to Known with fields pre-filled, a
// miss to Unknown with fields cleared.
func (w *Workflow) Check(ctx context.Context) error {
	if w.closed() {
		return ErrDecisionClosed
	}

	if w.currentText == "" {
		w.state = StateEmpty
		return nil
	}

	resident, found, err := w.svcs.RepoSvc.FindResidentByPlate(ctx, w.currentText)
	if err != nil {
		return fmt.Errorf("error looking up resident: %w", err)
	}

	if found {
		w.state = StateKnown
		w.OwnerName = resident.OwnerName
		w.FlatNumber = resident.FlatNumber
		w.PhoneNumber = resident.PhoneNumber
		return nil
	}

	w.state = StateUnknown
	w.OwnerName = ""
	w.FlatNumber = ""
	w.PhoneNumber = ""
	return nil
}

// Recapture re-runs the detection pipeline synchronously on the owning
// camera's latest frame. The worker is resolved through the registry at
// call time, so restarted or removed workers degrade to a recoverable
// capture-unavailable condition with no state change.
func (w *Workflow) Recapture(ctx context.Context) error {
	if w.closed() {
		return ErrDecisionClosed
	}
	if w.svcs.Registry == nil || w.svcs.Detector == nil {
		return ErrCaptureUnavailable
	}

	worker, ok := w.svcs.Registry.Lookup(w.gateName)
	if !ok {
		return ErrCaptureUnavailable
	}

	frame, ok := worker.LatestFrame()
	if !ok {
		return ErrCaptureUnavailable
	}
	defer frame.Close()

	reading, ok := w.svcs.Detector.ProcessFrame(frame, w.gateName)
	if !ok {
		// No reading: keep prior text and image.
		return nil
	}

	if w.hasImage {
		w.image.Close()
	}
	w.image = reading.Crop
	w.hasImage = true
	return w.SetPlate(ctx, reading.Text)
}

// Approve commits the decision: audit trail, optional new resident,
// image persistence and exactly one entry log record. Any repository
// failure is surfaced as a retryable CommitError and the workflow stays
// open; stages already completed are not repeated on retry.
func (w *Workflow) Approve(ctx context.Context) error {
	if w.closed() {
		return ErrDecisionClosed
	}
	if w.currentText == "" {
		return ErrBlankPlate
	}

	if !w.auditDone {
		if err := w.appendDecisionAudit(ctx); err != nil {
			return &CommitError{Stage: "audit", Err: err}
		}
		w.auditDone = true
	}

	if w.state == StateUnknown && !w.residentDone && w.OwnerName != "" && w.FlatNumber != "" {
		resident := model.Resident{
			PlateNumber: w.currentText,
			OwnerName:   w.OwnerName,
			FlatNumber:  w.FlatNumber,
			PhoneNumber: w.PhoneNumber,
		}
		if err := w.svcs.RepoSvc.InsertResident(ctx, resident); err != nil {
			return &CommitError{Stage: "resident", Err: err}
		}
		if err := w.svcs.RepoSvc.AppendAudit(ctx, w.actor, model.AuditAddResident,
			fmt.Sprintf("Added new vehicle %s for Flat %s", w.currentText, w.FlatNumber)); err != nil {
			return &CommitError{Stage: "resident audit", Err: err}
		}
		w.residentDone = true
	}

	if w.imagePath == "" {
		w.imagePath = imagestore.ManualPath
		if w.hasImage {
			path, err := w.svcs.ImageSvc.SaveCrop(w.currentText, w.image)
			if err != nil {
				w.imagePath = ""
				return &CommitError{Stage: "image", Err: err}
			}
			w.imagePath = path
		}
	}

	record := model.EntryLogRecord{
		PlateNumber: w.currentText,
		EntryTime:   time.Now(),
		GateName:    w.gateName,
		ImagePath:   w.imagePath,
		Status:      model.EntryStatusInside,
	}
	if err := w.svcs.RepoSvc.AppendEntryLog(ctx, record); err != nil {
		return &CommitError{Stage: "entrylog", Err: err}
	}

	w.state = StateApproved
	w.release()
	return nil
}

func (w *Workflow) appendDecisionAudit(ctx context.Context) error {
	switch {
	case w.originalText == "":
		return w.svcs.RepoSvc.AppendAudit(ctx, w.actor, model.AuditManualEntryCreated,
			fmt.Sprintf("Manually allowed %s", w.currentText))
	case w.currentText != w.originalText:
		return w.svcs.RepoSvc.AppendAudit(ctx, w.actor, model.AuditManualCorrection,
			fmt.Sprintf("OCR read '%s', User changed to '%s'", w.originalText, w.currentText))
	default:
		// Standard approval; nothing to record.
		return nil
	}
}

// Cancel closes the workflow with no persistence and releases the image.
func (w *Workflow) Cancel() {
	if w.closed() {
		return
	}
	w.state = StateCancelled
	w.release()
}

// Close releases the held image buffer. Idempotent; safe after any
// terminal state and required if the workflow is abandoned mid-flight.
func (w *Workflow) Close() {
	w.release()
}

func (w *Workflow) closed() bool {
	return w.state == StateApproved || w.state == StateCancelled
}

func (w *Workflow) release() {
	if w.hasImage {
		w.image.Close()
		w.hasImage = false
	}
}
