package repo

import (
	"context"
	"errors"

	"github.com/khaledhikmat/gatewatch-go/model"
)

// ErrDuplicatePlate is returned when inserting a resident whose plate
// number is already registered. The existing record is left untouched.
var ErrDuplicatePlate = errors.New("plate number already registered")

// IService is the persistence boundary. Every write is atomic per call;
// this is the only component allowed to mutate persisted state.
type IService interface {
	FindResidentByPlate(ctx context.Context, plate string) (model.Resident, bool, error)
	InsertResident(ctx context.Context, resident model.Resident) error
	AppendEntryLog(ctx context.Context, record model.EntryLogRecord) error
	AppendAudit(ctx context.Context, actor, action, details string) error
	ListEntryLogs(ctx context.Context, limit int) ([]model.EntryLogRecord, error)
	ListAudit(ctx context.Context, limit int) ([]model.AuditLogRecord, error)
}
