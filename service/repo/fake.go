package repo

import (
	"context"
	"sync"

	"github.com/khaledhikmat/gatewatch-go/model"
)

// FakeService is an in-memory repository used by tests and dev wiring.
// Fail* hooks force the matching write to return the given error.
type FakeService struct {
	lock sync.Mutex

	Residents map[string]model.Resident
	Entries   []model.EntryLogRecord
	Audits    []model.AuditLogRecord

	FailInsertResident error
	FailAppendEntryLog error
	FailAppendAudit    error
}

func NewFake() *FakeService {
	return &FakeService{
		Residents: map[string]model.Resident{},
	}
}

func (svc *FakeService) FindResidentByPlate(_ context.Context, plate string) (model.Resident, bool, error) {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	resident, ok := svc.Residents[plate]
	return resident, ok, nil
}

func (svc *FakeService) InsertResident(_ context.Context, resident model.Resident) error {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if svc.FailInsertResident != nil {
		return svc.FailInsertResident
	}
	if _, exists := svc.Residents[resident.PlateNumber]; exists {
		return ErrDuplicatePlate
	}
	svc.Residents[resident.PlateNumber] = resident
	return nil
}

func (svc *FakeService) AppendEntryLog(_ context.Context, record model.EntryLogRecord) error {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if svc.FailAppendEntryLog != nil {
		return svc.FailAppendEntryLog
	}
	svc.Entries = append(svc.Entries, record)
	return nil
}

func (svc *FakeService) AppendAudit(_ context.Context, actor, action, details string) error {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	if svc.FailAppendAudit != nil {
		return svc.FailAppendAudit
	}
	svc.Audits = append(svc.Audits, model.AuditLogRecord{
		Actor:   actor,
		Action:  action,
		Details: details,
	})
	return nil
}

func (svc *FakeService) ListEntryLogs(_ context.Context, limit int) ([]model.EntryLogRecord, error) {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	records := make([]model.EntryLogRecord, len(svc.Entries))
	copy(records, svc.Entries)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (svc *FakeService) ListAudit(_ context.Context, limit int) ([]model.AuditLogRecord, error) {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	records := make([]model.AuditLogRecord, len(svc.Audits))
	copy(records, svc.Audits)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
