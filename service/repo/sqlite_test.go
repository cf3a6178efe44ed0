package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/gatewatch-go/model"
)

func newTestRepo(t *testing.T) IService {
	t.Helper()

	db, err := OpenDatabase(filepath.Join(t.TempDir(), "gatewatch.db"))
	require.NoError(t, err)
	return NewSqlite(db)
}

func TestInsertAndFindResident(t *testing.T) {
	svc := newTestRepo(t)
	ctx := context.Background()

	resident := model.Resident{
		PlateNumber: "MH01AB1234",
		OwnerName:   "J. Doe",
		FlatNumber:  "204",
		PhoneNumber: "9998887777",
	}
	require.NoError(t, svc.InsertResident(ctx, resident))

	found, ok, err := svc.FindResidentByPlate(ctx, "MH01AB1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resident, found)
}

func TestFindResidentMissIsNotAnError(t *testing.T) {
	svc := newTestRepo(t)

	_, ok, err := svc.FindResidentByPlate(context.Background(), "KA05ZZ0001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertResidentDuplicatePlate(t *testing.T) {
	svc := newTestRepo(t)
	ctx := context.Background()

	first := model.Resident{PlateNumber: "MH01AB1234", OwnerName: "J. Doe", FlatNumber: "204"}
	require.NoError(t, svc.InsertResident(ctx, first))

	second := model.Resident{PlateNumber: "MH01AB1234", OwnerName: "Impostor", FlatNumber: "999"}
	err := svc.InsertResident(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicatePlate)

	// The original record is untouched.
	found, ok, err := svc.FindResidentByPlate(ctx, "MH01AB1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "J. Doe", found.OwnerName)
	assert.Equal(t, "204", found.FlatNumber)
}

func TestAppendAndListEntryLogs(t *testing.T) {
	svc := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i, plate := range []string{"MH01AB1234", "KA05ZZ0001", "DL03CC7777"} {
		require.NoError(t, svc.AppendEntryLog(ctx, model.EntryLogRecord{
			PlateNumber: plate,
			EntryTime:   base.Add(time.Duration(i) * time.Minute),
			GateName:    "main-gate",
			ImagePath:   "images/x.jpg",
			Status:      model.EntryStatusInside,
		}))
	}

	records, err := svc.ListEntryLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first.
	assert.Equal(t, "DL03CC7777", records[0].PlateNumber)
	assert.Equal(t, "MH01AB1234", records[2].PlateNumber)

	limited, err := svc.ListEntryLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "DL03CC7777", limited[0].PlateNumber)
}

func TestAppendAndListAudit(t *testing.T) {
	svc := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendAudit(ctx, "admin", model.AuditManualEntryCreated, "Manually allowed KA05ZZ0001"))
	require.NoError(t, svc.AppendAudit(ctx, "admin", model.AuditAddResident, "Added new vehicle KA05ZZ0001 for Flat 101"))

	records, err := svc.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	actions := []string{records[0].Action, records[1].Action}
	assert.Contains(t, actions, model.AuditManualEntryCreated)
	assert.Contains(t, actions, model.AuditAddResident)
	assert.Equal(t, "admin", records[0].Actor)
	assert.False(t, records[0].Timestamp.IsZero())
}
