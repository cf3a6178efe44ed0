package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/khaledhikmat/gatewatch-go/model"
)

type residentEntity struct {
	ID          uint   `gorm:"primaryKey"`
	PlateNumber string `gorm:"uniqueIndex;not null"`
	OwnerName   string
	FlatNumber  string
	PhoneNumber string
	CreatedAt   time.Time
}

func (residentEntity) TableName() string { return "residents" }

type entryLogEntity struct {
	ID          uint      `gorm:"primaryKey"`
	PlateNumber string    `gorm:"index;not null"`
	EntryTime   time.Time `gorm:"not null"`
	ExitTime    *time.Time
	GateName    string
	ImagePath   string
	Status      string `gorm:"default:INSIDE"`
}

func (entryLogEntity) TableName() string { return "entry_logs" }

type auditLogEntity struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"index;not null"`
	Actor     string    `gorm:"not null"`
	Action    string    `gorm:"not null"`
	Details   string
}

func (auditLogEntity) TableName() string { return "audit_logs" }

// OpenDatabase opens (or creates) the sqlite database and runs migrations.
// The handle is shared with the auth service.
func OpenDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&residentEntity{}, &entryLogEntity{}, &auditLogEntity{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return db, nil
}

type sqliteService struct {
	db *gorm.DB
}

func NewSqlite(db *gorm.DB) IService {
	return &sqliteService{db: db}
}

func (svc *sqliteService) FindResidentByPlate(ctx context.Context, plate string) (model.Resident, bool, error) {
	var entity residentEntity
	err := svc.db.WithContext(ctx).Where("plate_number = ?", plate).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Resident{}, false, nil
	}
	if err != nil {
		return model.Resident{}, false, err
	}

	return model.Resident{
		PlateNumber: entity.PlateNumber,
		OwnerName:   entity.OwnerName,
		FlatNumber:  entity.FlatNumber,
		PhoneNumber: entity.PhoneNumber,
	}, true, nil
}

func (svc *sqliteService) InsertResident(ctx context.Context, resident model.Resident) error {
	entity := residentEntity{
		PlateNumber: resident.PlateNumber,
		OwnerName:   resident.OwnerName,
		FlatNumber:  resident.FlatNumber,
		PhoneNumber: resident.PhoneNumber,
		CreatedAt:   time.Now(),
	}
	err := svc.db.WithContext(ctx).Create(&entity).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePlate
	}
	return err
}

func (svc *sqliteService) AppendEntryLog(ctx context.Context, record model.EntryLogRecord) error {
	entity := entryLogEntity{
		PlateNumber: record.PlateNumber,
		EntryTime:   record.EntryTime,
		ExitTime:    record.ExitTime,
		GateName:    record.GateName,
		ImagePath:   record.ImagePath,
		Status:      record.Status,
	}
	return svc.db.WithContext(ctx).Create(&entity).Error
}

func (svc *sqliteService) AppendAudit(ctx context.Context, actor, action, details string) error {
	entity := auditLogEntity{
		Timestamp: time.Now(),
		Actor:     actor,
		Action:    action,
		Details:   details,
	}
	return svc.db.WithContext(ctx).Create(&entity).Error
}

func (svc *sqliteService) ListEntryLogs(ctx context.Context, limit int) ([]model.EntryLogRecord, error) {
	query := svc.db.WithContext(ctx).Model(&entryLogEntity{}).Order("entry_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entities []entryLogEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, err
	}

	records := make([]model.EntryLogRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, model.EntryLogRecord{
			PlateNumber: e.PlateNumber,
			EntryTime:   e.EntryTime,
			ExitTime:    e.ExitTime,
			GateName:    e.GateName,
			ImagePath:   e.ImagePath,
			Status:      e.Status,
		})
	}
	return records, nil
}

func (svc *sqliteService) ListAudit(ctx context.Context, limit int) ([]model.AuditLogRecord, error) {
	query := svc.db.WithContext(ctx).Model(&auditLogEntity{}).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entities []auditLogEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, err
	}

	records := make([]model.AuditLogRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, model.AuditLogRecord{
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Action:    e.Action,
			Details:   e.Details,
		})
	}
	return records, nil
}
