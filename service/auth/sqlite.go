package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/khaledhikmat/gatewatch-go/model"
	"github.com/khaledhikmat/gatewatch-go/service/lgr"
	"github.com/khaledhikmat/gatewatch-go/service/repo"
)

type userEntity struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:guard"`
	FullName     string
	IsActive     bool `gorm:"default:true"`
	CreatedAt    time.Time
}

func (userEntity) TableName() string { return "users" }

type sqliteService struct {
	db      *gorm.DB
	repoSvc repo.IService
}

// NewSqlite migrates the users table and seeds the default admin and
// technician accounts when they are missing.
func NewSqlite(db *gorm.DB, repoSvc repo.IService) (IService, error) {
	if err := db.AutoMigrate(&userEntity{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}

	svc := &sqliteService{db: db, repoSvc: repoSvc}

	seeds := []struct {
		username, password, role, fullName string
	}{
		{"admin", "admin123", "admin", "Building Manager"},
		{"tech_support", "Support@2025!", "tech", "System Technician"},
	}
	for _, seed := range seeds {
		if err := svc.seedUser(seed.username, seed.password, seed.role, seed.fullName); err != nil {
			return nil, err
		}
	}

	return svc, nil
}

func (svc *sqliteService) seedUser(username, password, role, fullName string) error {
	var count int64
	if err := svc.db.Model(&userEntity{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return svc.db.Create(&userEntity{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		FullName:     fullName,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}).Error
}

func (svc *sqliteService) Login(ctx context.Context, username, password string) (string, error) {
	var user userEntity
	err := svc.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		svc.audit(ctx, username, model.AuditLoginFailed, "Invalid password attempt")
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if !user.IsActive {
		svc.audit(ctx, username, model.AuditLoginFailed, "Inactive user attempted login")
		return "", ErrUserInactive
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		svc.audit(ctx, username, model.AuditLoginFailed, "Invalid password attempt")
		return "", ErrInvalidCredentials
	}

	svc.audit(ctx, username, model.AuditLogin, "User logged in successfully")
	return user.Role, nil
}

func (svc *sqliteService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string, technicianReset bool) error {
	var user userEntity
	if err := svc.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if !technicianReset {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
			return ErrInvalidCredentials
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := svc.db.WithContext(ctx).Model(&userEntity{}).
		Where("username = ?", username).
		Update("password_hash", string(hash)).Error; err != nil {
		return err
	}

	action := model.AuditPassChangeSelf
	if technicianReset {
		action = model.AuditPassResetAdmin
	}
	svc.audit(ctx, username, action, "Password updated successfully")
	return nil
}

func (svc *sqliteService) audit(ctx context.Context, actor, action, details string) {
	if err := svc.repoSvc.AppendAudit(ctx, actor, action, details); err != nil {
		lgr.Logger.Error(
			"failed to append auth audit record",
			slog.String("actor", actor),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}
