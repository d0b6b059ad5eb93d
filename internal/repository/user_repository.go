package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eventoh/service-booking/internal/domain/user"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

// UserModel is a read model over the shared users table.
type UserModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:varchar(150);not null"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone     string    `gorm:"type:varchar(30)"`
	Role      string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (UserModel) TableName() string { return "users" }

// GormUserDirectory resolves contact details from the users table.
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory creates a new GormUserDirectory.
func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// FindContact implements user.Directory.
func (d *GormUserDirectory) FindContact(ctx context.Context, id uuid.UUID) (user.Contact, error) {
	var model UserModel
	if err := d.db.WithContext(ctx).
		Select("id", "name", "email", "phone").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.Contact{}, domain.NewNotFoundError("User", id.String())
		}
		return user.Contact{}, fmt.Errorf("failed to find user: %w", err)
	}
	return user.Contact{ID: model.ID, Name: model.Name, Email: model.Email, Phone: model.Phone}, nil
}
