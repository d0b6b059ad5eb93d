package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

// VendorModel is the GORM model for the vendors table.
type VendorModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	VendorType         string          `gorm:"type:varchar(20);not null;index"`
	FreelancerCategory string          `gorm:"type:varchar(30);index"`
	Name               string          `gorm:"type:varchar(150);not null"`
	City               string          `gorm:"type:varchar(100);not null;index"`
	Description        string          `gorm:"type:text"`
	ContactNumber      string          `gorm:"type:varchar(30)"`
	ProfilePhoto       string          `gorm:"type:text"`
	Offering           json.RawMessage `gorm:"type:jsonb;not null"`
	Portfolio          json.RawMessage `gorm:"type:jsonb"`
	BlockedDates       json.RawMessage `gorm:"type:jsonb"`
	Rating             float64         `gorm:"type:decimal(3,2);not null;default:0"`
	TotalReviews       int             `gorm:"not null;default:0"`
	Version            int64           `gorm:"not null;default:1"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (VendorModel) TableName() string { return "vendors" }

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// GormVendorRepository implements vendor.VendorRepository using GORM.
type GormVendorRepository struct {
	db *gorm.DB
}

// NewGormVendorRepository creates a new GormVendorRepository.
func NewGormVendorRepository(db *gorm.DB) *GormVendorRepository {
	return &GormVendorRepository{db: db}
}

// FindByID retrieves a vendor by its unique identifier.
func (r *GormVendorRepository) FindByID(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error) {
	var model VendorModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Vendor", id.String())
		}
		return nil, fmt.Errorf("failed to find vendor by ID: %w", err)
	}
	return toVendorDomain(&model)
}

// FindByUserID retrieves the vendor owned by the given account.
func (r *GormVendorRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*vendor.Vendor, error) {
	var model VendorModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Vendor", "user "+userID.String())
		}
		return nil, fmt.Errorf("failed to find vendor by user: %w", err)
	}
	return toVendorDomain(&model)
}

// List returns vendors matching the filter, best rated first. City is a
// case-insensitive substring match.
func (r *GormVendorRepository) List(ctx context.Context, filter vendor.Filter) ([]*vendor.Vendor, error) {
	q := r.db.WithContext(ctx)
	if filter.Type != "" {
		q = q.Where("vendor_type = ?", string(filter.Type))
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		q = q.Where(`LOWER(city) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(city))+"%")
	}
	if filter.Category != "" {
		q = q.Where("freelancer_category = ?", string(filter.Category))
	}

	var models []VendorModel
	if err := q.Order("rating DESC, created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}

	vendors := make([]*vendor.Vendor, len(models))
	for i := range models {
		v, err := toVendorDomain(&models[i])
		if err != nil {
			return nil, err
		}
		vendors[i] = v
	}
	return vendors, nil
}

// Save persists a new vendor.
func (r *GormVendorRepository) Save(ctx context.Context, v *vendor.Vendor) error {
	model, err := toVendorModel(v)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return mapVendorWriteError(err)
	}
	return nil
}

// Update persists vendor changes with optimistic locking.
func (r *GormVendorRepository) Update(ctx context.Context, v *vendor.Vendor) error {
	model, err := toVendorModel(v)
	if err != nil {
		return err
	}
	previousVersion := v.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&VendorModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"freelancer_category": model.FreelancerCategory,
			"name":                model.Name,
			"city":                model.City,
			"description":         model.Description,
			"contact_number":      model.ContactNumber,
			"profile_photo":       model.ProfilePhoto,
			"offering":            model.Offering,
			"portfolio":           model.Portfolio,
			"blocked_dates":       model.BlockedDates,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update vendor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("vendor was modified by another transaction")
	}
	return nil
}

func mapVendorWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewConflictError("this account already has a vendor profile")
	}
	return fmt.Errorf("failed to save vendor: %w", err)
}

// --- Conversions ---

func toVendorModel(v *vendor.Vendor) (*VendorModel, error) {
	offering, err := json.Marshal(v.Offering())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offering: %w", err)
	}
	portfolio, err := json.Marshal(nonNil(v.Portfolio()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal portfolio: %w", err)
	}
	blocked, err := json.Marshal(nonNil(v.BlockedDates()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal blocked dates: %w", err)
	}

	p := v.Profile()
	return &VendorModel{
		ID:                 v.ID(),
		UserID:             v.UserID(),
		VendorType:         string(v.Type()),
		FreelancerCategory: string(v.FreelancerCategory()),
		Name:               p.Name,
		City:               p.City,
		Description:        p.Description,
		ContactNumber:      p.ContactNumber,
		ProfilePhoto:       p.ProfilePhoto,
		Offering:           offering,
		Portfolio:          portfolio,
		BlockedDates:       blocked,
		Rating:             v.Rating(),
		TotalReviews:       v.TotalReviews(),
		Version:            v.Version(),
		CreatedAt:          v.CreatedAt(),
		UpdatedAt:          v.UpdatedAt(),
	}, nil
}

func toVendorDomain(m *VendorModel) (*vendor.Vendor, error) {
	vendorType, err := vendor.ParseVendorType(m.VendorType)
	if err != nil {
		return nil, err
	}

	var offering vendor.Offering
	switch vendorType {
	case vendor.TypeVenue:
		var o vendor.VenueOffering
		err = json.Unmarshal(m.Offering, &o)
		offering = o
	case vendor.TypeFreelancer:
		var o vendor.FreelancerOffering
		err = json.Unmarshal(m.Offering, &o)
		offering = o
	case vendor.TypeEventTeam:
		var o vendor.EventTeamOffering
		err = json.Unmarshal(m.Offering, &o)
		offering = o
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s offering: %w", vendorType, err)
	}

	var portfolio, blocked []string
	if len(m.Portfolio) > 0 {
		if err := json.Unmarshal(m.Portfolio, &portfolio); err != nil {
			return nil, fmt.Errorf("failed to unmarshal portfolio: %w", err)
		}
	}
	if len(m.BlockedDates) > 0 {
		if err := json.Unmarshal(m.BlockedDates, &blocked); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blocked dates: %w", err)
		}
	}

	return vendor.Reconstruct(
		m.ID, m.UserID,
		vendor.Profile{
			Name:          m.Name,
			City:          m.City,
			Description:   m.Description,
			ContactNumber: m.ContactNumber,
			ProfilePhoto:  m.ProfilePhoto,
		},
		portfolio, blocked,
		m.Rating, m.TotalReviews,
		offering,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
