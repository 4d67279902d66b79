package postgres

import (
	"context"
	"errors"
	"fmt"

	profileDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/profile"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*user.Profile, error) {
	var dm profileDatamodel.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return user.FromDataModel(&dm), nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*user.Profile, error) {
	var dm profileDatamodel.Profile
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return user.FromDataModel(&dm), nil
}

func (r *Repository) Create(ctx context.Context, p *user.Profile) error {
	dm := user.ToDataModel(p)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, p *user.Profile) error {
	dm := user.ToDataModel(p)
	result := r.db.WithContext(ctx).Model(&profileDatamodel.Profile{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":     dm.Name,
			"role":     dm.Role,
			"status":   dm.Status,
			"position": dm.Position,
		})
	if result.Error != nil {
		return fmt.Errorf("update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status user.Status) error {
	result := r.db.WithContext(ctx).Model(&profileDatamodel.Profile{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("set profile status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *Repository) ListByCompany(ctx context.Context, companyID string) ([]*user.Profile, error) {
	var dms []profileDatamodel.Profile
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("list profiles by company: %w", err)
	}

	profiles := make([]*user.Profile, 0, len(dms))
	for i := range dms {
		profiles = append(profiles, user.FromDataModel(&dms[i]))
	}
	return profiles, nil
}
