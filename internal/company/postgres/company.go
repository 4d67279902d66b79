package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	companyDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"gorm.io/gorm"
)

type Repository struct {
	db   *gorm.DB
	feed *realtime.Feed
}

// NewRepository wires the company store to the change feed; status writes are
// published so session watchers observe them without polling.
func NewRepository(db *gorm.DB, feed *realtime.Feed) *Repository {
	return &Repository{db: db, feed: feed}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*company.Company, error) {
	var dm companyDatamodel.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, company.ErrNotFound
		}
		return nil, fmt.Errorf("get company by id: %w", err)
	}
	return company.FromDataModel(&dm), nil
}

func (r *Repository) GetStatus(ctx context.Context, id string) (company.Status, error) {
	var status string
	row := r.db.WithContext(ctx).Raw(`SELECT status FROM companies WHERE id = ?`, id).Row()
	if err := row.Scan(&status); err != nil {
		return "", fmt.Errorf("get company status: %w", err)
	}
	return company.Status(status), nil
}

func (r *Repository) Create(ctx context.Context, c *company.Company) error {
	dm := company.ToDataModel(c)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return fmt.Errorf("create company: %w", err)
	}

	if r.feed != nil {
		r.feed.Publish(realtime.ChangeEvent{
			Table:  company.Table,
			Action: realtime.ActionInsert,
			New:    rowSnapshot(c.ID, string(c.Status)),
		})
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status company.Status) error {
	prev, err := r.GetStatus(ctx, id)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&companyDatamodel.Company{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("set company status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return company.ErrNotFound
	}

	if r.feed != nil {
		r.feed.Publish(realtime.ChangeEvent{
			Table:  company.Table,
			Action: realtime.ActionUpdate,
			New:    rowSnapshot(id, string(status)),
			Old:    rowSnapshot(id, string(prev)),
		})
	}
	return nil
}

func rowSnapshot(id, status string) map[string]any {
	return map[string]any{
		"id":     id,
		"status": status,
	}
}
