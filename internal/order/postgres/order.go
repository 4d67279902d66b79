package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/order"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/order"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db   *gorm.DB
	feed *realtime.Feed
}

func NewRepository(db *gorm.DB, feed *realtime.Feed) *Repository {
	return &Repository{db: db, feed: feed}
}

func (r *Repository) Create(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	dm := toDataModel(o)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	if r.feed != nil {
		r.feed.Publish(realtime.ChangeEvent{
			Table:  order.Table,
			Action: realtime.ActionInsert,
			New:    rowSnapshot(o),
		})
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var dm orderDatamodel.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return fromDataModel(&dm), nil
}

func (r *Repository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*order.Order, error) {
	var dms []orderDatamodel.Order
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("list orders by company: %w", err)
	}
	return fromDataModels(dms), nil
}

func (r *Repository) ListByCreator(ctx context.Context, userID string, limit, offset int) ([]*order.Order, error) {
	var dms []orderDatamodel.Order
	err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("list orders by creator: %w", err)
	}
	return fromDataModels(dms), nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status order.Status, processedAt time.Time) error {
	prev, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&orderDatamodel.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"order_status": string(status),
			"processed_at": processedAt,
			"updated_at":   processedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return order.ErrNotFound
	}

	if r.feed != nil {
		updated := *prev
		updated.OrderStatus = status
		updated.ProcessedAt = &processedAt
		updated.UpdatedAt = processedAt
		r.feed.Publish(realtime.ChangeEvent{
			Table:  order.Table,
			Action: realtime.ActionUpdate,
			New:    rowSnapshot(&updated),
			Old:    rowSnapshot(prev),
		})
	}
	return nil
}

func toDataModel(o *order.Order) *orderDatamodel.Order {
	return &orderDatamodel.Order{
		ID:          o.ID,
		CompanyID:   o.CompanyID,
		ClientName:  o.ClientName,
		CreatedBy:   o.CreatedBy,
		OrderStatus: string(o.OrderStatus),
		TotalCents:  o.TotalCents,
		Notes:       o.Notes,
		ProcessedAt: o.ProcessedAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func fromDataModel(dm *orderDatamodel.Order) *order.Order {
	return &order.Order{
		ID:          dm.ID,
		CompanyID:   dm.CompanyID,
		ClientName:  dm.ClientName,
		CreatedBy:   dm.CreatedBy,
		OrderStatus: order.Status(dm.OrderStatus),
		TotalCents:  dm.TotalCents,
		Notes:       dm.Notes,
		ProcessedAt: dm.ProcessedAt,
		CreatedAt:   dm.CreatedAt,
		UpdatedAt:   dm.UpdatedAt,
	}
}

func fromDataModels(dms []orderDatamodel.Order) []*order.Order {
	out := make([]*order.Order, 0, len(dms))
	for i := range dms {
		out = append(out, fromDataModel(&dms[i]))
	}
	return out
}

func rowSnapshot(o *order.Order) map[string]any {
	return map[string]any{
		"id":           o.ID,
		"company_id":   o.CompanyID,
		"client_name":  o.ClientName,
		"created_by":   o.CreatedBy,
		"order_status": string(o.OrderStatus),
		"total_cents":  o.TotalCents,
	}
}
