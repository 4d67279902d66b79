package postgres

import (
	"context"
	"fmt"
	"time"

	notificationDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/notification"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/notification"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db   *gorm.DB
	feed *realtime.Feed
}

// NewRepository wires the notification store to the change feed so open feeds
// observe inserts and read-state flips live.
func NewRepository(db *gorm.DB, feed *realtime.Feed) *Repository {
	return &Repository{db: db, feed: feed}
}

func (r *Repository) ListAll(ctx context.Context, limit int) ([]notification.Notification, error) {
	var dms []notificationDatamodel.Notification
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return fromDataModels(dms), nil
}

func (r *Repository) ListForUsers(ctx context.Context, userIDs []string, limit int) ([]notification.Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var dms []notificationDatamodel.Notification
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at DESC").
		Limit(limit).
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications for users: %w", err)
	}
	return fromDataModels(dms), nil
}

func (r *Repository) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	dm := toDataModel(n)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if r.feed != nil {
		r.feed.Publish(realtime.ChangeEvent{
			Table:  notification.Table,
			Action: realtime.ActionInsert,
			New:    rowSnapshot(n),
		})
	}
	return nil
}

func (r *Repository) MarkRead(ctx context.Context, id string) error {
	var dm notificationDatamodel.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dm).Error; err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if dm.IsRead {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("mark notification read: %w", result.Error)
	}

	if r.feed != nil {
		old := fromDataModel(&dm)
		updated := *old
		updated.IsRead = true
		r.feed.Publish(realtime.ChangeEvent{
			Table:  notification.Table,
			Action: realtime.ActionUpdate,
			New:    rowSnapshot(&updated),
			Old:    rowSnapshot(old),
		})
	}
	return nil
}

// MarkAllRead flips every unread row for the given users; nil means all rows.
// One UPDATE, no per-row events: open feeds already flipped locally and
// stragglers reconcile on their next Refresh.
func (r *Repository) MarkAllRead(ctx context.Context, userIDs []string) error {
	q := r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("is_read = ?", false)
	if userIDs != nil {
		q = q.Where("user_id IN ?", userIDs)
	}
	if err := q.Update("is_read", true).Error; err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (r *Repository) UnreadCount(ctx context.Context, userIDs []string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("is_read = ?", false)
	if userIDs != nil {
		q = q.Where("user_id IN ?", userIDs)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func toDataModel(n *notification.Notification) *notificationDatamodel.Notification {
	return &notificationDatamodel.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func fromDataModel(dm *notificationDatamodel.Notification) *notification.Notification {
	return &notification.Notification{
		ID:        dm.ID,
		UserID:    dm.UserID,
		Type:      notification.Type(dm.Type),
		Title:     dm.Title,
		Message:   dm.Message,
		IsRead:    dm.IsRead,
		CreatedAt: dm.CreatedAt,
	}
}

func fromDataModels(dms []notificationDatamodel.Notification) []notification.Notification {
	out := make([]notification.Notification, 0, len(dms))
	for i := range dms {
		out = append(out, *fromDataModel(&dms[i]))
	}
	return out
}

func rowSnapshot(n *notification.Notification) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"user_id":    n.UserID,
		"type":       string(n.Type),
		"title":      n.Title,
		"message":    n.Message,
		"is_read":    n.IsRead,
		"created_at": n.CreatedAt,
	}
}
