package order

import "time"

type Order struct {
	ID          string     `gorm:"primaryKey;type:uuid"`
	CompanyID   string     `gorm:"column:company_id;type:uuid;not null;index"`
	ClientName  string     `gorm:"column:client_name;not null"`
	CreatedBy   string     `gorm:"column:created_by;type:uuid;not null"`
	OrderStatus string     `gorm:"column:order_status;default:pending"`
	TotalCents  int64      `gorm:"column:total_cents;not null"`
	Notes       string     `gorm:"column:notes"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
