package profile

import "time"

type Profile struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	Email     string    `gorm:"column:email;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;not null"`
	Role      string    `gorm:"column:role;not null;default:mobile_sales"`
	Status    string    `gorm:"column:status;not null;default:active"`
	CompanyID *string   `gorm:"column:company_id;type:uuid"`
	Position  string    `gorm:"column:position"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Profile) TableName() string {
	return "profiles"
}
