package authuser

import "time"

// AuthUser is the credential row owned by the auth provider. The meta_* columns
// hold the advisory metadata captured at signup; verified profile data lives in
// the profiles table and always supersedes them.
type AuthUser struct {
	ID            string    `gorm:"primaryKey;type:uuid"`
	Email         string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash  string    `gorm:"column:password_hash;not null"`
	MetaRole      string    `gorm:"column:meta_role"`
	MetaName      string    `gorm:"column:meta_name"`
	MetaCompanyID string    `gorm:"column:meta_company_id"`
	CreatedAt     time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time `gorm:"column:updated_at;default:now()"`
}

func (AuthUser) TableName() string {
	return "auth_users"
}
