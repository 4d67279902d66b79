package team

import "time"

type Team struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	CompanyID string    `gorm:"column:company_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	LeaderID  string    `gorm:"column:leader_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Team) TableName() string {
	return "teams"
}

type TeamMember struct {
	ID        int64     `gorm:"primaryKey"`
	TeamID    string    `gorm:"column:team_id;type:uuid;not null;index"`
	UserID    string    `gorm:"column:user_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (TeamMember) TableName() string {
	return "team_members"
}
