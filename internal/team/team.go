package team

import (
	"context"
	"time"
)

type Team struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	LeaderID  string    `json:"leader_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RepositoryAPI exposes the membership listing the notification feed uses to
// scope a leader's view to their agents.
type RepositoryAPI interface {
	AgentIDsForLeader(ctx context.Context, leaderID string) ([]string, error)
	TeamsForCompany(ctx context.Context, companyID string) ([]*Team, error)
}
