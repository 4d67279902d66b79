package notification

import (
	"context"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// Table is the change-feed table name notifications are published under.
const Table = "notifications"

// FeedCap bounds how many notifications a feed holds in memory.
const FeedCap = 100

type Type string

const (
	TypeOrderCreated Type = "order_created"
	TypeOrderStatus  Type = "order_status"
	TypeSystem       Type = "system"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// RepositoryAPI is the persistence surface for notifications.
type RepositoryAPI interface {
	ListAll(ctx context.Context, limit int) ([]Notification, error)
	ListForUsers(ctx context.Context, userIDs []string, limit int) ([]Notification, error)
	Create(ctx context.Context, n *Notification) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userIDs []string) error
}

// TeamLister resolves the agent ids reporting to a leader.
type TeamLister interface {
	AgentIDsForLeader(ctx context.Context, leaderID string) ([]string, error)
}

// Scope describes whose notifications a viewer sees. Admins see everything;
// a mobile sales leader sees their own plus their team's; everyone else sees
// only their own.
type Scope struct {
	All     bool
	UserIDs []string
}

func (s Scope) contains(userID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ScopeFor computes the notification scope for a viewer. Team membership is
// resolved once, at feed open; a team change takes effect on the next open.
func ScopeFor(ctx context.Context, viewerID string, role user.Role, position string, teams TeamLister) (Scope, error) {
	if role == user.RoleAdmin || role == user.RoleSuperAdmin {
		return Scope{All: true}, nil
	}

	ids := []string{viewerID}
	if role == user.RoleMobileSales && position == user.PositionLeader && teams != nil {
		agents, err := teams.AgentIDsForLeader(ctx, viewerID)
		if err != nil {
			return Scope{}, err
		}
		for _, a := range agents {
			if a != viewerID {
				ids = append(ids, a)
			}
		}
	}
	return Scope{UserIDs: ids}, nil
}
