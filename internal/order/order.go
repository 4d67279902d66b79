package order

import (
	"context"
	"errors"
	"time"
)

// Table is the change-feed table name orders are published under.
const Table = "orders"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusFulfilled Status = "fulfilled"
)

// transitions is the allowed status lifecycle. Rejected and fulfilled are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusFulfilled},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	ClientName  string     `json:"client_name"`
	CreatedBy   string     `json:"created_by"`
	OrderStatus Status     `json:"order_status"`
	TotalCents  int64      `json:"total_cents"`
	Notes       string     `json:"notes,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Repository defines the data access methods for orders
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*Order, error)
	ListByCreator(ctx context.Context, userID string, limit, offset int) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, processedAt time.Time) error
}
