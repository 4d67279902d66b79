package company

import (
	"context"
	"errors"
	"time"

	companyDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/company"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Table is the change-feed table name for company rows.
const Table = "companies"

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Company) IsActive() bool {
	return c.Status == StatusActive
}

var ErrNotFound = errors.New("company not found")

// RepositoryAPI is the persistence surface consumed by the session core and
// the provisioning boundary.
type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*Company, error)
	GetStatus(ctx context.Context, id string) (Status, error)
	Create(ctx context.Context, c *Company) error
	SetStatus(ctx context.Context, id string, status Status) error
}

func ToDataModel(c *Company) *companyDatamodel.Company {
	return &companyDatamodel.Company{
		ID:        c.ID,
		Name:      c.Name,
		Status:    string(c.Status),
		Address:   c.Address,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func FromDataModel(dm *companyDatamodel.Company) *Company {
	return &Company{
		ID:        dm.ID,
		Name:      dm.Name,
		Status:    Status(dm.Status),
		Address:   dm.Address,
		Phone:     dm.Phone,
		Email:     dm.Email,
		CreatedAt: dm.CreatedAt,
		UpdatedAt: dm.UpdatedAt,
	}
}
