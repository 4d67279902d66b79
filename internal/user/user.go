package user

import (
	"errors"
	"time"

	profileDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/profile"
)

// Role is the closed set of application roles.
type Role string

const (
	RoleSystemAdministrator Role = "system_administrator"
	RoleSuperAdmin          Role = "super_admin"
	RoleAdmin               Role = "admin"
	RoleFinance             Role = "finance"
	RoleManager             Role = "manager"
	RoleTeamLeader          Role = "team_leader"
	RoleMobileSales         Role = "mobile_sales"
)

// DefaultRole is the lowest-privilege role, assumed when nothing better is
// known about a session.
const DefaultRole = RoleMobileSales

var allRoles = []Role{
	RoleSystemAdministrator,
	RoleSuperAdmin,
	RoleAdmin,
	RoleFinance,
	RoleManager,
	RoleTeamLeader,
	RoleMobileSales,
}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole maps arbitrary input to a known role, falling back to DefaultRole.
func ParseRole(s string) Role {
	r := Role(s)
	if r.Valid() {
		return r
	}
	return DefaultRole
}

func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// PositionLeader marks a mobile sales agent who leads a team; it widens their
// notification scope to the whole team.
const PositionLeader = "Leader"

// Profile is the verified application-level user record.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CompanyID string    `json:"company_id,omitempty"`
	Position  string    `json:"position,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) IsActive() bool {
	return p.Status == StatusActive
}

func (p *Profile) IsSystemAdministrator() bool {
	return p.Role == RoleSystemAdministrator
}

func (p *Profile) IsTeamLeader() bool {
	return p.Role == RoleTeamLeader || (p.Role == RoleMobileSales && p.Position == PositionLeader)
}

var ErrNotFound = errors.New("profile not found")

func ToDataModel(p *Profile) *profileDatamodel.Profile {
	dm := &profileDatamodel.Profile{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      string(p.Role),
		Status:    string(p.Status),
		Position:  p.Position,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.CompanyID != "" {
		companyID := p.CompanyID
		dm.CompanyID = &companyID
	}
	return dm
}

func FromDataModel(dm *profileDatamodel.Profile) *Profile {
	p := &Profile{
		ID:        dm.ID,
		Email:     dm.Email,
		Name:      dm.Name,
		Role:      ParseRole(dm.Role),
		Status:    Status(dm.Status),
		Position:  dm.Position,
		CreatedAt: dm.CreatedAt,
		UpdatedAt: dm.UpdatedAt,
	}
	if dm.CompanyID != nil {
		p.CompanyID = *dm.CompanyID
	}
	return p
}
