package postgres

import (
	"context"
	"fmt"

	teamDatamodel "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/datamodel/team"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/team"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AgentIDsForLeader lists the user ids of every agent on teams led by leaderID.
func (r *Repository) AgentIDsForLeader(ctx context.Context, leaderID string) ([]string, error) {
	query := `SELECT tm.user_id
	          FROM team_members tm
	          JOIN teams t ON tm.team_id = t.id
	          WHERE t.leader_id = ?`

	rows, err := r.db.WithContext(ctx).Raw(query, leaderID).Rows()
	if err != nil {
		return nil, fmt.Errorf("agent ids for leader: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) TeamsForCompany(ctx context.Context, companyID string) ([]*team.Team, error) {
	var dms []teamDatamodel.Team
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("name").
		Find(&dms).Error
	if err != nil {
		return nil, fmt.Errorf("teams for company: %w", err)
	}

	teams := make([]*team.Team, 0, len(dms))
	for i := range dms {
		teams = append(teams, &team.Team{
			ID:        dms[i].ID,
			CompanyID: dms[i].CompanyID,
			Name:      dms[i].Name,
			LeaderID:  dms[i].LeaderID,
			CreatedAt: dms[i].CreatedAt,
		})
	}
	return teams, nil
}
