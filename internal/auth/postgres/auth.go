package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByEmail(email string) (string, string, auth.Metadata, error) {
	var (
		userID       string
		passwordHash string
		meta         auth.Metadata
		metaRole     sql.NullString
		metaName     sql.NullString
		metaCompany  sql.NullString
	)

	query := `SELECT id, password_hash, meta_role, meta_name, meta_company_id
	          FROM auth_users WHERE email = ?`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userID, &passwordHash, &metaRole, &metaName, &metaCompany); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", meta, fmt.Errorf("user not found")
		}
		return "", "", meta, err
	}

	meta.Role = metaRole.String
	meta.Name = metaName.String
	meta.CompanyID = metaCompany.String
	return userID, passwordHash, meta, nil
}

func (r *Repository) Create(userID, email, passwordHash string, meta auth.Metadata) error {
	err := r.db.Exec(`INSERT INTO auth_users (id, email, password_hash, meta_role, meta_name, meta_company_id, created_at, updated_at)
	                  VALUES (?, ?, ?, ?, ?, ?, now(), now())`,
		userID, email, passwordHash, meta.Role, meta.Name, meta.CompanyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return auth.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *Repository) UpdatePassword(userID, passwordHash string) error {
	return r.db.Exec(`UPDATE auth_users SET password_hash = ?, updated_at = now() WHERE id = ?`,
		passwordHash, userID).Error
}
