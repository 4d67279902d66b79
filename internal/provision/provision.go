package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// Mailer delivers transactional mail; failures are opaque pass/fail.
type Mailer interface {
	SendEmail(to, subject, html string) error
}

// AuthRegistrar creates credential records with advisory metadata.
type AuthRegistrar interface {
	CreateUser(ctx context.Context, email, password string, meta auth.Metadata) (string, error)
}

// CompanyWriter is the subset of the company repository provisioning needs.
type CompanyWriter interface {
	SetStatus(ctx context.Context, id string, status company.Status) error
}

// UserWriter flips account status on existing profiles.
type UserWriter interface {
	SetStatus(ctx context.Context, id string, status user.Status) error
}

// Service implements the privileged provisioning boundary: it is the only
// code path that creates auth users and tenants. It writes company and
// profile rows in one transaction; the credential record is created first
// and reported if the transaction then fails.
type Service struct {
	db        *gorm.DB
	registrar AuthRegistrar
	companies CompanyWriter
	users     UserWriter
	mail      Mailer
	logger    *slog.Logger
}

func NewService(db *gorm.DB, registrar AuthRegistrar, companies CompanyWriter, users UserWriter, mail Mailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:        db,
		registrar: registrar,
		companies: companies,
		users:     users,
		mail:      mail,
		logger:    logger,
	}
}

// CreateAuthUser registers a credential record plus its profile row. The
// metadata bag seeds the optimistic identity a session shows before
// verification completes.
func (s *Service) CreateAuthUser(ctx context.Context, dto CreateUserDTO) (*user.Profile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role := user.ParseRole(dto.Role)
	meta := auth.Metadata{Role: string(role), Name: dto.Name, CompanyID: dto.CompanyID}

	userID, err := s.registrar.CreateUser(ctx, dto.Email, dto.Password, meta)
	if err != nil {
		s.logger.Error("failed to create auth user", "email", dto.Email, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	profile := &user.Profile{
		ID:        userID,
		Email:     dto.Email,
		Name:      dto.Name,
		Role:      role,
		Status:    user.StatusActive,
		CompanyID: dto.CompanyID,
		Position:  dto.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(user.ToDataModel(profile)).Error; err != nil {
		s.logger.Error("profile row creation failed after auth user",
			"user_id", userID, "email", dto.Email, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.sendWelcome(dto.Email, dto.Name)

	s.logger.Info("auth user provisioned", "user_id", userID, "role", role)
	return profile, nil
}

// CreateCompany provisions a tenant: the company row and its admin profile
// land in a single transaction, with the admin's credential record created
// up front.
func (s *Service) CreateCompany(ctx context.Context, dto CreateCompanyDTO) (*company.Company, *user.Profile, error) {
	if err := dto.Validate(); err != nil {
		return nil, nil, err
	}

	companyID := uuid.NewString()
	meta := auth.Metadata{Role: string(user.RoleAdmin), Name: dto.AdminName, CompanyID: companyID}

	adminID, err := s.registrar.CreateUser(ctx, dto.AdminEmail, dto.AdminPassword, meta)
	if err != nil {
		s.logger.Error("failed to create admin auth user", "email", dto.AdminEmail, "error", err)
		return nil, nil, err
	}

	now := time.Now().UTC()
	c := &company.Company{
		ID:        companyID,
		Name:      dto.Name,
		Status:    company.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := &user.Profile{
		ID:        adminID,
		Email:     dto.AdminEmail,
		Name:      dto.AdminName,
		Role:      user.RoleAdmin,
		Status:    user.StatusActive,
		CompanyID: companyID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(company.ToDataModel(c)).Error; err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		if err := tx.Create(user.ToDataModel(admin)).Error; err != nil {
			return fmt.Errorf("create admin profile: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("company provisioning transaction failed, credential record is orphaned",
			"company", dto.Name, "admin_id", adminID, "error", err)
		return nil, nil, err
	}

	s.sendWelcome(dto.AdminEmail, dto.AdminName)

	s.logger.Info("company provisioned", "company_id", companyID, "admin_id", adminID)
	return c, admin, nil
}

// SetCompanyStatus flips tenant enablement; deactivation is observed live by
// every session watcher on that company.
func (s *Service) SetCompanyStatus(ctx context.Context, id string, status company.Status) error {
	if err := s.companies.SetStatus(ctx, id, status); err != nil {
		s.logger.Error("failed to set company status", "company_id", id, "error", err)
		return err
	}
	s.logger.Info("company status changed", "company_id", id, "status", status)
	return nil
}

// SetUserStatus restricts or restores an account; restriction takes effect on
// the session's next verification cycle.
func (s *Service) SetUserStatus(ctx context.Context, id string, status user.Status) error {
	if err := s.users.SetStatus(ctx, id, status); err != nil {
		s.logger.Error("failed to set user status", "user_id", id, "error", err)
		return err
	}
	s.logger.Info("user status changed", "user_id", id, "status", status)
	return nil
}

// SendEmail forwards to the mail client.
func (s *Service) SendEmail(to, subject, html string) error {
	return s.mail.SendEmail(to, subject, html)
}

func (s *Service) sendWelcome(email, name string) {
	if s.mail == nil {
		return
	}
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your account is ready. Sign in with this email address.</p>", name)
	if err := s.mail.SendEmail(email, "Your account is ready", html); err != nil {
		s.logger.Warn("welcome mail not queued", "email", email, "error", err)
	}
}
