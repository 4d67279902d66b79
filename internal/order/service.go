package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/notification"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// ProfileLister resolves company members for notification targeting.
type ProfileLister interface {
	ListByCompany(ctx context.Context, companyID string) ([]*user.Profile, error)
}

// Service handles order business logic
type Service struct {
	repo          Repository
	notifications notification.RepositoryAPI
	profiles      ProfileLister
	logger        *slog.Logger
}

func NewService(repo Repository, notifications notification.RepositoryAPI, profiles ProfileLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:          repo,
		notifications: notifications,
		profiles:      profiles,
		logger:        logger,
	}
}

// CreateOrder persists a pending order and fans a notification out to the
// company's back-office roles. Notification failures never fail the order.
func (s *Service) CreateOrder(ctx context.Context, creatorID, companyID string, dto CreateOrderDTO) (*Order, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("order validation failed", "error", err, "user_id", creatorID)
		return nil, err
	}

	now := time.Now().UTC()
	o := &Order{
		CompanyID:   companyID,
		ClientName:  dto.ClientName,
		CreatedBy:   creatorID,
		OrderStatus: StatusPending,
		TotalCents:  dto.TotalCents,
		Notes:       dto.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		s.logger.Error("failed to create order", "error", err, "user_id", creatorID)
		return nil, err
	}

	s.notifyBackOffice(ctx, o)

	s.logger.Info("order created",
		"order_id", o.ID,
		"company_id", companyID,
		"created_by", creatorID,
		"total_cents", o.TotalCents)
	return o, nil
}

// GetOrder retrieves an order with company scoping: a viewer only sees orders
// of their own company unless they hold a cross-tenant role.
func (s *Service) GetOrder(ctx context.Context, id, viewerCompanyID string, crossTenant bool) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !crossTenant && o.CompanyID != viewerCompanyID {
		s.logger.Warn("cross-company order access denied", "order_id", id, "viewer_company", viewerCompanyID)
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListCompanyOrders(ctx context.Context, companyID string, dto ListOrdersDTO) ([]*Order, error) {
	dto.Normalize()
	return s.repo.ListByCompany(ctx, companyID, dto.Limit, dto.Offset)
}

func (s *Service) ListMyOrders(ctx context.Context, userID string, dto ListOrdersDTO) ([]*Order, error) {
	dto.Normalize()
	return s.repo.ListByCreator(ctx, userID, dto.Limit, dto.Offset)
}

// UpdateStatus moves an order through its lifecycle and notifies the creator.
func (s *Service) UpdateStatus(ctx context.Context, id, viewerCompanyID string, crossTenant bool, dto UpdateOrderStatusDTO) (*Order, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	o, err := s.GetOrder(ctx, id, viewerCompanyID, crossTenant)
	if err != nil {
		return nil, err
	}

	next := Status(dto.Status)
	if !CanTransition(o.OrderStatus, next) {
		s.logger.Warn("order transition rejected",
			"order_id", id, "from", o.OrderStatus, "to", next)
		return nil, ErrInvalidTransition
	}

	processedAt := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, next, processedAt); err != nil {
		s.logger.Error("failed to update order status", "error", err, "order_id", id)
		return nil, err
	}

	o.OrderStatus = next
	o.ProcessedAt = &processedAt
	o.UpdatedAt = processedAt

	s.notifyCreator(ctx, o)

	s.logger.Info("order status updated", "order_id", id, "status", next)
	return o, nil
}

// backOfficeRoles receive a notification when a new order lands.
var backOfficeRoles = map[user.Role]struct{}{
	user.RoleAdmin:   {},
	user.RoleManager: {},
	user.RoleFinance: {},
}

func (s *Service) notifyBackOffice(ctx context.Context, o *Order) {
	members, err := s.profiles.ListByCompany(ctx, o.CompanyID)
	if err != nil {
		s.logger.Warn("failed to list company members for notification", "error", err, "company_id", o.CompanyID)
		return
	}

	title := fmt.Sprintf("New order for %s", o.ClientName)
	message := fmt.Sprintf("Order total %d placed by a sales agent.", o.TotalCents)
	for _, m := range members {
		if _, ok := backOfficeRoles[m.Role]; !ok {
			continue
		}
		n := &notification.Notification{
			UserID:  m.ID,
			Type:    notification.TypeOrderCreated,
			Title:   title,
			Message: message,
		}
		if err := s.notifications.Create(ctx, n); err != nil {
			s.logger.Warn("failed to create order notification", "error", err, "user_id", m.ID)
		}
	}
}

func (s *Service) notifyCreator(ctx context.Context, o *Order) {
	n := &notification.Notification{
		UserID:  o.CreatedBy,
		Type:    notification.TypeOrderStatus,
		Title:   fmt.Sprintf("Order for %s is now %s", o.ClientName, o.OrderStatus),
		Message: fmt.Sprintf("Order %s moved to %s.", o.ID, o.OrderStatus),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Warn("failed to create status notification", "error", err, "order_id", o.ID)
	}
}
