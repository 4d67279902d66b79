package order_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/notification"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/order"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

func TestOrder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Order Suite")
}

// Mock repository for testing.
type mockOrderRepository struct {
	orders      map[string]*order.Order
	createError error
	nextID      int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*order.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if m.createError != nil {
		return m.createError
	}
	m.nextID++
	o.ID = string(rune('a' + m.nextID - 1))
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *mockOrderRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range m.orders {
		if o.CompanyID == companyID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListByCreator(ctx context.Context, userID string, limit, offset int) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range m.orders {
		if o.CreatedBy == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, processedAt time.Time) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.OrderStatus = status
	o.ProcessedAt = &processedAt
	return nil
}

// Mock notification repository capturing created notifications.
type mockNotificationSink struct {
	created     []notification.Notification
	createError error
}

func (m *mockNotificationSink) ListAll(ctx context.Context, limit int) ([]notification.Notification, error) {
	return nil, nil
}

func (m *mockNotificationSink) ListForUsers(ctx context.Context, userIDs []string, limit int) ([]notification.Notification, error) {
	return nil, nil
}

func (m *mockNotificationSink) Create(ctx context.Context, n *notification.Notification) error {
	if m.createError != nil {
		return m.createError
	}
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationSink) MarkRead(ctx context.Context, id string) error { return nil }

func (m *mockNotificationSink) MarkAllRead(ctx context.Context, userIDs []string) error { return nil }

// Mock profile lister for testing.
type mockProfileLister struct {
	profiles  []*user.Profile
	listError error
}

func (m *mockProfileLister) ListByCompany(ctx context.Context, companyID string) ([]*user.Profile, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.profiles, nil
}

var _ = Describe("OrderService", func() {
	var (
		svc      *order.Service
		repo     *mockOrderRepository
		sink     *mockNotificationSink
		profiles *mockProfileLister
	)

	const companyID = "company-1"

	BeforeEach(func() {
		repo = newMockOrderRepository()
		sink = &mockNotificationSink{}
		profiles = &mockProfileLister{profiles: []*user.Profile{
			{ID: "admin-1", Role: user.RoleAdmin, CompanyID: companyID},
			{ID: "finance-1", Role: user.RoleFinance, CompanyID: companyID},
			{ID: "manager-1", Role: user.RoleManager, CompanyID: companyID},
			{ID: "agent-1", Role: user.RoleMobileSales, CompanyID: companyID},
		}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = order.NewService(repo, sink, profiles, logger)
	})

	Describe("CreateOrder", func() {
		Context("with a valid payload", func() {
			It("should persist a pending order", func() {
				// Given
				dto := order.CreateOrderDTO{ClientName: "Sari-Sari Store", TotalCents: 250000}

				// When
				result, err := svc.CreateOrder(context.Background(), "agent-1", companyID, dto)

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(result.OrderStatus).To(Equal(order.StatusPending))
				Expect(result.CompanyID).To(Equal(companyID))
				Expect(result.CreatedBy).To(Equal("agent-1"))
				Expect(result.ID).ToNot(BeEmpty())
			})

			It("should notify the company back-office roles only", func() {
				// Given
				dto := order.CreateOrderDTO{ClientName: "Sari-Sari Store", TotalCents: 250000}

				// When
				_, err := svc.CreateOrder(context.Background(), "agent-1", companyID, dto)

				// Then
				Expect(err).ToNot(HaveOccurred())
				var recipients []string
				for _, n := range sink.created {
					Expect(n.Type).To(Equal(notification.TypeOrderCreated))
					recipients = append(recipients, n.UserID)
				}
				Expect(recipients).To(ConsistOf("admin-1", "finance-1", "manager-1"))
			})

			It("should not fail the order when member listing fails", func() {
				// Given
				profiles.listError = errors.New("database unavailable")
				dto := order.CreateOrderDTO{ClientName: "Sari-Sari Store", TotalCents: 250000}

				// When
				result, err := svc.CreateOrder(context.Background(), "agent-1", companyID, dto)

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(result).ToNot(BeNil())
				Expect(sink.created).To(BeEmpty())
			})
		})

		Context("with an invalid payload", func() {
			It("should reject a missing client name", func() {
				// Given
				dto := order.CreateOrderDTO{TotalCents: 100}

				// When
				_, err := svc.CreateOrder(context.Background(), "agent-1", companyID, dto)

				// Then
				Expect(err).To(HaveOccurred())
			})

			It("should reject a non-positive total", func() {
				// Given
				dto := order.CreateOrderDTO{ClientName: "Sari-Sari Store", TotalCents: 0}

				// When
				_, err := svc.CreateOrder(context.Background(), "agent-1", companyID, dto)

				// Then
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("GetOrder", func() {
		var orderID string

		BeforeEach(func() {
			result, err := svc.CreateOrder(context.Background(), "agent-1", companyID,
				order.CreateOrderDTO{ClientName: "Sari-Sari Store", TotalCents: 100})
			Expect(err).ToNot(HaveOccurred())
			orderID = result.ID
		})

		It("should return orders of the viewer's company", func() {
			result, err := svc.GetOrder(context.Background(), orderID, companyID, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.ID).To(Equal(orderID))
		})

		It("should hide orders of other companies as not found", func() {
			_, err := svc.GetOrder(context.Background(), orderID, "company-2", false)
			Expect(err).To(MatchError(order.ErrNotFound))
		})

		It("should let cross-tenant viewers see any order", func() {
			result, err := svc.GetOrder(context.Background(), orderID, "company-2", true)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.ID).To(Equal(orderID))
		})
	})

	Describe("UpdateStatus", func() {
		var orderID string

		BeforeEach(func() {
			result, err := svc.CreateOrder(context.Background(), "agent-1", companyID,
				order.CreateOrderDTO{ClientName: "Sari-Sari Store", TotalCents: 100})
			Expect(err).ToNot(HaveOccurred())
			orderID = result.ID
			sink.created = nil
		})

		It("should approve a pending order and notify the creator", func() {
			// When
			result, err := svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusApproved)})

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(result.OrderStatus).To(Equal(order.StatusApproved))
			Expect(result.ProcessedAt).ToNot(BeNil())
			Expect(sink.created).To(HaveLen(1))
			Expect(sink.created[0].UserID).To(Equal("agent-1"))
			Expect(sink.created[0].Type).To(Equal(notification.TypeOrderStatus))
		})

		It("should reject a pending order", func() {
			result, err := svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusRejected)})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.OrderStatus).To(Equal(order.StatusRejected))
		})

		It("should fulfill only an approved order", func() {
			// Given pending, fulfilling is not allowed
			_, err := svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusFulfilled)})
			Expect(err).To(MatchError(order.ErrInvalidTransition))

			// When approved first
			_, err = svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusApproved)})
			Expect(err).ToNot(HaveOccurred())

			// Then fulfilling succeeds
			result, err := svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusFulfilled)})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.OrderStatus).To(Equal(order.StatusFulfilled))
		})

		It("should treat rejected and fulfilled as terminal", func() {
			// Given
			_, err := svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusRejected)})
			Expect(err).ToNot(HaveOccurred())

			// When
			_, err = svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusApproved)})

			// Then
			Expect(err).To(MatchError(order.ErrInvalidTransition))
		})

		It("should not let another company move the order", func() {
			_, err := svc.UpdateStatus(context.Background(), orderID, "company-2", false,
				order.UpdateOrderStatusDTO{Status: string(order.StatusApproved)})
			Expect(err).To(MatchError(order.ErrNotFound))
		})

		It("should reject unknown target statuses", func() {
			_, err := svc.UpdateStatus(context.Background(), orderID, companyID, false,
				order.UpdateOrderStatusDTO{Status: "archived"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("listing", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				_, err := svc.CreateOrder(context.Background(), "agent-1", companyID,
					order.CreateOrderDTO{ClientName: "Store", TotalCents: 100})
				Expect(err).ToNot(HaveOccurred())
			}
			_, err := svc.CreateOrder(context.Background(), "agent-2", "company-2",
				order.CreateOrderDTO{ClientName: "Store", TotalCents: 100})
			Expect(err).ToNot(HaveOccurred())
		})

		It("should list orders by company", func() {
			out, err := svc.ListCompanyOrders(context.Background(), companyID, order.ListOrdersDTO{})
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(HaveLen(3))
		})

		It("should list orders by creator", func() {
			out, err := svc.ListMyOrders(context.Background(), "agent-2", order.ListOrdersDTO{})
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(HaveLen(1))
		})
	})
})
