package session

import (
	"context"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// The company watcher runs two redundant channels against the same condition:
// a push subscription on the companies change feed and a periodic poll. Either
// may fire first; the revocation itself is idempotent so double delivery is
// harmless.

// watchCompany replaces the live company subscription. An empty id (system
// administrators, unassigned profiles) tears the subscription down without
// establishing a new one.
func (s *Store) watchCompany(companyID string) {
	var sub *realtime.Subscription
	if companyID != "" && s.feed != nil {
		sub = s.feed.Subscribe(company.Table, realtime.Filter{Column: "id", Equals: companyID}, func(evt realtime.ChangeEvent) {
			if evt.Action != realtime.ActionUpdate {
				return
			}
			status, ok := evt.New["status"].(string)
			if !ok {
				return
			}
			if company.Status(status) != company.StatusActive {
				s.revokeCompanyInactive()
			}
		})
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		return
	}
	old := s.companySub
	s.companySub = sub
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// startPoll is the pull channel: a coarse interval check that catches status
// changes the push channel missed (dropped events, reconnect gaps).
func (s *Store) startPoll() {
	s.watcherWG.Add(1)
	go func() {
		defer s.watcherWG.Done()
		ticker := time.NewTicker(s.cfg.CompanyPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.pollCompanyStatus()
			}
		}
	}()
}

func (s *Store) pollCompanyStatus() {
	// Only verified identities are polled. An optimistic identity carries an
	// advisory company id from session metadata; acting on it could revoke a
	// session off unverified data. The loader re-checks company status as part
	// of verification, so the gap closes as soon as the identity verifies.
	s.mu.Lock()
	var companyID string
	if s.identity != nil && s.identity.Verified && s.identity.Role != user.RoleSystemAdministrator {
		companyID = s.identity.CompanyID
	}
	s.mu.Unlock()

	if companyID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, statusTimeout)
	status, err := s.companies.GetStatus(ctx, companyID)
	cancel()
	if err != nil {
		s.logger.Warn("company status poll failed", "company_id", companyID, "error", err)
		return
	}
	if status != company.StatusActive {
		s.revokeCompanyInactive()
	}
}

func (s *Store) revokeCompanyInactive() {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	if raw == nil {
		return
	}
	s.revokeIfCurrent(raw, true, noticeCompanyDeactivated)
}
