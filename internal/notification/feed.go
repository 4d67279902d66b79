package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
)

// persistTimeout bounds the background writes behind MarkRead and MarkAllRead.
const persistTimeout = 5 * time.Second

// Feed is one viewer's live notification list. It is seeded with a scoped
// fetch, then patched in place by change-feed events. The unread counter
// moves only on real transitions: +1 when an unread item enters the list,
// -1 exactly once when an item flips from unread to read, and +1 again when
// a flip is undone, so it always equals the number of unread items held.
type Feed struct {
	scope  Scope
	repo   RepositoryAPI
	logger *slog.Logger

	sub *realtime.Subscription

	mu     sync.Mutex
	items  []Notification
	unread int
	closed bool
}

// OpenFeed seeds the feed and attaches it to the live change stream.
func OpenFeed(ctx context.Context, scope Scope, repo RepositoryAPI, hub *realtime.Feed, logger *slog.Logger) (*Feed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Feed{
		scope:  scope,
		repo:   repo,
		logger: logger,
	}

	if err := f.Refresh(ctx); err != nil {
		return nil, err
	}

	if hub != nil {
		f.sub = hub.Subscribe(Table, realtime.Filter{}, f.onChange)
	}
	return f, nil
}

// Refresh re-runs the scoped fetch, replacing the in-memory list. This is the
// only reconciliation path for events the push stream dropped.
func (f *Feed) Refresh(ctx context.Context) error {
	var (
		items []Notification
		err   error
	)
	if f.scope.All {
		items, err = f.repo.ListAll(ctx, FeedCap)
	} else {
		items, err = f.repo.ListForUsers(ctx, f.scope.UserIDs, FeedCap)
	}
	if err != nil {
		return err
	}

	unread := 0
	for _, n := range items {
		if !n.IsRead {
			unread++
		}
	}

	f.mu.Lock()
	f.items = items
	f.unread = unread
	f.mu.Unlock()
	return nil
}

// Items returns a snapshot of the list, newest first.
func (f *Feed) Items() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// MarkRead flips one notification locally, then persists in the background.
// The local state is authoritative for this feed; a failed write surfaces on
// the next Refresh.
func (f *Feed) MarkRead(id string) {
	f.mu.Lock()
	for i := range f.items {
		if f.items[i].ID == id {
			if !f.items[i].IsRead {
				f.items[i].IsRead = true
				f.unread--
			}
			break
		}
	}
	f.mu.Unlock()

	go func() {
		ctx, cancel := internal.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := f.repo.MarkRead(ctx, id); err != nil {
			f.logger.Warn("mark-read write failed", "notification_id", id, "error", err)
		}
	}()
}

// MarkAllRead flips every notification locally, then persists in the background.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	for i := range f.items {
		f.items[i].IsRead = true
	}
	f.unread = 0
	scope := f.scope
	f.mu.Unlock()

	go func() {
		ctx, cancel := internal.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		var err error
		if scope.All {
			err = f.repo.MarkAllRead(ctx, nil)
		} else {
			err = f.repo.MarkAllRead(ctx, scope.UserIDs)
		}
		if err != nil {
			f.logger.Warn("mark-all-read write failed", "error", err)
		}
	}()
}

// Close detaches the feed from the live stream.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	if f.sub != nil {
		f.sub.Close()
	}
}

func (f *Feed) onChange(evt realtime.ChangeEvent) {
	switch evt.Action {
	case realtime.ActionInsert:
		n, ok := fromRow(evt.New)
		if !ok || !f.scope.contains(n.UserID) {
			return
		}
		f.insert(n)
	case realtime.ActionUpdate:
		n, ok := fromRow(evt.New)
		if !ok {
			return
		}
		f.patch(n)
	}
}

func (f *Feed) insert(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for i := range f.items {
		if f.items[i].ID == n.ID {
			return
		}
	}
	f.items = append([]Notification{n}, f.items...)
	if len(f.items) > FeedCap {
		dropped := f.items[FeedCap:]
		f.items = f.items[:FeedCap]
		for _, d := range dropped {
			if !d.IsRead {
				f.unread--
			}
		}
	}
	if !n.IsRead {
		f.unread++
	}
}

func (f *Feed) patch(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for i := range f.items {
		if f.items[i].ID != n.ID {
			continue
		}
		switch {
		case !f.items[i].IsRead && n.IsRead:
			f.unread--
		case f.items[i].IsRead && !n.IsRead:
			f.unread++
		}
		f.items[i] = n
		return
	}
}

func fromRow(row map[string]any) (Notification, bool) {
	if row == nil {
		return Notification{}, false
	}
	id, ok := row["id"].(string)
	if !ok || id == "" {
		return Notification{}, false
	}
	n := Notification{ID: id}
	if v, ok := row["user_id"].(string); ok {
		n.UserID = v
	}
	if v, ok := row["type"].(string); ok {
		n.Type = Type(v)
	}
	if v, ok := row["title"].(string); ok {
		n.Title = v
	}
	if v, ok := row["message"].(string); ok {
		n.Message = v
	}
	if v, ok := row["is_read"].(bool); ok {
		n.IsRead = v
	}
	if v, ok := row["created_at"].(time.Time); ok {
		n.CreatedAt = v
	}
	return n, true
}
