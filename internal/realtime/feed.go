package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ChangeEvent is a row-level change notification carrying new and old snapshots.
type ChangeEvent struct {
	ID         string         `json:"id"`
	Table      string         `json:"table"`
	Action     Action         `json:"action"`
	New        map[string]any `json:"new,omitempty"`
	Old        map[string]any `json:"old,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter narrows a subscription to rows whose column equals the given value.
// A zero Filter matches every row of the table.
type Filter struct {
	Column string
	Equals string
}

func (f Filter) matches(evt ChangeEvent) bool {
	if f.Column == "" {
		return true
	}
	if v, ok := stringField(evt.New, f.Column); ok && v == f.Equals {
		return true
	}
	if v, ok := stringField(evt.Old, f.Column); ok && v == f.Equals {
		return true
	}
	return false
}

func stringField(row map[string]any, column string) (string, bool) {
	if row == nil {
		return "", false
	}
	v, ok := row[column]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

type Handler func(ChangeEvent)

type subscriber struct {
	table   string
	filter  Filter
	handler Handler
	ch      chan ChangeEvent
}

// Subscription is the handle returned by Subscribe; Close detaches it.
type Subscription struct {
	id   int
	feed *Feed
	once sync.Once
}

func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.feed.remove(s.id)
	})
}

// Feed fan-outs row change events to table-scoped subscribers. Handlers run on
// the publisher's goroutine and must not block; channel subscribers are
// non-blocking with drop-on-slow semantics.
type Feed struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	next   int
	logger *slog.Logger
}

func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		subs:   make(map[int]*subscriber),
		logger: logger,
	}
}

// Subscribe registers a handler for change events on table matching filter.
func (f *Feed) Subscribe(table string, filter Filter, handler Handler) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	f.subs[id] = &subscriber{table: table, filter: filter, handler: handler}

	f.logger.Debug("change feed subscription added",
		"table", table,
		"filter_column", filter.Column,
		"subscriber_id", id)

	return &Subscription{id: id, feed: f}
}

// SubscribeChan registers a channel subscriber; the channel is closed when the
// provided context ends. Used by the SSE transport.
func (f *Feed) SubscribeChan(ctx context.Context, table string, filter Filter) <-chan ChangeEvent {
	ch := make(chan ChangeEvent, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = &subscriber{table: table, filter: filter, ch: ch}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
		f.mu.Unlock()
	}()

	return ch
}

// Publish delivers the event to every matching subscriber. The event id and
// timestamp are filled in when absent.
func (f *Feed) Publish(evt ChangeEvent) {
	if evt.ID == "" {
		evt.ID = ulid.Make().String()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	// Handlers are collected under the lock but invoked outside it, so a
	// handler may Close its own subscription (or add new ones) mid-delivery.
	var handlers []Handler

	f.mu.RLock()
	for _, sub := range f.subs {
		if sub.table != evt.Table || !sub.filter.matches(evt) {
			continue
		}
		if sub.handler != nil {
			handlers = append(handlers, sub.handler)
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking publishers.
			f.logger.Warn("change feed subscriber slow, dropping event",
				"table", evt.Table, "event_id", evt.ID)
		}
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

func (f *Feed) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

// SubscriberCount reports active subscribers, used by tests and health checks.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
