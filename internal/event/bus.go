// AngelaMos | 2026
// bus.go

package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	MemberPersisted   = "member.persisted"
	MemberSuspended   = "member.suspended"
	MemberUnsuspended = "member.unsuspended"
	PaymentRecorded   = "payment.recorded"
)

// Event describes something that already happened: the write it refers to is
// committed before the event is published. Subscribers therefore run as
// post-commit side effects and cannot influence the originating transaction.
type Event struct {
	Type       string
	MemberID   string
	OccurredAt time.Time
	Payload    any
}

// StatusChange is the payload carried by member.suspended and
// member.unsuspended events.
type StatusChange struct {
	MemberID  string
	Name      string
	PaidUntil *time.Time
}

type Handler func(ctx context.Context, ev Event)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish dispatches synchronously. A panicking subscriber is recovered and
// logged so one misbehaving adapter cannot take down the request that
// triggered it.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[ev.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, ev)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("event handler panicked",
				"event_type", ev.Type,
				"member_id", ev.MemberID,
				"panic", p,
			)
		}
	}()

	h(ctx, ev)
}
