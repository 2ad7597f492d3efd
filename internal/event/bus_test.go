// AngelaMos | 2026
// bus_test.go

package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDispatchesInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(MemberPersisted, func(_ context.Context, _ Event) {
		got = append(got, "first")
	})
	bus.Subscribe(MemberPersisted, func(_ context.Context, _ Event) {
		got = append(got, "second")
	})

	bus.Publish(context.Background(), Event{
		Type:     MemberPersisted,
		MemberID: "m1",
	})

	require.Equal(t, []string{"first", "second"}, got)
}

func TestPublishCarriesPayloadAndStampsOccurredAt(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(PaymentRecorded, func(_ context.Context, ev Event) {
		received = ev
	})

	before := time.Now()
	bus.Publish(context.Background(), Event{
		Type:     PaymentRecorded,
		MemberID: "m1",
		Payload:  "the-payload",
	})

	require.Equal(t, "m1", received.MemberID)
	require.Equal(t, "the-payload", received.Payload)
	require.False(t, received.OccurredAt.Before(before))
}

func TestPublishKeepsExplicitOccurredAt(t *testing.T) {
	bus := NewBus()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var received Event
	bus.Subscribe(MemberSuspended, func(_ context.Context, ev Event) {
		received = ev
	})

	bus.Publish(context.Background(), Event{
		Type:       MemberSuspended,
		MemberID:   "m1",
		OccurredAt: at,
	})

	require.Equal(t, at, received.OccurredAt)
}

func TestPublishWithNoSubscribersIsANoOp(t *testing.T) {
	bus := NewBus()

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Type: MemberUnsuspended})
	})
}

func TestPanickingSubscriberDoesNotStopDispatch(t *testing.T) {
	bus := NewBus()

	var ran bool
	bus.Subscribe(MemberPersisted, func(_ context.Context, _ Event) {
		panic("boom")
	})
	bus.Subscribe(MemberPersisted, func(_ context.Context, _ Event) {
		ran = true
	})

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Type: MemberPersisted})
	})
	require.True(t, ran)
}

func TestSubscribersOnlyReceiveTheirEventType(t *testing.T) {
	bus := NewBus()

	var suspendedCount, unsuspendedCount int
	bus.Subscribe(MemberSuspended, func(_ context.Context, _ Event) {
		suspendedCount++
	})
	bus.Subscribe(MemberUnsuspended, func(_ context.Context, _ Event) {
		unsuspendedCount++
	})

	bus.Publish(context.Background(), Event{Type: MemberSuspended})

	require.Equal(t, 1, suspendedCount)
	require.Equal(t, 0, unsuspendedCount)
}
