// AngelaMos | 2026
// engine.go

package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
	"github.com/basementlabs/memberd/internal/member"
	"github.com/basementlabs/memberd/internal/payment"
	"github.com/basementlabs/memberd/internal/tariff"
)

// ErrNoPayments is returned by ExpectedPaymentAmount when the member has
// no ledger history to prorate against.
var ErrNoPayments = errors.New("member has no payments")

// MemberStore is the slice of the member repository the engine needs.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (*member.Member, error)
	UpdateStatus(
		ctx context.Context,
		id string,
		suspended bool,
		changedAt time.Time,
	) error
	ListActive(ctx context.Context) ([]member.Member, error)
	ListNotSuspended(ctx context.Context) ([]member.Member, error)
	ListSuspendedSince(
		ctx context.Context,
		since time.Time,
	) ([]member.Member, error)
}

type PaymentStore interface {
	LastForMember(ctx context.Context, memberID string) (*payment.Payment, error)
	MemberIDsOverlapping(
		ctx context.Context,
		start, end time.Time,
	) ([]string, error)
	CountDistinctOverlapping(
		ctx context.Context,
		start, end time.Time,
	) (int, error)
}

type TariffStore interface {
	GetByID(ctx context.Context, id string) (*tariff.Tariff, error)
}

// Engine computes membership payment status from the payment ledger and the
// member's tariff, and drives the suspension state machine.
//
// All status writes go through MemberStore.UpdateStatus, which touches only
// the suspended flag and its timestamp and publishes no persistence event.
// The engine itself reacts to member.persisted events, so routing its writes
// through the general save path would loop.
type Engine struct {
	members  MemberStore
	payments PaymentStore
	tariffs  TariffStore
	policy   config.PolicyConfig
	bus      *event.Bus
	cache    Cache
	now      func() time.Time
}

func NewEngine(
	members MemberStore,
	payments PaymentStore,
	tariffs TariffStore,
	policy config.PolicyConfig,
	bus *event.Bus,
	cache Cache,
) *Engine {
	return &Engine{
		members:  members,
		payments: payments,
		tariffs:  tariffs,
		policy:   policy,
		bus:      bus,
		cache:    cache,
		now:      time.Now,
	}
}

// Subscribe registers the engine on the bus so every general-purpose member
// save re-evaluates the suspension transition.
func (e *Engine) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.MemberPersisted, func(ctx context.Context, ev event.Event) {
		m, err := e.members.GetByID(ctx, ev.MemberID)
		if err != nil {
			slog.Error("suspension check: load member",
				"member_id", ev.MemberID,
				"error", err,
			)
			return
		}

		if err := e.EvaluateSuspension(ctx, m); err != nil {
			slog.Error("suspension check failed",
				"member_id", ev.MemberID,
				"error", err,
			)
		}
	})
}

// PaidUntil returns the end date of the member's most recent payment. The
// second return is false when the ledger is empty.
func (e *Engine) PaidUntil(
	ctx context.Context,
	memberID string,
) (time.Time, bool, error) {
	last, err := e.payments.LastForMember(ctx, memberID)
	if errors.Is(err, core.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	return last.EndDate, true, nil
}

// ExpectedPaymentAmount returns the next payment amount in cents.
//
// Within the proration grace window the member owes the monthly rate plus a
// prorated top-up for the days already consumed unpaid; past the window the
// back-debt is forgiven and only the monthly rate is due. Members without a
// tariff have a monthly rate of zero and therefore owe nothing.
func (e *Engine) ExpectedPaymentAmount(
	ctx context.Context,
	m *member.Member,
) (int64, error) {
	paidUntil, ok, err := e.PaidUntil(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("expected amount: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("expected amount: %w", ErrNoPayments)
	}

	var monthly int64
	if m.TariffID != nil {
		t, err := e.tariffs.GetByID(ctx, *m.TariffID)
		if err != nil {
			return 0, fmt.Errorf("expected amount: %w", err)
		}
		monthly = t.MonthlyCents
	}

	unpaidDays := wholeDaysBetween(paidUntil, e.now())
	if unpaidDays <= 0 {
		return monthly, nil
	}

	if unpaidDays < e.policy.ProrationGraceDays {
		prorated := ceilDiv(
			monthly*int64(unpaidDays),
			int64(e.policy.ProrationMonthDays),
		)
		return monthly + prorated, nil
	}

	return monthly, nil
}

// AccessAllowed reports whether the member may enter the space: not
// suspended, not banned, and on a tariff that grants access.
func (e *Engine) AccessAllowed(
	ctx context.Context,
	m *member.Member,
) (bool, error) {
	if m.Inactive() {
		return false, nil
	}

	if m.TariffID == nil {
		return false, nil
	}

	t, err := e.tariffs.GetByID(ctx, *m.TariffID)
	if err != nil {
		return false, fmt.Errorf("access check: %w", err)
	}

	return t.AccessAllowed, nil
}

// EvaluateSuspension runs the idempotent suspension transition. A member is
// suspended when currently active and either never paid within the first
// month of membership or overdue past the suspension threshold. Members
// already inactive are left untouched.
func (e *Engine) EvaluateSuspension(
	ctx context.Context,
	m *member.Member,
) error {
	if m.Inactive() {
		return nil
	}

	now := e.now()

	paidUntil, hasPayments, err := e.PaidUntil(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("evaluate suspension: %w", err)
	}

	neverPaid := !hasPayments &&
		m.CreatedAt.Before(now.AddDate(0, -e.policy.NeverPaidAfterMonths, 0))

	overdue := hasPayments &&
		paidUntil.Before(now.AddDate(0, 0, -e.policy.SuspensionOverdueDays))

	if !neverPaid && !overdue {
		return nil
	}

	if err := e.members.UpdateStatus(ctx, m.ID, true, now); err != nil {
		return fmt.Errorf("evaluate suspension: %w", err)
	}

	m.Suspended = true
	m.SuspensionChangedAt = &now

	e.bus.Publish(ctx, event.Event{
		Type:     event.MemberSuspended,
		MemberID: m.ID,
		Payload:  e.statusChange(m, hasPayments, paidUntil),
	})

	slog.Info("member suspended",
		"member_id", m.ID,
		"never_paid", neverPaid,
		"overdue", overdue,
	)

	return nil
}

// SweepSuspensions runs the suspension transition over every member not
// already suspended. It returns how many members were evaluated and how many
// ended up suspended. A failure on one member aborts the sweep.
func (e *Engine) SweepSuspensions(
	ctx context.Context,
) (evaluated, suspended int, err error) {
	members, err := e.members.ListNotSuspended(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep suspensions: %w", err)
	}

	for i := range members {
		m := &members[i]
		if err := e.EvaluateSuspension(ctx, m); err != nil {
			return evaluated, suspended, fmt.Errorf(
				"sweep suspensions: member %s: %w", m.ID, err,
			)
		}
		evaluated++
		if m.Suspended {
			suspended++
		}
	}

	return evaluated, suspended, nil
}

// Suspend is the explicit admin operation; unlike EvaluateSuspension it does
// not consult the ledger.
func (e *Engine) Suspend(ctx context.Context, memberID string) (*member.Member, error) {
	return e.setSuspended(ctx, memberID, true, event.MemberSuspended)
}

// Unsuspend restores access and announces it so subscribers can notify the
// community.
func (e *Engine) Unsuspend(ctx context.Context, memberID string) (*member.Member, error) {
	return e.setSuspended(ctx, memberID, false, event.MemberUnsuspended)
}

func (e *Engine) setSuspended(
	ctx context.Context,
	memberID string,
	suspended bool,
	eventType string,
) (*member.Member, error) {
	m, err := e.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if m.Suspended == suspended {
		return m, nil
	}

	now := e.now()
	if err := e.members.UpdateStatus(ctx, memberID, suspended, now); err != nil {
		return nil, err
	}

	m.Suspended = suspended
	m.SuspensionChangedAt = &now

	paidUntil, hasPayments, err := e.PaidUntil(ctx, memberID)
	if err != nil {
		slog.Warn("paid_until lookup failed for status event",
			"member_id", memberID,
			"error", err,
		)
	}

	e.bus.Publish(ctx, event.Event{
		Type:     eventType,
		MemberID: memberID,
		Payload:  e.statusChange(m, hasPayments, paidUntil),
	})

	return m, nil
}

func (e *Engine) statusChange(
	m *member.Member,
	hasPayments bool,
	paidUntil time.Time,
) event.StatusChange {
	change := event.StatusChange{
		MemberID: m.ID,
		Name:     m.DisplayName(),
	}
	if hasPayments {
		change.PaidUntil = &paidUntil
	}
	return change
}

// wholeDaysBetween counts complete 24h days from a to b, ignoring partial
// days. Negative when b precedes a.
func wholeDaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// ceilDiv divides rounding up, which in cent arithmetic matches rounding the
// decimal amount up to the next cent.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
