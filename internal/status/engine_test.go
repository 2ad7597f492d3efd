// AngelaMos | 2026
// engine_test.go

package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
	"github.com/basementlabs/memberd/internal/member"
	"github.com/basementlabs/memberd/internal/payment"
	"github.com/basementlabs/memberd/internal/tariff"
)

var testPolicy = config.PolicyConfig{
	ProrationGraceDays:    14,
	SuspensionOverdueDays: 15,
	NeverPaidAfterMonths:  1,
	ProrationMonthDays:    30,
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type statusWrite struct {
	id        string
	suspended bool
	changedAt time.Time
}

type fakeMemberStore struct {
	members        map[string]*member.Member
	writes         []statusWrite
	notSuspended   []member.Member
	active         []member.Member
	suspendedSince []member.Member
}

func newFakeMemberStore(members ...*member.Member) *fakeMemberStore {
	s := &fakeMemberStore{members: make(map[string]*member.Member)}
	for _, m := range members {
		s.members[m.ID] = m
	}
	return s
}

func (s *fakeMemberStore) GetByID(_ context.Context, id string) (*member.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return m, nil
}

func (s *fakeMemberStore) UpdateStatus(
	_ context.Context,
	id string,
	suspended bool,
	changedAt time.Time,
) error {
	s.writes = append(s.writes, statusWrite{id, suspended, changedAt})
	return nil
}

func (s *fakeMemberStore) ListActive(_ context.Context) ([]member.Member, error) {
	return s.active, nil
}

func (s *fakeMemberStore) ListNotSuspended(_ context.Context) ([]member.Member, error) {
	return s.notSuspended, nil
}

func (s *fakeMemberStore) ListSuspendedSince(
	_ context.Context,
	_ time.Time,
) ([]member.Member, error) {
	return s.suspendedSince, nil
}

type fakePaymentStore struct {
	last         map[string]*payment.Payment
	overlapping  []string
	counts       map[string]int
	overlapCalls int
	countCalls   int
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		last:   make(map[string]*payment.Payment),
		counts: make(map[string]int),
	}
}

func (s *fakePaymentStore) LastForMember(
	_ context.Context,
	memberID string,
) (*payment.Payment, error) {
	p, ok := s.last[memberID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (s *fakePaymentStore) MemberIDsOverlapping(
	_ context.Context,
	_, _ time.Time,
) ([]string, error) {
	s.overlapCalls++
	return s.overlapping, nil
}

func (s *fakePaymentStore) CountDistinctOverlapping(
	_ context.Context,
	start, _ time.Time,
) (int, error) {
	s.countCalls++
	return s.counts[start.Format("2006-01-02")], nil
}

type fakeTariffStore struct {
	tariffs map[string]*tariff.Tariff
}

func newFakeTariffStore(tariffs ...*tariff.Tariff) *fakeTariffStore {
	s := &fakeTariffStore{tariffs: make(map[string]*tariff.Tariff)}
	for _, t := range tariffs {
		s.tariffs[t.ID] = t
	}
	return s
}

func (s *fakeTariffStore) GetByID(_ context.Context, id string) (*tariff.Tariff, error) {
	t, ok := s.tariffs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

type eventRecorder struct {
	events []event.Event
}

func (r *eventRecorder) subscribe(bus *event.Bus, types ...string) {
	for _, typ := range types {
		bus.Subscribe(typ, func(_ context.Context, ev event.Event) {
			r.events = append(r.events, ev)
		})
	}
}

func newTestEngine(
	members *fakeMemberStore,
	payments *fakePaymentStore,
	tariffs *fakeTariffStore,
) (*Engine, *eventRecorder) {
	bus := event.NewBus()
	rec := &eventRecorder{}
	rec.subscribe(bus, event.MemberSuspended, event.MemberUnsuspended)

	e := NewEngine(members, payments, tariffs, testPolicy, bus, NewMemoryCache())
	e.now = func() time.Time { return testNow }
	return e, rec
}

func strPtr(s string) *string {
	return &s
}

func paidThrough(memberID string, end time.Time) *payment.Payment {
	return &payment.Payment{
		ID:        "p-" + memberID,
		MemberID:  memberID,
		StartDate: end.AddDate(0, -1, 0),
		EndDate:   end,
		PaidAt:    end.AddDate(0, -1, 0),
	}
}

func TestPaidUntilEmptyLedger(t *testing.T) {
	e, _ := newTestEngine(newFakeMemberStore(), newFakePaymentStore(), newFakeTariffStore())

	_, ok, err := e.PaidUntil(context.Background(), "m1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPaidUntilReturnsLastEndDate(t *testing.T) {
	payments := newFakePaymentStore()
	end := testNow.AddDate(0, 0, 5)
	payments.last["m1"] = paidThrough("m1", end)

	e, _ := newTestEngine(newFakeMemberStore(), payments, newFakeTariffStore())

	got, ok, err := e.PaidUntil(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, end, got)
}

func TestExpectedPaymentAmountNoTariffIsZero(t *testing.T) {
	payments := newFakePaymentStore()
	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -10))

	e, _ := newTestEngine(newFakeMemberStore(), payments, newFakeTariffStore())

	// A zero monthly rate prorates to zero, within the grace window or not.
	amount, err := e.ExpectedPaymentAmount(context.Background(), &member.Member{ID: "m1"})
	require.NoError(t, err)
	require.Zero(t, amount)

	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -20))
	amount, err = e.ExpectedPaymentAmount(context.Background(), &member.Member{ID: "m1"})
	require.NoError(t, err)
	require.Zero(t, amount)
}

func TestExpectedPaymentAmountNoPayments(t *testing.T) {
	tariffs := newFakeTariffStore(&tariff.Tariff{ID: "t1", MonthlyCents: 500000})
	e, _ := newTestEngine(newFakeMemberStore(), newFakePaymentStore(), tariffs)

	m := &member.Member{ID: "m1", TariffID: strPtr("t1")}
	_, err := e.ExpectedPaymentAmount(context.Background(), m)
	require.ErrorIs(t, err, ErrNoPayments)

	// The ledger precondition applies to no-tariff members too.
	_, err = e.ExpectedPaymentAmount(context.Background(), &member.Member{ID: "m2"})
	require.ErrorIs(t, err, ErrNoPayments)
}

func TestExpectedPaymentAmountCoverageStillCurrent(t *testing.T) {
	tariffs := newFakeTariffStore(&tariff.Tariff{ID: "t1", MonthlyCents: 500000})
	payments := newFakePaymentStore()
	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, 10))

	e, _ := newTestEngine(newFakeMemberStore(), payments, tariffs)

	m := &member.Member{ID: "m1", TariffID: strPtr("t1")}
	amount, err := e.ExpectedPaymentAmount(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, int64(500000), amount)
}

func TestExpectedPaymentAmountProratesWithinGraceWindow(t *testing.T) {
	tariffs := newFakeTariffStore(&tariff.Tariff{ID: "t1", MonthlyCents: 500000})
	payments := newFakePaymentStore()
	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -10))

	e, _ := newTestEngine(newFakeMemberStore(), payments, tariffs)

	// Ten unpaid days at 5000.00 a month: 5000.00 + ceil(5000.00*10/30).
	m := &member.Member{ID: "m1", TariffID: strPtr("t1")}
	amount, err := e.ExpectedPaymentAmount(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, int64(500000+166667), amount)
}

func TestExpectedPaymentAmountForgivesDebtPastGraceWindow(t *testing.T) {
	tariffs := newFakeTariffStore(&tariff.Tariff{ID: "t1", MonthlyCents: 500000})
	payments := newFakePaymentStore()
	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -20))

	e, _ := newTestEngine(newFakeMemberStore(), payments, tariffs)

	m := &member.Member{ID: "m1", TariffID: strPtr("t1")}
	amount, err := e.ExpectedPaymentAmount(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, int64(500000), amount)
}

func TestExpectedPaymentAmountAtGraceBoundary(t *testing.T) {
	tariffs := newFakeTariffStore(&tariff.Tariff{ID: "t1", MonthlyCents: 500000})
	payments := newFakePaymentStore()
	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -testPolicy.ProrationGraceDays))

	e, _ := newTestEngine(newFakeMemberStore(), payments, tariffs)

	// Exactly at the window edge the top-up no longer applies.
	m := &member.Member{ID: "m1", TariffID: strPtr("t1")}
	amount, err := e.ExpectedPaymentAmount(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, int64(500000), amount)
}

func TestAccessAllowed(t *testing.T) {
	tariffs := newFakeTariffStore(
		&tariff.Tariff{ID: "full", AccessAllowed: true},
		&tariff.Tariff{ID: "remote", AccessAllowed: false},
	)
	e, _ := newTestEngine(newFakeMemberStore(), newFakePaymentStore(), tariffs)

	tests := []struct {
		name string
		m    member.Member
		want bool
	}{
		{"active on access tariff", member.Member{ID: "m1", TariffID: strPtr("full")}, true},
		{"active on non-access tariff", member.Member{ID: "m2", TariffID: strPtr("remote")}, false},
		{"no tariff", member.Member{ID: "m3"}, false},
		{"suspended", member.Member{ID: "m4", TariffID: strPtr("full"), Suspended: true}, false},
		{"banned", member.Member{ID: "m5", TariffID: strPtr("full"), Banned: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.AccessAllowed(context.Background(), &tt.m)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateSuspensionLeavesNewMemberAlone(t *testing.T) {
	members := newFakeMemberStore()
	e, rec := newTestEngine(members, newFakePaymentStore(), newFakeTariffStore())

	m := &member.Member{ID: "m1", CreatedAt: testNow.AddDate(0, 0, -5)}
	require.NoError(t, e.EvaluateSuspension(context.Background(), m))

	require.False(t, m.Suspended)
	require.Empty(t, members.writes)
	require.Empty(t, rec.events)
}

func TestEvaluateSuspensionNeverPaid(t *testing.T) {
	members := newFakeMemberStore()
	e, rec := newTestEngine(members, newFakePaymentStore(), newFakeTariffStore())

	m := &member.Member{
		ID:        "m1",
		FirstName: "Ada",
		CreatedAt: testNow.AddDate(0, 0, -40),
	}
	require.NoError(t, e.EvaluateSuspension(context.Background(), m))

	require.True(t, m.Suspended)
	require.Equal(t, []statusWrite{{"m1", true, testNow}}, members.writes)

	require.Len(t, rec.events, 1)
	require.Equal(t, event.MemberSuspended, rec.events[0].Type)

	change, ok := rec.events[0].Payload.(event.StatusChange)
	require.True(t, ok)
	require.Equal(t, "Ada", change.Name)
	require.Nil(t, change.PaidUntil)
}

func TestEvaluateSuspensionOverdue(t *testing.T) {
	members := newFakeMemberStore()
	payments := newFakePaymentStore()
	paidUntil := testNow.AddDate(0, 0, -16)
	payments.last["m1"] = paidThrough("m1", paidUntil)

	e, rec := newTestEngine(members, payments, newFakeTariffStore())

	m := &member.Member{ID: "m1", CreatedAt: testNow.AddDate(-1, 0, 0)}
	require.NoError(t, e.EvaluateSuspension(context.Background(), m))

	require.True(t, m.Suspended)
	require.Len(t, rec.events, 1)

	change := rec.events[0].Payload.(event.StatusChange)
	require.NotNil(t, change.PaidUntil)
	require.Equal(t, paidUntil, *change.PaidUntil)
}

func TestEvaluateSuspensionWithinOverdueThreshold(t *testing.T) {
	members := newFakeMemberStore()
	payments := newFakePaymentStore()
	payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -14))

	e, rec := newTestEngine(members, payments, newFakeTariffStore())

	m := &member.Member{ID: "m1", CreatedAt: testNow.AddDate(-1, 0, 0)}
	require.NoError(t, e.EvaluateSuspension(context.Background(), m))

	require.False(t, m.Suspended)
	require.Empty(t, members.writes)
	require.Empty(t, rec.events)
}

func TestEvaluateSuspensionSkipsInactiveMembers(t *testing.T) {
	members := newFakeMemberStore()
	e, rec := newTestEngine(members, newFakePaymentStore(), newFakeTariffStore())

	banned := &member.Member{ID: "m1", Banned: true, CreatedAt: testNow.AddDate(-1, 0, 0)}
	require.NoError(t, e.EvaluateSuspension(context.Background(), banned))
	require.False(t, banned.Suspended)

	suspended := &member.Member{ID: "m2", Suspended: true, CreatedAt: testNow.AddDate(-1, 0, 0)}
	require.NoError(t, e.EvaluateSuspension(context.Background(), suspended))

	require.Empty(t, members.writes)
	require.Empty(t, rec.events)
}

func TestSweepSuspensions(t *testing.T) {
	current := member.Member{ID: "paid", CreatedAt: testNow.AddDate(-1, 0, 0)}
	lapsed := member.Member{ID: "lapsed", CreatedAt: testNow.AddDate(-1, 0, 0)}
	fresh := member.Member{ID: "fresh", CreatedAt: testNow.AddDate(0, 0, -3)}

	members := newFakeMemberStore()
	members.notSuspended = []member.Member{current, lapsed, fresh}

	payments := newFakePaymentStore()
	payments.last["paid"] = paidThrough("paid", testNow.AddDate(0, 0, 10))
	payments.last["lapsed"] = paidThrough("lapsed", testNow.AddDate(0, 0, -30))

	e, rec := newTestEngine(members, payments, newFakeTariffStore())

	evaluated, suspended, err := e.SweepSuspensions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, evaluated)
	require.Equal(t, 1, suspended)

	require.Equal(t, []statusWrite{{"lapsed", true, testNow}}, members.writes)
	require.Len(t, rec.events, 1)
	require.Equal(t, "lapsed", rec.events[0].MemberID)
}

func TestSuspendAndUnsuspend(t *testing.T) {
	m := &member.Member{ID: "m1", FirstName: "Ada", CreatedAt: testNow.AddDate(-1, 0, 0)}
	members := newFakeMemberStore(m)

	e, rec := newTestEngine(members, newFakePaymentStore(), newFakeTariffStore())

	got, err := e.Suspend(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, got.Suspended)
	require.Len(t, rec.events, 1)
	require.Equal(t, event.MemberSuspended, rec.events[0].Type)

	got, err = e.Unsuspend(context.Background(), "m1")
	require.NoError(t, err)
	require.False(t, got.Suspended)
	require.Len(t, rec.events, 2)
	require.Equal(t, event.MemberUnsuspended, rec.events[1].Type)

	require.Equal(t, []statusWrite{
		{"m1", true, testNow},
		{"m1", false, testNow},
	}, members.writes)
}

func TestSuspendIsIdempotent(t *testing.T) {
	m := &member.Member{ID: "m1", Suspended: true}
	members := newFakeMemberStore(m)

	e, rec := newTestEngine(members, newFakePaymentStore(), newFakeTariffStore())

	got, err := e.Suspend(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, got.Suspended)
	require.Empty(t, members.writes)
	require.Empty(t, rec.events)
}

func TestSuspendUnknownMember(t *testing.T) {
	e, _ := newTestEngine(newFakeMemberStore(), newFakePaymentStore(), newFakeTariffStore())

	_, err := e.Suspend(context.Background(), "nope")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCeilDivProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, 1<<40).Draw(t, "a")
		b := rapid.Int64Range(1, 1<<20).Draw(t, "b")

		q := ceilDiv(a, b)
		require.GreaterOrEqual(t, q*b, a)
		require.Less(t, (q-1)*b, a)
	})
}

func TestProratedAmountIsBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		monthly := rapid.Int64Range(100, 10_000_000).Draw(t, "monthly")
		unpaidDays := rapid.IntRange(1, testPolicy.ProrationGraceDays-1).Draw(t, "unpaidDays")

		tariffs := newFakeTariffStore(&tariff.Tariff{ID: "t1", MonthlyCents: monthly})
		payments := newFakePaymentStore()
		payments.last["m1"] = paidThrough("m1", testNow.AddDate(0, 0, -unpaidDays))

		e, _ := newTestEngine(newFakeMemberStore(), payments, tariffs)

		m := &member.Member{ID: "m1", TariffID: strPtr("t1")}
		amount, err := e.ExpectedPaymentAmount(context.Background(), m)
		require.NoError(t, err)

		// Always the monthly rate plus at most half a month of top-up.
		require.Greater(t, amount, monthly)
		require.LessOrEqual(t, amount, monthly*2)
	})
}

func TestWholeDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, 0, wholeDaysBetween(a, a.Add(23*time.Hour)))
	require.Equal(t, 1, wholeDaysBetween(a, a.Add(24*time.Hour)))
	require.Equal(t, 10, wholeDaysBetween(a, a.AddDate(0, 0, 10)))
	require.Equal(t, -1, wholeDaysBetween(a, a.Add(-25*time.Hour)))
}
