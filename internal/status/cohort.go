// AngelaMos | 2026
// cohort.go

package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/basementlabs/memberd/internal/member"
)

// GraphPoint is one sub-interval of the paid-members graph: the count of
// distinct members with a payment overlapping [Start, End].
type GraphPoint struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// Active returns members considered part of the community: anyone who has
// ever paid or ever signed in, minus the suspended and the banned.
func (e *Engine) Active(ctx context.Context) ([]member.Member, error) {
	return e.members.ListActive(ctx)
}

// WithDebt filters Active down to members whose coverage has lapsed. Members
// with an empty ledger carry no debt and are skipped.
func (e *Engine) WithDebt(ctx context.Context) ([]member.Member, error) {
	active, err := e.Active(ctx)
	if err != nil {
		return nil, err
	}

	today := truncateToDay(e.now())

	var debtors []member.Member
	for i := range active {
		paidUntil, ok, err := e.PaidUntil(ctx, active[i].ID)
		if err != nil {
			return nil, err
		}
		if ok && paidUntil.Before(today) {
			debtors = append(debtors, active[i])
		}
	}

	return debtors, nil
}

// SuspendedToday returns members whose suspension flag flipped on within the
// last 24 hours.
func (e *Engine) SuspendedToday(ctx context.Context) ([]member.Member, error) {
	return e.members.ListSuspendedSince(ctx, e.now().Add(-24*time.Hour))
}

// PaidWithinPeriod returns the distinct members with a payment interval
// overlapping [start, end]. Results are memoized per exact (start, end) pair;
// repeated report requests for the same period skip the ledger scan.
func (e *Engine) PaidWithinPeriod(
	ctx context.Context,
	start, end time.Time,
) ([]string, error) {
	if e.cache != nil {
		ids, ok, err := e.cache.Get(ctx, start, end)
		if err != nil {
			slog.Warn("cohort cache read failed", "error", err)
		} else if ok {
			return ids, nil
		}
	}

	ids, err := e.payments.MemberIDsOverlapping(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("paid within period: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, start, end, ids); err != nil {
			slog.Warn("cohort cache write failed", "error", err)
		}
	}

	return ids, nil
}

// PaidUsersGraph produces one data point per calendar-month boundary between
// start and end. Partial leading and trailing spans, when the range does not
// land on month boundaries, still get their own points.
func (e *Engine) PaidUsersGraph(
	ctx context.Context,
	start, end time.Time,
) ([]GraphPoint, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("paid users graph: start must precede end")
	}

	var points []GraphPoint
	for cur := start; cur.Before(end); {
		next := nextMonthBoundary(cur)
		if next.After(end) {
			next = end
		}

		count, err := e.payments.CountDistinctOverlapping(ctx, cur, next)
		if err != nil {
			return nil, fmt.Errorf("paid users graph: %w", err)
		}

		points = append(points, GraphPoint{Start: cur, End: next, Count: count})
		cur = next
	}

	return points, nil
}

// nextMonthBoundary returns the first instant of the month after t. Stepping
// through boundaries instead of adding a month keeps day-29/30/31 starts from
// being normalized past a short month.
func nextMonthBoundary(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).
		AddDate(0, 1, 0)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
