// AngelaMos | 2026
// entity.go

package payment

import (
	"time"
)

// Payment is one contiguous interval of paid coverage for a member. The
// ledger is append-only: rows are written once by the billing confirmation
// webhook and never mutated or deleted.
type Payment struct {
	ID        string    `db:"id"`
	MemberID  string    `db:"member_id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	PaidAt    time.Time `db:"paid_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Overlaps reports whether the payment interval intersects [start, end].
func (p *Payment) Overlaps(start, end time.Time) bool {
	return !p.StartDate.After(end) && !p.EndDate.Before(start)
}
