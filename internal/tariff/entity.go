// AngelaMos | 2026
// entity.go

package tariff

import (
	"time"
)

// Tariff is a pricing/access plan shared by many members. Prices are held in
// integer minor currency units.
type Tariff struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	MonthlyCents  int64     `db:"monthly_cents"`
	AccessAllowed bool      `db:"access_allowed"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
