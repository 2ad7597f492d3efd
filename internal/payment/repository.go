// AngelaMos | 2026
// repository.go

package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/basementlabs/memberd/internal/core"
)

// Repository is intentionally append-only: there is no update or delete.
type Repository interface {
	Append(ctx context.Context, p *Payment) error
	LastForMember(ctx context.Context, memberID string) (*Payment, error)
	ListForMember(ctx context.Context, memberID string) ([]Payment, error)
	HasAny(ctx context.Context, memberID string) (bool, error)
	MemberIDsOverlapping(
		ctx context.Context,
		start, end time.Time,
	) ([]string, error)
	CountDistinctOverlapping(
		ctx context.Context,
		start, end time.Time,
	) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, member_id, start_date, end_date, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &p.CreatedAt, query,
		p.ID,
		p.MemberID,
		p.StartDate,
		p.EndDate,
		p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("append payment: %w", err)
	}

	return nil
}

// LastForMember returns the payment with the latest paid_at timestamp, which
// defines the member's paid_until date.
func (r *repository) LastForMember(
	ctx context.Context,
	memberID string,
) (*Payment, error) {
	query := `
		SELECT id, member_id, start_date, end_date, paid_at, created_at
		FROM payments
		WHERE member_id = $1
		ORDER BY paid_at DESC
		LIMIT 1`

	var p Payment
	err := r.db.GetContext(ctx, &p, query, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("last payment: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("last payment: %w", err)
	}

	return &p, nil
}

func (r *repository) ListForMember(
	ctx context.Context,
	memberID string,
) ([]Payment, error) {
	query := `
		SELECT id, member_id, start_date, end_date, paid_at, created_at
		FROM payments
		WHERE member_id = $1
		ORDER BY paid_at DESC`

	var payments []Payment
	if err := r.db.SelectContext(ctx, &payments, query, memberID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return payments, nil
}

func (r *repository) HasAny(
	ctx context.Context,
	memberID string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE member_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, memberID); err != nil {
		return false, fmt.Errorf("check payments exist: %w", err)
	}

	return exists, nil
}

// MemberIDsOverlapping returns the distinct members having at least one
// payment interval intersecting [start, end].
func (r *repository) MemberIDsOverlapping(
	ctx context.Context,
	start, end time.Time,
) ([]string, error) {
	query := `
		SELECT DISTINCT member_id
		FROM payments
		WHERE start_date <= $2 AND end_date >= $1
		ORDER BY member_id`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, start, end); err != nil {
		return nil, fmt.Errorf("members overlapping: %w", err)
	}

	return ids, nil
}

func (r *repository) CountDistinctOverlapping(
	ctx context.Context,
	start, end time.Time,
) (int, error) {
	query := `
		SELECT COUNT(DISTINCT member_id)
		FROM payments
		WHERE start_date <= $2 AND end_date >= $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, start, end); err != nil {
		return 0, fmt.Errorf("count overlapping: %w", err)
	}

	return count, nil
}
