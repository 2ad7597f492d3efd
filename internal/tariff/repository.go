// AngelaMos | 2026
// repository.go

package tariff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basementlabs/memberd/internal/core"
)

type Repository interface {
	Create(ctx context.Context, t *Tariff) error
	GetByID(ctx context.Context, id string) (*Tariff, error)
	List(ctx context.Context) ([]Tariff, error)
	Update(ctx context.Context, t *Tariff) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Tariff) error {
	query := `
		INSERT INTO tariffs (id, name, monthly_cents, access_allowed)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, t, query,
		t.ID,
		t.Name,
		t.MonthlyCents,
		t.AccessAllowed,
	)
	if err != nil {
		return fmt.Errorf("create tariff: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Tariff, error) {
	query := `
		SELECT id, name, monthly_cents, access_allowed, created_at, updated_at
		FROM tariffs
		WHERE id = $1`

	var t Tariff
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get tariff: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", err)
	}

	return &t, nil
}

func (r *repository) List(ctx context.Context) ([]Tariff, error) {
	query := `
		SELECT id, name, monthly_cents, access_allowed, created_at, updated_at
		FROM tariffs
		ORDER BY monthly_cents ASC`

	var tariffs []Tariff
	if err := r.db.SelectContext(ctx, &tariffs, query); err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}

	return tariffs, nil
}

func (r *repository) Update(ctx context.Context, t *Tariff) error {
	query := `
		UPDATE tariffs
		SET name = $2, monthly_cents = $3, access_allowed = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &t.UpdatedAt, query,
		t.ID,
		t.Name,
		t.MonthlyCents,
		t.AccessAllowed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update tariff: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update tariff: %w", err)
	}

	return nil
}
