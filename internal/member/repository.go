// AngelaMos | 2026
// repository.go

package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/basementlabs/memberd/internal/core"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id string) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	Update(ctx context.Context, m *Member) error
	UpdateStatus(
		ctx context.Context,
		id string,
		suspended bool,
		changedAt time.Time,
	) error
	SetBan(ctx context.Context, id string, banned bool) error
	RecordSignIn(ctx context.Context, id string) error
	SetBillingError(ctx context.Context, id string, message *string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListMembersParams) ([]Member, int, error)
	ListAll(ctx context.Context) ([]Member, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ListActive(ctx context.Context) ([]Member, error)
	ListNotSuspended(ctx context.Context) ([]Member, error)
	ListSuspendedSince(ctx context.Context, since time.Time) ([]Member, error)
}

const memberColumns = `
	id, first_name, last_name, email, password_hash, role,
	chat_username, github_handle, comment, billing_account, learner,
	tariff_id, guarantor1_id, guarantor2_id,
	suspended, suspension_changed_at, banned,
	sign_in_count, last_sign_in_at, billing_error,
	created_at, updated_at, deleted_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (
			id, first_name, last_name, email, password_hash, role,
			chat_username
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, m, query,
		m.ID,
		m.FirstName,
		m.LastName,
		m.Email,
		m.PasswordHash,
		m.Role,
		m.ChatUsername,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create member: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create member: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE id = $1 AND deleted_at IS NULL`

	var m Member
	err := r.db.GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get member: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}

	return &m, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE email = $1 AND deleted_at IS NULL`

	var m Member
	err := r.db.GetContext(ctx, &m, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get member by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}

	return &m, nil
}

// Update is the general-purpose save path. It persists profile fields only;
// suspension flags go through UpdateStatus so the post-save transition logic
// cannot re-trigger itself.
func (r *repository) Update(ctx context.Context, m *Member) error {
	query := `
		UPDATE members
		SET first_name = $2, last_name = $3, role = $4,
		    chat_username = $5, github_handle = $6, comment = $7,
		    billing_account = $8, learner = $9,
		    tariff_id = $10, guarantor1_id = $11, guarantor2_id = $12,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &m.UpdatedAt, query,
		m.ID,
		m.FirstName,
		m.LastName,
		m.Role,
		m.ChatUsername,
		m.GithubHandle,
		m.Comment,
		m.BillingAccount,
		m.Learner,
		m.TariffID,
		m.Guarantor1ID,
		m.Guarantor2ID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update member: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}

	return nil
}

// UpdateStatus writes the suspension flag and its change timestamp, nothing
// else. It deliberately skips updated_at and all validation.
func (r *repository) UpdateStatus(
	ctx context.Context,
	id string,
	suspended bool,
	changedAt time.Time,
) error {
	query := `
		UPDATE members
		SET suspended = $2, suspension_changed_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, suspended, changedAt)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update status: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) SetBan(
	ctx context.Context,
	id string,
	banned bool,
) error {
	query := `
		UPDATE members
		SET banned = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, banned)
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set ban: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RecordSignIn(ctx context.Context, id string) error {
	query := `
		UPDATE members
		SET sign_in_count = sign_in_count + 1, last_sign_in_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("record sign in: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record sign in: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("record sign in: %w", core.ErrNotFound)
	}

	return nil
}

// SetBillingError records a non-fatal gateway failure for operator display.
// Pass nil to clear.
func (r *repository) SetBillingError(
	ctx context.Context,
	id string,
	message *string,
) error {
	query := `
		UPDATE members
		SET billing_error = $2
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("set billing error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set billing error: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set billing error: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE members
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE members
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete member: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListMembersParams,
) ([]Member, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d OR chat_username ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Suspended != nil {
		conditions = append(conditions, fmt.Sprintf("suspended = $%d", argIdx))
		args = append(args, *params.Suspended)
		argIdx++
	}

	if params.Banned != nil {
		conditions = append(conditions, fmt.Sprintf("banned = $%d", argIdx))
		args = append(args, *params.Banned)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM members WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+memberColumns+`
		FROM members
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var members []Member
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	return members, total, nil
}

// ListAll returns every non-deleted member, used by the roster export.
func (r *repository) ListAll(ctx context.Context) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC`

	var members []Member
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list all members: %w", err)
	}

	return members, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

// ListActive returns the active cohort: members who have ever paid or ever
// signed in, excluding the suspended and the banned.
func (r *repository) ListActive(ctx context.Context) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE deleted_at IS NULL
		  AND suspended = FALSE
		  AND banned = FALSE
		  AND (
			sign_in_count > 0
			OR EXISTS (
				SELECT 1 FROM payments p WHERE p.member_id = members.id
			)
		  )
		ORDER BY created_at ASC`

	var members []Member
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}

	return members, nil
}

func (r *repository) ListNotSuspended(ctx context.Context) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE deleted_at IS NULL
		  AND suspended = FALSE
		  AND banned = FALSE
		ORDER BY created_at ASC`

	var members []Member
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list not suspended: %w", err)
	}

	return members, nil
}

func (r *repository) ListSuspendedSince(
	ctx context.Context,
	since time.Time,
) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE deleted_at IS NULL
		  AND suspended = TRUE
		  AND suspension_changed_at >= $1
		ORDER BY suspension_changed_at DESC`

	var members []Member
	if err := r.db.SelectContext(ctx, &members, query, since); err != nil {
		return nil, fmt.Errorf("list suspended since: %w", err)
	}

	return members, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
