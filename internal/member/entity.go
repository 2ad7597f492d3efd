// AngelaMos | 2026
// entity.go

package member

import (
	"strings"
	"time"
)

type Member struct {
	ID                  string     `db:"id"`
	FirstName           string     `db:"first_name"`
	LastName            string     `db:"last_name"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	Role                string     `db:"role"`
	ChatUsername        string     `db:"chat_username"`
	GithubHandle        string     `db:"github_handle"`
	Comment             string     `db:"comment"`
	BillingAccount      string     `db:"billing_account"`
	Learner             bool       `db:"learner"`
	TariffID            *string    `db:"tariff_id"`
	Guarantor1ID        *string    `db:"guarantor1_id"`
	Guarantor2ID        *string    `db:"guarantor2_id"`
	Suspended           bool       `db:"suspended"`
	SuspensionChangedAt *time.Time `db:"suspension_changed_at"`
	Banned              bool       `db:"banned"`
	SignInCount         int        `db:"sign_in_count"`
	LastSignInAt        *time.Time `db:"last_sign_in_at"`
	BillingError        *string    `db:"billing_error"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
	DeletedAt           *time.Time `db:"deleted_at"`
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Inactive members have no access regardless of tariff. A ban is applied
// manually; suspension is applied by the status engine.
func (m *Member) Inactive() bool {
	return m.Suspended || m.Banned
}

func (m *Member) Active() bool {
	return !m.Inactive()
}

func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m *Member) DisplayName() string {
	if name := m.FullName(); name != "" {
		return name
	}
	return m.Email
}
