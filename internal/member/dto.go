// AngelaMos | 2026
// dto.go

package member

import (
	"time"
)

type CreateMemberRequest struct {
	Email        string `json:"email"         validate:"required,email,max=255"`
	Password     string `json:"password"      validate:"required,min=8,max=128"`
	FirstName    string `json:"first_name"    validate:"required,min=1,max=100"`
	LastName     string `json:"last_name"     validate:"max=100"`
	ChatUsername string `json:"chat_username" validate:"max=100"`
}

type UpdateMemberRequest struct {
	FirstName      *string `json:"first_name,omitempty"      validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"last_name,omitempty"       validate:"omitempty,max=100"`
	ChatUsername   *string `json:"chat_username,omitempty"   validate:"omitempty,max=100"`
	GithubHandle   *string `json:"github_handle,omitempty"   validate:"omitempty,max=100"`
	Comment        *string `json:"comment,omitempty"         validate:"omitempty,max=1000"`
	BillingAccount *string `json:"billing_account,omitempty" validate:"omitempty,max=100"`
	Learner        *bool   `json:"learner,omitempty"`
}

type UpdateGuarantorsRequest struct {
	Guarantor1ID *string `json:"guarantor1_id" validate:"omitempty,uuid"`
	Guarantor2ID *string `json:"guarantor2_id" validate:"omitempty,uuid"`
}

type UpdateTariffRequest struct {
	TariffID *string `json:"tariff_id" validate:"omitempty,uuid"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=member admin"`
}

type MemberResponse struct {
	ID                  string     `json:"id"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	ChatUsername        string     `json:"chat_username,omitempty"`
	GithubHandle        string     `json:"github_handle,omitempty"`
	Comment             string     `json:"comment,omitempty"`
	BillingAccount      string     `json:"billing_account,omitempty"`
	Learner             bool       `json:"learner"`
	TariffID            *string    `json:"tariff_id,omitempty"`
	Guarantor1ID        *string    `json:"guarantor1_id,omitempty"`
	Guarantor2ID        *string    `json:"guarantor2_id,omitempty"`
	Suspended           bool       `json:"suspended"`
	SuspensionChangedAt *time.Time `json:"suspension_changed_at,omitempty"`
	Banned              bool       `json:"banned"`
	SignInCount         int        `json:"sign_in_count"`
	LastSignInAt        *time.Time `json:"last_sign_in_at,omitempty"`
	BillingError        *string    `json:"billing_error,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type ListMembersParams struct {
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	Search    string `json:"search"`
	Role      string `json:"role"`
	Suspended *bool  `json:"suspended"`
	Banned    *bool  `json:"banned"`
}

func (p *ListMembersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListMembersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToMemberResponse(m *Member) MemberResponse {
	return MemberResponse{
		ID:                  m.ID,
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		Email:               m.Email,
		Role:                m.Role,
		ChatUsername:        m.ChatUsername,
		GithubHandle:        m.GithubHandle,
		Comment:             m.Comment,
		BillingAccount:      m.BillingAccount,
		Learner:             m.Learner,
		TariffID:            m.TariffID,
		Guarantor1ID:        m.Guarantor1ID,
		Guarantor2ID:        m.Guarantor2ID,
		Suspended:           m.Suspended,
		SuspensionChangedAt: m.SuspensionChangedAt,
		Banned:              m.Banned,
		SignInCount:         m.SignInCount,
		LastSignInAt:        m.LastSignInAt,
		BillingError:        m.BillingError,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func ToMemberResponseList(members []Member) []MemberResponse {
	responses := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, ToMemberResponse(&m))
	}
	return responses
}
