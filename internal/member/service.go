// AngelaMos | 2026
// service.go

package member

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/basementlabs/memberd/internal/auth"
	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
)

var (
	ErrGuarantorSelf      = errors.New("member cannot be their own guarantor")
	ErrGuarantorDuplicate = errors.New("guarantors must be two different members")
	ErrGuarantorNotFound  = errors.New("guarantor does not exist")
)

type Service struct {
	repo Repository
	bus  *event.Bus
}

func NewService(repo Repository, bus *event.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

func (s *Service) Create(
	ctx context.Context,
	req CreateMemberRequest,
	passwordHash string,
) (*Member, error) {
	m := &Member{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(req.Email),
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ChatUsername: req.ChatUsername,
		Role:         RoleMember,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) GetMember(ctx context.Context, id string) (*Member, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, memberID string) (*Member, error) {
	if memberID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, memberID)
}

// UpdateMember is the general-purpose save. After the row is committed a
// member.persisted event fires, which runs the suspension transition and the
// billing side effect.
func (s *Service) UpdateMember(
	ctx context.Context,
	id string,
	req UpdateMemberRequest,
) (*Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		m.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		m.LastName = *req.LastName
	}
	if req.ChatUsername != nil {
		m.ChatUsername = *req.ChatUsername
	}
	if req.GithubHandle != nil {
		m.GithubHandle = *req.GithubHandle
	}
	if req.Comment != nil {
		m.Comment = *req.Comment
	}
	if req.BillingAccount != nil {
		m.BillingAccount = *req.BillingAccount
	}
	if req.Learner != nil {
		m.Learner = *req.Learner
	}

	return m, s.save(ctx, m)
}

func (s *Service) UpdateGuarantors(
	ctx context.Context,
	id string,
	req UpdateGuarantorsRequest,
) (*Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateGuarantors(ctx, id, req.Guarantor1ID, req.Guarantor2ID); err != nil {
		return nil, err
	}

	m.Guarantor1ID = req.Guarantor1ID
	m.Guarantor2ID = req.Guarantor2ID

	return m, s.save(ctx, m)
}

func (s *Service) UpdateTariff(
	ctx context.Context,
	id string,
	tariffID *string,
) (*Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	m.TariffID = tariffID

	return m, s.save(ctx, m)
}

func (s *Service) UpdateRole(
	ctx context.Context,
	id, role string,
) (*Member, error) {
	if role != RoleMember && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	m.Role = role

	return m, s.save(ctx, m)
}

// SetBan applies the manual, engine-independent access restriction. It does
// not go through the general save path and fires no events.
func (s *Service) SetBan(ctx context.Context, id string, banned bool) (*Member, error) {
	if err := s.repo.SetBan(ctx, id, banned); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) DeleteMember(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListMembers(
	ctx context.Context,
	params ListMembersParams,
) ([]Member, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) CanDeleteMember(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete member: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin members: %w", core.ErrForbidden)
	}

	return nil
}

// save persists through the general-purpose path and publishes the
// post-commit event. Status writes never come through here.
func (s *Service) save(ctx context.Context, m *Member) error {
	if err := s.repo.Update(ctx, m); err != nil {
		return err
	}

	s.bus.Publish(context.WithoutCancel(ctx), event.Event{
		Type:     event.MemberPersisted,
		MemberID: m.ID,
		Payload:  m,
	})

	return nil
}

func (s *Service) validateGuarantors(
	ctx context.Context,
	memberID string,
	g1, g2 *string,
) error {
	if g1 != nil && *g1 == memberID {
		return fmt.Errorf("%w: %w", ErrGuarantorSelf, core.ErrInvalidInput)
	}
	if g2 != nil && *g2 == memberID {
		return fmt.Errorf("%w: %w", ErrGuarantorSelf, core.ErrInvalidInput)
	}
	if g1 != nil && g2 != nil && *g1 == *g2 {
		return fmt.Errorf("%w: %w", ErrGuarantorDuplicate, core.ErrInvalidInput)
	}

	for _, g := range []*string{g1, g2} {
		if g == nil {
			continue
		}
		if _, err := s.repo.GetByID(ctx, *g); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("%w: %w", ErrGuarantorNotFound, core.ErrInvalidInput)
			}
			return err
		}
	}

	return nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.MemberInfo, error) {
	m, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toMemberInfo(m), nil
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.MemberInfo, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toMemberInfo(m), nil
}

func (s *Service) Register(
	ctx context.Context,
	email, passwordHash, firstName string,
) (*auth.MemberInfo, error) {
	m, err := s.Create(ctx, CreateMemberRequest{
		Email:     email,
		FirstName: firstName,
	}, passwordHash)
	if err != nil {
		return nil, err
	}

	return toMemberInfo(m), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	memberID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, memberID, passwordHash)
}

// RecordSignIn feeds the "has ever signed in" arm of the active cohort.
func (s *Service) RecordSignIn(ctx context.Context, memberID string) error {
	return s.repo.RecordSignIn(ctx, memberID)
}

func toMemberInfo(m *Member) *auth.MemberInfo {
	return &auth.MemberInfo{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.DisplayName(),
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		Banned:       m.Banned,
	}
}

var _ auth.MemberProvider = (*Service)(nil)
