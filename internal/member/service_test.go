// AngelaMos | 2026
// service_test.go

package member

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
)

// fakeRepo implements the subset of Repository the service tests exercise.
// The embedded interface panics on anything a test forgot to stub.
type fakeRepo struct {
	Repository

	members map[string]*Member
	updated []*Member
	bans    map[string]bool
	deleted []string
}

func newFakeRepo(members ...*Member) *fakeRepo {
	r := &fakeRepo{
		members: make(map[string]*Member),
		bans:    make(map[string]bool),
	}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, m *Member) error {
	r.members[m.ID] = m
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return m, nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*Member, error) {
	for _, m := range r.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *fakeRepo) Update(_ context.Context, m *Member) error {
	r.members[m.ID] = m
	r.updated = append(r.updated, m)
	return nil
}

func (r *fakeRepo) SetBan(_ context.Context, id string, banned bool) error {
	m, ok := r.members[id]
	if !ok {
		return core.ErrNotFound
	}
	m.Banned = banned
	r.bans[id] = banned
	return nil
}

func (r *fakeRepo) SoftDelete(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *event.Bus) {
	bus := event.NewBus()
	return NewService(repo, bus), bus
}

func recordEvents(bus *event.Bus, eventType string) *[]event.Event {
	var events []event.Event
	bus.Subscribe(eventType, func(_ context.Context, ev event.Event) {
		events = append(events, ev)
	})
	return &events
}

func strPtr(s string) *string {
	return &s
}

func TestCreateLowercasesEmailAndDefaultsRole(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	m, err := svc.Create(context.Background(), CreateMemberRequest{
		Email:     "Ada@Example.COM",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, "hash")
	require.NoError(t, err)

	require.Equal(t, "ada@example.com", m.Email)
	require.Equal(t, RoleMember, m.Role)
	require.NotEmpty(t, m.ID)
	require.Contains(t, repo.members, m.ID)
}

func TestUpdateMemberAppliesPartialPatchAndPublishes(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1", FirstName: "Ada", Comment: "old"})
	svc, bus := newTestService(repo)
	events := recordEvents(bus, event.MemberPersisted)

	m, err := svc.UpdateMember(context.Background(), "m1", UpdateMemberRequest{
		Comment: strPtr("new"),
		Learner: boolPtr(true),
	})
	require.NoError(t, err)

	require.Equal(t, "Ada", m.FirstName)
	require.Equal(t, "new", m.Comment)
	require.True(t, m.Learner)

	require.Len(t, *events, 1)
	require.Equal(t, "m1", (*events)[0].MemberID)
	require.Same(t, m, (*events)[0].Payload)
}

func TestUpdateGuarantorsRejectsSelf(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"})
	svc, _ := newTestService(repo)

	_, err := svc.UpdateGuarantors(context.Background(), "m1", UpdateGuarantorsRequest{
		Guarantor1ID: strPtr("m1"),
	})
	require.ErrorIs(t, err, ErrGuarantorSelf)
	require.ErrorIs(t, err, core.ErrInvalidInput)
	require.Empty(t, repo.updated)
}

func TestUpdateGuarantorsRejectsDuplicate(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"}, &Member{ID: "g1"})
	svc, _ := newTestService(repo)

	_, err := svc.UpdateGuarantors(context.Background(), "m1", UpdateGuarantorsRequest{
		Guarantor1ID: strPtr("g1"),
		Guarantor2ID: strPtr("g1"),
	})
	require.ErrorIs(t, err, ErrGuarantorDuplicate)
}

func TestUpdateGuarantorsRejectsUnknownGuarantor(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"})
	svc, _ := newTestService(repo)

	_, err := svc.UpdateGuarantors(context.Background(), "m1", UpdateGuarantorsRequest{
		Guarantor1ID: strPtr("ghost"),
	})
	require.ErrorIs(t, err, ErrGuarantorNotFound)
}

func TestUpdateGuarantorsAcceptsTwoDistinctMembers(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"}, &Member{ID: "g1"}, &Member{ID: "g2"})
	svc, bus := newTestService(repo)
	events := recordEvents(bus, event.MemberPersisted)

	m, err := svc.UpdateGuarantors(context.Background(), "m1", UpdateGuarantorsRequest{
		Guarantor1ID: strPtr("g1"),
		Guarantor2ID: strPtr("g2"),
	})
	require.NoError(t, err)
	require.Equal(t, "g1", *m.Guarantor1ID)
	require.Equal(t, "g2", *m.Guarantor2ID)
	require.Len(t, *events, 1)
}

func TestUpdateGuarantorsAllowsClearing(t *testing.T) {
	repo := newFakeRepo(&Member{
		ID:           "m1",
		Guarantor1ID: strPtr("g1"),
		Guarantor2ID: strPtr("g2"),
	})
	svc, _ := newTestService(repo)

	m, err := svc.UpdateGuarantors(context.Background(), "m1", UpdateGuarantorsRequest{})
	require.NoError(t, err)
	require.Nil(t, m.Guarantor1ID)
	require.Nil(t, m.Guarantor2ID)
}

func TestUpdateRoleRejectsUnknownRole(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"})
	svc, _ := newTestService(repo)

	_, err := svc.UpdateRole(context.Background(), "m1", "owner")
	require.ErrorIs(t, err, core.ErrInvalidInput)
	require.Empty(t, repo.updated)
}

func TestUpdateRolePromotesToAdmin(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"})
	svc, bus := newTestService(repo)
	events := recordEvents(bus, event.MemberPersisted)

	m, err := svc.UpdateRole(context.Background(), "m1", RoleAdmin)
	require.NoError(t, err)
	require.True(t, m.IsAdmin())
	require.Len(t, *events, 1)
}

func TestSetBanBypassesTheSavePath(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"})
	svc, bus := newTestService(repo)
	events := recordEvents(bus, event.MemberPersisted)

	m, err := svc.SetBan(context.Background(), "m1", true)
	require.NoError(t, err)
	require.True(t, m.Banned)

	require.Empty(t, repo.updated)
	require.Empty(t, *events)
}

func TestUpdateTariffPublishes(t *testing.T) {
	repo := newFakeRepo(&Member{ID: "m1"})
	svc, bus := newTestService(repo)
	events := recordEvents(bus, event.MemberPersisted)

	m, err := svc.UpdateTariff(context.Background(), "m1", strPtr("t1"))
	require.NoError(t, err)
	require.Equal(t, "t1", *m.TariffID)
	require.Len(t, *events, 1)
}

func TestCanDeleteMember(t *testing.T) {
	repo := newFakeRepo(
		&Member{ID: "admin", Role: RoleAdmin},
		&Member{ID: "admin2", Role: RoleAdmin},
		&Member{ID: "regular", Role: RoleMember},
		&Member{ID: "other", Role: RoleMember},
	)
	svc, _ := newTestService(repo)

	// Anyone may delete themselves.
	require.NoError(t, svc.CanDeleteMember(context.Background(), "regular", "regular"))

	// Admins may delete regular members but not other admins.
	require.NoError(t, svc.CanDeleteMember(context.Background(), "admin", "regular"))
	err := svc.CanDeleteMember(context.Background(), "admin", "admin2")
	require.ErrorIs(t, err, core.ErrForbidden)

	// Regular members may not delete anyone else.
	err = svc.CanDeleteMember(context.Background(), "regular", "other")
	require.ErrorIs(t, err, core.ErrForbidden)
}

func TestGetMeRequiresAuthenticatedMember(t *testing.T) {
	svc, _ := newTestService(newFakeRepo())

	_, err := svc.GetMe(context.Background(), "")
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestGetByEmailMapsToAuthInfo(t *testing.T) {
	repo := newFakeRepo(&Member{
		ID:           "m1",
		Email:        "ada@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: "hash",
		Role:         RoleMember,
		Banned:       true,
		CreatedAt:    time.Now(),
	})
	svc, _ := newTestService(repo)

	info, err := svc.GetByEmail(context.Background(), "Ada@Example.com")
	require.NoError(t, err)
	require.Equal(t, "m1", info.ID)
	require.Equal(t, "Ada Lovelace", info.Name)
	require.Equal(t, "hash", info.PasswordHash)
	require.True(t, info.Banned)
}

func boolPtr(b bool) *bool {
	return &b
}
