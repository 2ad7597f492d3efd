// AngelaMos | 2026
// gateway_test.go

package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
	"github.com/basementlabs/memberd/internal/member"
	"github.com/basementlabs/memberd/internal/tariff"
)

type fakeRecorder struct {
	messages map[string]*string
	calls    int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{messages: make(map[string]*string)}
}

func (r *fakeRecorder) SetBillingError(_ context.Context, id string, message *string) error {
	r.calls++
	r.messages[id] = message
	return nil
}

type fakeTariffs struct {
	tariffs map[string]*tariff.Tariff
}

func (s *fakeTariffs) GetByID(_ context.Context, id string) (*tariff.Tariff, error) {
	t, ok := s.tariffs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

func testConfig(baseURL string) config.BillingConfig {
	return config.BillingConfig{
		Enabled:       true,
		BaseURL:       baseURL,
		APIKey:        "test-key",
		Currency:      "RUB",
		ServiceID:     "card",
		PaymentMethod: "bank_card",
		Timeout:       2 * time.Second,
	}
}

func strPtr(s string) *string {
	return &s
}

func testMember() *member.Member {
	return &member.Member{
		ID:        "m1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		TariffID:  strPtr("t1"),
	}
}

func testTariffs() *fakeTariffs {
	return &fakeTariffs{tariffs: map[string]*tariff.Tariff{
		"t1": {ID: "t1", Name: "Resident", MonthlyCents: 500000},
	}}
}

func TestBillMemberSendsBill(t *testing.T) {
	var got billRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bills", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	recorder := newFakeRecorder()
	g := NewGateway(testConfig(srv.URL), recorder, testTariffs())

	g.BillMember(context.Background(), testMember())

	require.Equal(t, "Bearer test-key", auth)
	require.Equal(t, int64(500000), got.Amount)
	require.Equal(t, "RUB", got.Currency)
	require.Equal(t, "Membership fee: Resident", got.Description)
	require.Equal(t, "m1", got.Contact.ID)
	require.Equal(t, "Ada Lovelace", got.Contact.Name)
	require.Equal(t, "ada@example.com", got.Contact.Email)
	require.Equal(t, "card", got.Payment.ServiceID)

	// Nothing failed, nothing to record or clear.
	require.Zero(t, recorder.calls)
}

func TestBillMemberSkipsMembersWithoutTariff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	recorder := newFakeRecorder()
	g := NewGateway(testConfig(srv.URL), recorder, testTariffs())

	m := testMember()
	m.TariffID = nil
	g.BillMember(context.Background(), m)

	require.Zero(t, recorder.calls)
}

func TestBillMemberRecordsGatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	recorder := newFakeRecorder()
	g := NewGateway(testConfig(srv.URL), recorder, testTariffs())

	g.BillMember(context.Background(), testMember())

	require.Equal(t, 1, recorder.calls)
	msg := recorder.messages["m1"]
	require.NotNil(t, msg)
	require.Contains(t, *msg, "502")
}

func TestBillMemberRecordsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	recorder := newFakeRecorder()
	g := NewGateway(testConfig(srv.URL), recorder, testTariffs())

	g.BillMember(context.Background(), testMember())

	require.Equal(t, 1, recorder.calls)
	require.NotNil(t, recorder.messages["m1"])
}

func TestBillMemberRecordsTariffLookupFailure(t *testing.T) {
	recorder := newFakeRecorder()
	g := NewGateway(
		testConfig("http://unused.invalid"),
		recorder,
		&fakeTariffs{tariffs: map[string]*tariff.Tariff{}},
	)

	g.BillMember(context.Background(), testMember())

	require.Equal(t, 1, recorder.calls)
	msg := recorder.messages["m1"]
	require.NotNil(t, msg)
	require.Contains(t, *msg, "tariff lookup failed")
}

func TestBillMemberClearsStaleErrorOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	recorder := newFakeRecorder()
	g := NewGateway(testConfig(srv.URL), recorder, testTariffs())

	m := testMember()
	m.BillingError = strPtr("gateway returned 502")
	g.BillMember(context.Background(), m)

	require.Equal(t, 1, recorder.calls)
	require.Nil(t, recorder.messages["m1"])
}

func TestDisabledGatewayDoesNotSubscribe(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Enabled = false

	g := NewGateway(cfg, newFakeRecorder(), testTariffs())

	bus := event.NewBus()
	g.Subscribe(bus)

	// With no subscription the persisted event must be a no-op.
	require.NotPanics(t, func() {
		bus.Publish(context.Background(), event.Event{
			Type:     event.MemberPersisted,
			MemberID: "m1",
			Payload:  testMember(),
		})
	})
}

func TestSubscribedGatewayBillsOnPersistedEvent(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGateway(testConfig(srv.URL), newFakeRecorder(), testTariffs())

	bus := event.NewBus()
	g.Subscribe(bus)

	bus.Publish(context.Background(), event.Event{
		Type:     event.MemberPersisted,
		MemberID: "m1",
		Payload:  testMember(),
	})

	require.Equal(t, 1, requests)
}
