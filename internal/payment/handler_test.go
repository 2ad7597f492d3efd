// AngelaMos | 2026
// handler_test.go

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/event"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type fakeLedger struct {
	Repository

	appended []*Payment
}

func (l *fakeLedger) Append(_ context.Context, p *Payment) error {
	l.appended = append(l.appended, p)
	return nil
}

func (l *fakeLedger) ListForMember(_ context.Context, memberID string) ([]Payment, error) {
	var out []Payment
	for _, p := range l.appended {
		if p.MemberID == memberID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func newWebhookHandler(secret string) (*Handler, *fakeLedger, *[]event.Event) {
	ledger := &fakeLedger{}
	bus := event.NewBus()

	var events []event.Event
	bus.Subscribe(event.PaymentRecorded, func(_ context.Context, ev event.Event) {
		events = append(events, ev)
	})

	h := NewHandler(ledger, bus, config.BillingConfig{WebhookSecret: secret})
	return h, ledger, &events
}

func postConfirmation(
	t *testing.T,
	h *Handler,
	secret string,
	body map[string]string,
) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(raw))
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}

	rec := httptest.NewRecorder()
	h.BillingConfirmation(rec, req)
	return rec
}

const testMemberID = "7f2c9a64-3f60-4f8e-9a41-111111111111"

func TestBillingConfirmationAppendsAndPublishes(t *testing.T) {
	h, ledger, events := newWebhookHandler("secret")

	rec := postConfirmation(t, h, "secret", map[string]string{
		"member_id":  testMemberID,
		"start_date": "2026-03-01",
		"end_date":   "2026-04-01",
		"paid_at":    "2026-03-01T10:00:00Z",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ledger.appended, 1)

	p := ledger.appended[0]
	require.Equal(t, testMemberID, p.MemberID)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), p.StartDate)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), p.EndDate)
	require.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), p.PaidAt)
	require.NotEmpty(t, p.ID)

	require.Len(t, *events, 1)
	require.Equal(t, event.PaymentRecorded, (*events)[0].Type)
	require.Equal(t, testMemberID, (*events)[0].MemberID)
	require.Same(t, p, (*events)[0].Payload)
}

func TestBillingConfirmationDefaultsPaidAtToNow(t *testing.T) {
	h, ledger, _ := newWebhookHandler("")

	before := time.Now()
	rec := postConfirmation(t, h, "", map[string]string{
		"member_id":  testMemberID,
		"start_date": "2026-03-01",
		"end_date":   "2026-04-01",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ledger.appended, 1)
	require.False(t, ledger.appended[0].PaidAt.Before(before))
}

func TestBillingConfirmationRejectsWrongSecret(t *testing.T) {
	h, ledger, events := newWebhookHandler("secret")

	rec := postConfirmation(t, h, "wrong", map[string]string{
		"member_id":  testMemberID,
		"start_date": "2026-03-01",
		"end_date":   "2026-04-01",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, ledger.appended)
	require.Empty(t, *events)
}

func TestBillingConfirmationRejectsInvertedInterval(t *testing.T) {
	h, ledger, _ := newWebhookHandler("")

	rec := postConfirmation(t, h, "", map[string]string{
		"member_id":  testMemberID,
		"start_date": "2026-04-01",
		"end_date":   "2026-03-01",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, ledger.appended)
}

func TestBillingConfirmationRejectsBadDates(t *testing.T) {
	h, ledger, _ := newWebhookHandler("")

	for _, body := range []map[string]string{
		{"member_id": testMemberID, "start_date": "03/01/2026", "end_date": "2026-04-01"},
		{"member_id": testMemberID, "start_date": "2026-03-01", "end_date": "April 1"},
		{"member_id": testMemberID, "start_date": "2026-03-01", "end_date": "2026-04-01", "paid_at": "not-a-time"},
		{"member_id": "not-a-uuid", "start_date": "2026-03-01", "end_date": "2026-04-01"},
	} {
		rec := postConfirmation(t, h, "", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	require.Empty(t, ledger.appended)
}

func TestListForMember(t *testing.T) {
	h, ledger, _ := newWebhookHandler("")
	ledger.appended = []*Payment{
		{
			ID:        "p1",
			MemberID:  testMemberID,
			StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			PaidAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{ID: "p2", MemberID: "someone-else"},
	}

	req := httptest.NewRequest(
		http.MethodGet,
		"/admin/members/"+testMemberID+"/payments",
		nil,
	)
	req = withURLParam(req, "memberID", testMemberID)

	rec := httptest.NewRecorder()
	h.ListForMember(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)

	var payments []PaymentResponse
	require.NoError(t, json.Unmarshal(resp.Data, &payments))
	require.Len(t, payments, 1)
	require.Equal(t, "p1", payments[0].ID)
	require.Equal(t, "2026-03-01", payments[0].StartDate)
	require.Equal(t, "2026-04-01", payments[0].EndDate)
}
