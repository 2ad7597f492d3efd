// AngelaMos | 2026
// gateway.go

package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/event"
	"github.com/basementlabs/memberd/internal/member"
	"github.com/basementlabs/memberd/internal/tariff"
)

// ErrorRecorder persists the operator-visible billing failure message.
type ErrorRecorder interface {
	SetBillingError(ctx context.Context, id string, message *string) error
}

type TariffSource interface {
	GetByID(ctx context.Context, id string) (*tariff.Tariff, error)
}

// Gateway pushes a bill to the external billing provider whenever a member
// is saved. It is strictly best-effort: a gateway failure is recorded on the
// member row for operators and never surfaces to the request that triggered
// the save. There are no retries.
type Gateway struct {
	cfg     config.BillingConfig
	members ErrorRecorder
	tariffs TariffSource
	client  *http.Client
}

func NewGateway(
	cfg config.BillingConfig,
	members ErrorRecorder,
	tariffs TariffSource,
) *Gateway {
	return &Gateway{
		cfg:     cfg,
		members: members,
		tariffs: tariffs,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Subscribe wires the gateway to the post-save event stream. When billing is
// disabled the subscription is skipped entirely, which is how tests and dev
// environments run.
func (g *Gateway) Subscribe(bus *event.Bus) {
	if !g.cfg.Enabled {
		slog.Info("billing gateway disabled, not subscribing")
		return
	}

	bus.Subscribe(event.MemberPersisted, func(ctx context.Context, ev event.Event) {
		m, ok := ev.Payload.(*member.Member)
		if !ok {
			slog.Error("billing: unexpected payload type", "event_type", ev.Type)
			return
		}

		g.BillMember(ctx, m)
	})
}

type billRequest struct {
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Description string        `json:"description"`
	Contact     billContact   `json:"contact"`
	Payment     paymentMethod `json:"payment_method"`
}

type billContact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type paymentMethod struct {
	ServiceID string `json:"service_id"`
	Method    string `json:"method"`
}

// BillMember issues one bill for the member's current tariff. Members with
// no tariff have nothing to bill and are skipped. All failure paths end in
// SetBillingError, not in a returned error.
func (g *Gateway) BillMember(ctx context.Context, m *member.Member) {
	if m.TariffID == nil {
		return
	}

	t, err := g.tariffs.GetByID(ctx, *m.TariffID)
	if err != nil {
		g.recordFailure(ctx, m.ID, fmt.Sprintf("tariff lookup failed: %v", err), nil)
		return
	}

	req := billRequest{
		Amount:      t.MonthlyCents,
		Currency:    g.cfg.Currency,
		Description: fmt.Sprintf("Membership fee: %s", t.Name),
		Contact: billContact{
			ID:    m.ID,
			Name:  m.DisplayName(),
			Email: m.Email,
		},
		Payment: paymentMethod{
			ServiceID: g.cfg.ServiceID,
			Method:    g.cfg.PaymentMethod,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		g.recordFailure(ctx, m.ID, fmt.Sprintf("encode bill: %v", err), nil)
		return
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.cfg.BaseURL+"/bills",
		bytes.NewReader(body),
	)
	if err != nil {
		g.recordFailure(ctx, m.ID, fmt.Sprintf("build request: %v", err), nil)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.recordFailure(ctx, m.ID, fmt.Sprintf("gateway request failed: %v", err), nil)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.recordFailure(
			ctx,
			m.ID,
			fmt.Sprintf("gateway returned %d", resp.StatusCode),
			respBody,
		)
		return
	}

	// A successful bill clears any stale failure left from a prior attempt.
	if m.BillingError != nil {
		if err := g.members.SetBillingError(ctx, m.ID, nil); err != nil {
			slog.Error("billing: clear error flag", "member_id", m.ID, "error", err)
		}
	}

	slog.Info("bill issued",
		"member_id", m.ID,
		"amount_cents", t.MonthlyCents,
		"currency", g.cfg.Currency,
	)
}

func (g *Gateway) recordFailure(
	ctx context.Context,
	memberID, message string,
	respBody []byte,
) {
	if len(respBody) > 0 {
		slog.Error("billing gateway failure",
			"member_id", memberID,
			"message", message,
			"response_body", string(respBody),
		)
	} else {
		slog.Error("billing gateway failure",
			"member_id", memberID,
			"message", message,
		)
	}

	if err := g.members.SetBillingError(ctx, memberID, &message); err != nil {
		slog.Error("billing: record error flag",
			"member_id", memberID,
			"error", err,
		)
	}
}
