// AngelaMos | 2026
// notifier.go

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/event"
)

// Notifier announces membership status changes to the community chat via the
// bot HTTP API. Delivery is best-effort: any failure is logged at Warn and
// swallowed, with no retry and no fallback channel.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
}

func NewNotifier(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (n *Notifier) Subscribe(bus *event.Bus) {
	if !n.cfg.Enabled {
		slog.Info("notifier disabled, not subscribing")
		return
	}

	bus.Subscribe(event.MemberUnsuspended, func(ctx context.Context, ev event.Event) {
		change, ok := ev.Payload.(event.StatusChange)
		if !ok {
			slog.Warn("notify: unexpected payload type", "event_type", ev.Type)
			return
		}

		n.AnnounceUnsuspended(ctx, change)
	})
}

type broadcastRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// AnnounceUnsuspended broadcasts the restored-access message to all channel
// subscribers.
func (n *Notifier) AnnounceUnsuspended(ctx context.Context, change event.StatusChange) {
	text := fmt.Sprintf("%s is no longer suspended", change.Name)
	if change.PaidUntil != nil {
		text = fmt.Sprintf(
			"%s is no longer suspended, paid until %s",
			change.Name,
			change.PaidUntil.Format("2006-01-02"),
		)
	}

	n.broadcast(ctx, text)
}

func (n *Notifier) broadcast(ctx context.Context, text string) {
	body, err := json.Marshal(broadcastRequest{
		Channel: n.cfg.Channel,
		Text:    text,
	})
	if err != nil {
		slog.Warn("notify: encode broadcast", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		n.cfg.BaseURL+"/broadcast",
		bytes.NewReader(body),
	)
	if err != nil {
		slog.Warn("notify: build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.BotToken)

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("notify: broadcast failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("notify: broadcast rejected", "status", resp.StatusCode)
		return
	}
}
