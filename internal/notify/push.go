// Package notify delivers Web Push notifications to stored browser subscriptions.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/store"
)

var ErrDisabled = errors.New("push notifications are disabled")

type Config struct {
	Enabled    bool
	Subject    string
	PublicKey  string
	PrivateKey string
	TTLSeconds int

	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Report summarises one delivery run.
type Report struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

type Pusher struct {
	queries *store.Queries
	cfg     Config
}

func NewPusher(q *store.Queries, cfg Config) *Pusher {
	return &Pusher{queries: q, cfg: cfg}
}

// Enabled reports whether the pusher has the keys it needs to send.
func (p *Pusher) Enabled() bool {
	return p != nil && p.cfg.Enabled && p.cfg.PublicKey != "" && p.cfg.PrivateKey != ""
}

func (p *Pusher) PublicKey() string {
	if p == nil {
		return ""
	}
	return p.cfg.PublicKey
}

// NotifyUsers pushes n to every subscription owned by the given users.
func (p *Pusher) NotifyUsers(ctx context.Context, userIDs []int64, n Notification) (Report, error) {
	if !p.Enabled() {
		return Report{}, ErrDisabled
	}
	var subs []store.PushSubscription
	for _, id := range dedupe(userIDs) {
		userSubs, err := p.queries.ListPushSubscriptionsByUser(ctx, id)
		if err != nil {
			return Report{}, fmt.Errorf("list push subscriptions for user %d: %w", id, err)
		}
		subs = append(subs, userSubs...)
	}
	return p.deliver(ctx, subs, n)
}

// Broadcast pushes n to every stored subscription.
func (p *Pusher) Broadcast(ctx context.Context, n Notification) (Report, error) {
	if !p.Enabled() {
		return Report{}, ErrDisabled
	}
	subs, err := p.queries.ListAllPushSubscriptions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list push subscriptions: %w", err)
	}
	return p.deliver(ctx, subs, n)
}

func (p *Pusher) deliver(ctx context.Context, subs []store.PushSubscription, n Notification) (Report, error) {
	var report Report
	if len(subs) == 0 {
		return report, nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return report, fmt.Errorf("encode notification: %w", err)
	}
	logger := log.Ctx(ctx)

	for _, sub := range subs {
		status, err := p.send(ctx, sub, payload)
		switch {
		case status == http.StatusGone || status == http.StatusNotFound:
			// The browser dropped this subscription.
			if delErr := p.queries.DeletePushSubscriptionByEndpoint(ctx, sub.Endpoint); delErr != nil {
				logger.Error().Err(delErr).Int64("subscription_id", sub.ID).Msg("Failed to remove expired push subscription")
				report.Failed++
				continue
			}
			report.Removed++
		case err != nil:
			logger.Warn().Err(err).Int64("subscription_id", sub.ID).Int("status", status).Msg("Push delivery failed")
			report.Failed++
		default:
			report.Sent++
		}
	}

	logger.Info().
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("removed", report.Removed).
		Msg("Push notifications delivered")
	return report, nil
}

func (p *Pusher) send(ctx context.Context, sub store.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      p.cfg.HTTPClient,
		Subscriber:      p.cfg.Subject,
		VAPIDPublicKey:  p.cfg.PublicKey,
		VAPIDPrivateKey: p.cfg.PrivateKey,
		TTL:             p.cfg.TTLSeconds,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("push service returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}

// TeamUserIDs collects the players of the given teams.
func TeamUserIDs(teams ...store.Team) []int64 {
	var ids []int64
	for _, t := range teams {
		ids = append(ids, t.Player1ID)
		if t.Player2ID.Valid {
			ids = append(ids, t.Player2ID.Int64)
		}
	}
	return dedupe(ids)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
