// internal/api/notifications/handlers.go
package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/notify"
	"github.com/codr1/oche/internal/store"
)

var (
	queries *store.Queries
	pusher  *notify.Pusher
)

const (
	notificationsQueryTimeout = 5 * time.Second
	broadcastTimeout          = 30 * time.Second
	maxEndpointLength         = 2048
)

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type sendRequest struct {
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	URL     string  `json:"url"`
	UserIDs []int64 `json:"userIds"`
}

// InitHandlers must be called during server startup before handling requests.
// A nil or disabled pusher still accepts subscriptions.
func InitHandlers(q *store.Queries, p *notify.Pusher) {
	if q == nil {
		return
	}
	queries = q
	pusher = p
}

func loadQueries() *store.Queries {
	return queries
}

// GET /api/v1/notifications/vapid
func HandleVAPIDKey(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !pusher.Enabled() {
		apiutil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]string{"publicKey": pusher.PublicKey()}); err != nil {
		logger.Error().Err(err).Msg("Failed to write VAPID response")
	}
}

// POST /api/v1/notifications/subscribe
func HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := validateSubscription(req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	err := q.UpsertPushSubscription(ctx, store.UpsertPushSubscriptionParams{
		UserID:   user.ID,
		Endpoint: strings.TrimSpace(req.Endpoint),
		P256dh:   strings.TrimSpace(req.Keys.P256dh),
		Auth:     strings.TrimSpace(req.Keys.Auth),
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to save subscription")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("Push subscription saved")
	w.WriteHeader(http.StatusCreated)
}

// DELETE /api/v1/notifications/subscribe
func HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	var req unsubscribeRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Endpoint) == "" {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	rows, err := q.DeletePushSubscription(ctx, store.DeletePushSubscriptionParams{
		UserID:   user.ID,
		Endpoint: strings.TrimSpace(req.Endpoint),
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to remove subscription")
		return
	}
	if rows == 0 {
		apiutil.WriteErrorMessage(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/notifications/send
func HandleSend(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	if !pusher.Enabled() {
		apiutil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}

	var req sendRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	n := notify.Notification{
		Title: strings.TrimSpace(req.Title),
		Body:  strings.TrimSpace(req.Body),
		URL:   strings.TrimSpace(req.URL),
	}
	if n.Title == "" || n.Body == "" {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "title and body are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), broadcastTimeout)
	defer cancel()

	var (
		report notify.Report
		err    error
	)
	if len(req.UserIDs) > 0 {
		report, err = pusher.NotifyUsers(ctx, req.UserIDs, n)
	} else {
		report, err = pusher.Broadcast(ctx, n)
	}
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to send notifications")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, report); err != nil {
		logger.Error().Err(err).Msg("Failed to write send response")
	}
}

func validateSubscription(req subscribeRequest) error {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(endpoint) > maxEndpointLength {
		return errors.New("endpoint is too long")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return errors.New("endpoint must be an https URL")
	}
	if strings.TrimSpace(req.Keys.P256dh) == "" || strings.TrimSpace(req.Keys.Auth) == "" {
		return errors.New("keys.p256dh and keys.auth are required")
	}
	return nil
}
