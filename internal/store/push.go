package store

import "context"

type UpsertPushSubscriptionParams struct {
	UserID   int64
	Endpoint string
	P256dh   string
	Auth     string
}

// UpsertPushSubscription rebinds an endpoint to the latest user and keys,
// since browsers reuse endpoints across logins.
func (q *Queries) UpsertPushSubscription(ctx context.Context, arg UpsertPushSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
VALUES (?, ?, ?, ?)
ON CONFLICT (endpoint) DO UPDATE SET
    user_id = excluded.user_id,
    p256dh = excluded.p256dh,
    auth = excluded.auth`,
		arg.UserID, arg.Endpoint, arg.P256dh, arg.Auth,
	)
	return err
}

type DeletePushSubscriptionParams struct {
	UserID   int64
	Endpoint string
}

func (q *Queries) DeletePushSubscription(ctx context.Context, arg DeletePushSubscriptionParams) (int64, error) {
	return q.execRows(ctx, `DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`, arg.UserID, arg.Endpoint)
}

func (q *Queries) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}

func (q *Queries) listPushSubscriptions(ctx context.Context, query string, args ...interface{}) ([]PushSubscription, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PushSubscription
	for rows.Next() {
		var p PushSubscription
		if err := rows.Scan(&p.ID, &p.UserID, &p.Endpoint, &p.P256dh, &p.Auth, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListPushSubscriptionsByUser(ctx context.Context, userID int64) ([]PushSubscription, error) {
	return q.listPushSubscriptions(ctx, `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions WHERE user_id = ? ORDER BY id`, userID)
}

func (q *Queries) ListAllPushSubscriptions(ctx context.Context) ([]PushSubscription, error) {
	return q.listPushSubscriptions(ctx, `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions ORDER BY id`)
}
