package scheduler

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
	"github.com/codr1/oche/internal/testutil"
)

type recordingSender struct {
	mu         sync.Mutex
	recipients []string
	sent       chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, recipient, subject, body string) error {
	return s.SendFrom(ctx, recipient, subject, body, "")
}

func (s *recordingSender) SendFrom(_ context.Context, recipient, _, _, _ string) error {
	s.mu.Lock()
	s.recipients = append(s.recipients, recipient)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return nil
}

func TestRemindersSendOncePerMatchInWindow(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, database, "Admin", "admin")
	league := testutil.CreateLeague(t, database, admin.ID, "Wednesday", testutil.LeagueOptions{})
	teams := testutil.CreateTeams(t, database, league.ID, "A", "B", "C", "D")

	generated, err := leagues.GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	soon := generated.Matches[0]
	later := generated.Matches[1]
	schedule := func(id int64, at time.Time) {
		t.Helper()
		rows, err := database.Queries.ScheduleMatch(ctx, store.ScheduleMatchParams{ID: id, ScheduledAt: sql.NullTime{Time: at, Valid: true}})
		if err != nil || rows != 1 {
			t.Fatalf("schedule match %d: rows=%d err=%v", id, rows, err)
		}
	}
	schedule(soon.ID, now.Add(3*time.Hour))
	schedule(later.ID, now.Add(72*time.Hour))

	sender := &recordingSender{sent: make(chan struct{}, 8)}
	r := &Reminders{
		DB:     database,
		Email:  sender,
		Window: 24 * time.Hour,
		Now:    func() time.Time { return now },
	}

	handled, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if handled != 1 {
		t.Fatalf("expected 1 match reminded, got %d", handled)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-sender.sent:
		case <-time.After(time.Second):
			t.Fatalf("expected 2 reminder emails, got %d", i)
		}
	}

	players := map[int64]bool{}
	for _, team := range teams {
		if team.ID == soon.Team1ID || team.ID == soon.Team2ID {
			players[team.Player1ID] = true
		}
	}
	sender.mu.Lock()
	got := len(sender.recipients)
	sender.mu.Unlock()
	if got != len(players) {
		t.Fatalf("expected %d recipients, got %d", len(players), got)
	}

	handled, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if handled != 0 {
		t.Fatalf("expected no repeat reminders, got %d", handled)
	}

	match, err := database.Queries.GetMatch(ctx, soon.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if !match.ReminderSentAt.Valid {
		t.Fatal("expected reminder_sent_at to be set")
	}
}

func TestRemindersSkipWithoutChannels(t *testing.T) {
	database := testutil.NewTestDB(t)
	handled, err := (&Reminders{DB: database, Window: time.Hour}).Run(context.Background())
	if err != nil || handled != 0 {
		t.Fatalf("expected a no-op run, got %d %v", handled, err)
	}
}

func TestServiceAddJobValidation(t *testing.T) {
	svc, err := NewService()
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.Start()
	t.Cleanup(func() { _ = svc.Stop() })

	if _, err := svc.AddJob(" ", "* * * * *", func() {}); err != ErrEmptyJobName {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.AddJob("job", "", func() {}); err != ErrEmptyCronExpr {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}
	if _, err := svc.AddJob("job", "not a cron", func() {}); err == nil {
		t.Fatal("expected invalid cron expression to fail")
	}
	job, err := svc.AddJob("job", "*/5 * * * *", func() {})
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	if job.Name() != "job" {
		t.Fatalf("expected job name, got %q", job.Name())
	}

	var nilService *Service
	if _, err := nilService.AddJob("job", "* * * * *", func() {}); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
