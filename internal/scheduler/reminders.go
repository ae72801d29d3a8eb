package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/email"
	"github.com/codr1/oche/internal/notify"
	"github.com/codr1/oche/internal/store"
)

const reminderJobName = "match_reminders"

// Reminders sends notices for matches starting within Window.
type Reminders struct {
	DB     *db.DB
	Email  email.EmailSender
	Pusher *notify.Pusher
	Window time.Duration
	Now    func() time.Time
}

// RegisterReminderJob schedules r on the singleton scheduler.
func RegisterReminderJob(r *Reminders, cronExpr string) error {
	if r == nil || r.DB == nil {
		return fmt.Errorf("reminder job requires database")
	}

	jobLogger := log.With().
		Str("component", "match_reminders_job").
		Str("job_name", reminderJobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(reminderJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		sent, err := r.Run(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Match reminder run failed")
			return
		}
		if sent > 0 {
			jobLogger.Info().Int("matches", sent).Msg("Match reminders sent")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add match reminder job: %w", err)
	}

	jobLogger.Info().Msg("Match reminder job registered")
	return nil
}

// Run reminds the players of every unreminded match in the window and
// returns how many matches were handled.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	if r.Email == nil && !r.Pusher.Enabled() {
		zerolog.Ctx(ctx).Debug().Msg("Reminder run skipped: no email or push configured")
		return 0, nil
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	from := now().UTC()
	matches, err := r.DB.Queries.ListMatchesForReminder(ctx, store.ListMatchesForReminderParams{
		From: from,
		To:   from.Add(r.Window),
	})
	if err != nil {
		return 0, fmt.Errorf("list matches for reminder: %w", err)
	}

	sent := 0
	for _, match := range matches {
		logger := zerolog.Ctx(ctx).With().Int64("match_id", match.ID).Int64("league_id", match.LeagueID).Logger()

		// Claim first so an overlapping run cannot remind twice.
		claimed, err := r.DB.Queries.MarkReminderSent(ctx, store.MarkReminderSentParams{ID: match.ID, SentAt: from})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to mark reminder sent")
			continue
		}
		if claimed == 0 {
			continue
		}

		if err := r.remind(logger.WithContext(ctx), match, &logger); err != nil {
			logger.Error().Err(err).Msg("Failed to send match reminder")
			continue
		}
		sent++
	}
	return sent, nil
}

func (r *Reminders) remind(ctx context.Context, match store.LeagueMatch, logger *zerolog.Logger) error {
	q := r.DB.Queries
	league, err := q.GetLeague(ctx, match.LeagueID)
	if err != nil {
		return fmt.Errorf("load league: %w", err)
	}
	home, err := q.GetTeam(ctx, match.Team1ID)
	if err != nil {
		return fmt.Errorf("load team %d: %w", match.Team1ID, err)
	}
	away, err := q.GetTeam(ctx, match.Team2ID)
	if err != nil {
		return fmt.Errorf("load team %d: %w", match.Team2ID, err)
	}

	recipients := notify.TeamUserIDs(home, away)
	msg := email.BuildMatchReminder(email.MatchReminderDetails{
		LeagueName:  league.Name,
		Round:       match.Round,
		MatchNumber: match.MatchNumber,
		HomeTeam:    home.Name,
		AwayTeam:    away.Name,
		ScheduledAt: match.ScheduledAt.Time,
	})
	if r.Email != nil {
		for _, userID := range recipients {
			email.SendToUser(ctx, q, r.Email, userID, msg, logger)
		}
	}

	if r.Pusher.Enabled() {
		_, err := r.Pusher.NotifyUsers(ctx, recipients, notify.Notification{
			Title: msg.Subject,
			Body:  fmt.Sprintf("%s vs %s, %s", home.Name, away.Name, email.FormatMatchTime(match.ScheduledAt.Time)),
			URL:   fmt.Sprintf("/leagues/%d", league.ID),
			Tag:   fmt.Sprintf("match-%d", match.ID),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to push match reminder")
		}
	}
	return nil
}
