package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"reviewpulse/internal/insights"
	slackbot "reviewpulse/internal/integrations/slack"
	"reviewpulse/internal/session"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
)

// KPISource is the part of a session the digest reads.
type KPISource interface {
	KPIs() (insights.KPIs, error)
}

type Scheduler struct {
	sched     cron.Schedule
	spec      string
	loc       *time.Location
	clock     clock.Clock
	source    KPISource
	poster    slackbot.Poster
	channelID string
}

// New parses a standard 5-field cron expression (minute hour day-of-month
// month day-of-week), e.g. "0 9 * * 1-5" for weekdays at 9am.
func New(spec string, loc *time.Location, clk clock.Clock, source KPISource, poster slackbot.Poster, channelID string) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid digest_schedule '%s': %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{sched: sched, spec: spec, loc: loc, clock: clk, source: source, poster: poster, channelID: channelID}, nil
}

// Next returns the first run strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.sched.Next(now.In(s.loc))
}

// Start runs the digest loop in the background until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("Digest scheduled (cron: %s) channel=%s", s.spec, s.channelID)
	go func() {
		for {
			now := s.clock.Now()
			next := s.Next(now)
			wait := next.Sub(now)
			log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := s.clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Printf("Digest scheduler stopped")
				return
			case <-timer.C:
			}
			if err := s.RunOnce(); err != nil {
				log.Printf("Digest error: %v", err)
			}
		}
	}()
}

// RunOnce posts the current KPI headline. With nothing analyzed it posts nothing.
func (s *Scheduler) RunOnce() error {
	k, err := s.source.KPIs()
	if errors.Is(err, session.ErrNoData) {
		log.Printf("Digest skipped: no analysis loaded")
		return nil
	}
	if err != nil {
		return err
	}
	text := "*Review digest*\n" + slackbot.FormatKPIHeadline(k)
	if err := s.poster.PostMessage(s.channelID, text); err != nil {
		return fmt.Errorf("posting digest: %w", err)
	}
	log.Printf("Digest posted channel=%s reviews=%d", s.channelID, k.Total)
	return nil
}
