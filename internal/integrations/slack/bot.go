package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"reviewpulse/internal/domain"
	"reviewpulse/internal/session"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const commandName = "/pulse"

// Poster is the slice of the Slack Web API the bot writes through.
type Poster interface {
	PostEphemeral(channelID, userID, text string) error
	PostMessage(channelID, text string) error
}

type apiPoster struct {
	api *slack.Client
}

// NewPoster adapts a Slack client.
func NewPoster(api *slack.Client) Poster {
	return apiPoster{api: api}
}

func (p apiPoster) PostEphemeral(channelID, userID, text string) error {
	_, err := p.api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	return err
}

func (p apiPoster) PostMessage(channelID, text string) error {
	_, _, err := p.api.PostMessage(channelID, slack.MsgOptionText(text, false))
	return err
}

type Bot struct {
	poster       Poster
	sess         *session.Session
	snapshotPath string
}

func New(poster Poster, sess *session.Session, snapshotPath string) *Bot {
	return &Bot{poster: poster, sess: sess, snapshotPath: snapshotPath}
}

// Start runs the Socket Mode loop until ctx is done.
func Start(ctx context.Context, api *slack.Client, bot *Bot) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s %q from user=%s channel=%s", cmd.Command, cmd.Text, cmd.UserID, cmd.ChannelID)
				go bot.HandleCommand(ctx, cmd)
			case socketmode.EventTypeConnectionError:
				log.Printf("slack socket mode connection error: %v", evt.Data)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.RunContext(ctx)
}

func (b *Bot) HandleCommand(ctx context.Context, cmd slack.SlashCommand) {
	if cmd.Command != commandName {
		return
	}
	sub, _ := splitCommand(cmd.Text)
	switch sub {
	case "critical", "praise", "ask":
		b.postEphemeral(cmd, "Working on it...")
	}
	b.postEphemeral(cmd, b.Respond(ctx, cmd.Text))
}

func (b *Bot) postEphemeral(cmd slack.SlashCommand, text string) {
	if err := b.poster.PostEphemeral(cmd.ChannelID, cmd.UserID, text); err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	sub, rest, _ := strings.Cut(text, " ")
	return strings.ToLower(sub), strings.TrimSpace(rest)
}

// Respond renders the reply for one /pulse invocation.
func (b *Bot) Respond(ctx context.Context, text string) string {
	sub, args := splitCommand(text)
	switch sub {
	case "", "help":
		return helpText()
	case "kpi":
		k, err := b.sess.KPIs()
		if err != nil {
			return errorText(err)
		}
		best, worst, err := b.sess.Performance()
		if err != nil {
			return errorText(err)
		}
		return FormatKPIHeadline(k) + "\n" + formatPerformance(best, worst)
	case "trend":
		points, wow, err := b.sess.Trend()
		if err != nil {
			return errorText(err)
		}
		return formatTrend(points, wow)
	case "critical", "praise":
		category := domain.KpiCategory(sub)
		groups, err := b.sess.KpiSuggestions(ctx, category)
		if err != nil {
			log.Printf("pulse %s error: %v", sub, err)
			return errorText(err)
		}
		reviews, err := b.sess.Interleaved(category)
		if err != nil {
			return errorText(err)
		}
		return formatSuggestions(category, groups, reviews)
	case "ask":
		answer, err := b.sess.Ask(ctx, args)
		if err != nil {
			if errors.Is(err, session.ErrEmptyQuestion) {
				return "Usage: `/pulse ask <question>`"
			}
			log.Printf("pulse ask error: %v", err)
			return errorText(err)
		}
		return fmt.Sprintf("*Q:* %s\n%s", args, answer)
	case "load":
		return b.load()
	}
	return fmt.Sprintf("Unknown subcommand %q.\n\n%s", sub, helpText())
}

func (b *Bot) load() string {
	data, err := os.ReadFile(b.snapshotPath)
	if err != nil {
		log.Printf("pulse load error path=%s: %v", b.snapshotPath, err)
		return fmt.Sprintf("Could not read the saved analysis: %v", err)
	}
	if err := b.sess.Import(data); err != nil {
		log.Printf("pulse load error path=%s: %v", b.snapshotPath, err)
		return errorText(err)
	}
	d, err := b.sess.Dashboard()
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("Loaded saved analysis with %d reviews.", len(d.Reviews))
}

func errorText(err error) string {
	if errors.Is(err, session.ErrNoData) {
		return "No analysis is loaded yet. Run an analysis or use `/pulse load`."
	}
	return fmt.Sprintf("Error: %v", err)
}
