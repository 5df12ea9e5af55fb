package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reviewpulse/internal/analyze"
	"reviewpulse/internal/config"
	"reviewpulse/internal/digest"
	"reviewpulse/internal/domain"
	"reviewpulse/internal/httpapi"
	"reviewpulse/internal/httpx"
	"reviewpulse/internal/ingest"
	"reviewpulse/internal/insights"
	"reviewpulse/internal/integrations/llm"
	slackbot "reviewpulse/internal/integrations/slack"
	"reviewpulse/internal/session"
	"reviewpulse/internal/snapshot"
	"reviewpulse/internal/suggest"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/slack-go/slack"
)

const usage = `usage: reviewpulse <command> [flags]

commands:
  analyze -in FILE [-format csv|survey|sqlite] [-out FILE] [-db FILE]
  kpi     [-snapshot FILE] [-category critical|praise]
  ask     [-snapshot FILE] QUESTION
  reply   [-snapshot FILE] -id N
  serve   (default) HTTP API, Slack bot and digest`

var errUsage = errors.New("invalid usage")

// deps is everything a command needs once configuration is loaded.
type deps struct {
	cfg   config.Config
	sess  *session.Session
	usage func() llm.Usage
}

func Main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, os.Args[1:], os.Stdout, loadDeps); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, usage)
			os.Exit(2)
		}
		log.Fatalf("reviewpulse: %v", err)
	}
}

func loadDeps() deps {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Provider=%s BatchSize=%d SignificanceThreshold=%d SuggestionPacing=%s Timezone=%s Snapshot=%s ExternalHTTPTimeout=%s",
		cfg.LLMProvider,
		cfg.LLMBatchSize,
		cfg.SignificanceThreshold,
		cfg.SuggestionPacing(),
		cfg.Timezone,
		cfg.SnapshotPath,
		appliedHTTPTimeout,
	)

	client := llm.New(cfg)
	aggregator := suggest.NewAggregator(client, clock.New(), cfg.SuggestionPacing())
	pipeline := analyze.NewPipeline(client, aggregator, analyze.Options{
		BatchSize: cfg.LLMBatchSize,
		Location:  cfg.Location,
		Progress: func(done, total int) {
			log.Printf("analyze progress batches=%d/%d", done, total)
		},
	})
	return deps{
		cfg:   cfg,
		sess:  session.New(pipeline, aggregator, client, cfg.SignificanceThreshold, cfg.Location),
		usage: client.Usage,
	}
}

// Run dispatches one CLI command. Flags are parsed before configuration is
// loaded so usage errors never require credentials.
func Run(ctx context.Context, args []string, out io.Writer, load func() deps) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "analyze":
		return runAnalyze(ctx, args, out, load)
	case "kpi":
		return runKPI(ctx, args, out, load)
	case "ask":
		return runAsk(ctx, args, out, load)
	case "reply":
		return runReply(ctx, args, out, load)
	case "serve":
		return runServe(ctx, args, load)
	case "help", "-h", "--help":
		fmt.Fprintln(out, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %v: %w", fs.Name(), err, errUsage)
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snapshotPath(flagValue string, cfg config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.SnapshotPath
}

func loadSnapshot(d deps, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return d.sess.Import(data)
}

func saveSnapshot(d deps, path string) error {
	dashboard, err := d.sess.Dashboard()
	if err != nil {
		return err
	}
	return snapshot.WriteFile(path, dashboard)
}

func runAnalyze(ctx context.Context, args []string, out io.Writer, load func() deps) error {
	fs := newFlagSet("analyze")
	in := fs.String("in", "", "input file (csv, survey json or sqlite)")
	format := fs.String("format", "", "input format; detected from the extension when empty")
	outPath := fs.String("out", "", "snapshot file to write")
	dbPath := fs.String("db", "", "also append the normalized items to this SQLite file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("analyze: -in is required: %w", errUsage)
	}

	d := load()
	items, err := ingest.LoadFile(ctx, *in, ingest.Format(*format), ingest.Options{Location: d.cfg.Location})
	if err != nil {
		return err
	}
	if *dbPath != "" {
		db, err := ingest.OpenReviewDB(*dbPath)
		if err != nil {
			return err
		}
		inserted, err := ingest.InsertReviews(db, items)
		db.Close()
		if err != nil {
			return fmt.Errorf("storing items in %s: %w", *dbPath, err)
		}
		log.Printf("analyze stored items db=%s inserted=%d", *dbPath, inserted)
	}

	res, err := d.sess.Ingest(ctx, items)
	if err != nil {
		return err
	}
	path := snapshotPath(*outPath, d.cfg)
	if err := saveSnapshot(d, path); err != nil {
		return err
	}
	k, err := d.sess.KPIs()
	if err != nil {
		return err
	}
	u := d.usage()
	fmt.Fprintf(out, "Analyzed %d of %d items in %s (run %s)\n", len(res.Dashboard.Reviews), len(items), res.Elapsed.Round(time.Millisecond), res.RunID)
	fmt.Fprintf(out, "Dropped %d malformed, %d unanswered, %d fallback ids\n", res.Stats.Dropped, res.Stats.Unanswered, res.Stats.FallbackIDs)
	fmt.Fprintf(out, "Satisfaction %d%%, top issue %s, top praise %s\n", k.SatisfactionRate, insights.TopicName(k.TopCriticalIssue), insights.TopicName(k.TopPraiseArea))
	fmt.Fprintf(out, "Snapshot written to %s (tokens used: %d)\n", path, u.TotalTokens())
	return nil
}

func runKPI(ctx context.Context, args []string, out io.Writer, load func() deps) error {
	fs := newFlagSet("kpi")
	snap := fs.String("snapshot", "", "snapshot file to read")
	categoryFlag := fs.String("category", "", "also print suggestions for critical or praise")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var category domain.KpiCategory
	if *categoryFlag != "" {
		c, ok := domain.ParseKpiCategory(*categoryFlag)
		if !ok {
			return fmt.Errorf("kpi: unknown category %q: %w", *categoryFlag, errUsage)
		}
		category = c
	}

	d := load()
	path := snapshotPath(*snap, d.cfg)
	if err := loadSnapshot(d, path); err != nil {
		return err
	}
	k, err := d.sess.KPIs()
	if err != nil {
		return err
	}
	if category == "" {
		return writeJSON(out, k)
	}

	suggestions, err := d.sess.KpiSuggestions(ctx, category)
	if err != nil {
		return err
	}
	reviews, err := d.sess.Interleaved(category)
	if err != nil {
		return err
	}
	// Persist so the next run is served from the cache.
	if err := saveSnapshot(d, path); err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{
		"kpis":        k,
		"category":    category,
		"suggestions": suggestions,
		"reviews":     reviews,
	})
}

func runAsk(ctx context.Context, args []string, out io.Writer, load func() deps) error {
	fs := newFlagSet("ask")
	snap := fs.String("snapshot", "", "snapshot file to read")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("ask: a question is required: %w", errUsage)
	}
	d := load()
	if err := loadSnapshot(d, snapshotPath(*snap, d.cfg)); err != nil {
		return err
	}
	answer, err := d.sess.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, answer)
	return nil
}

func runReply(ctx context.Context, args []string, out io.Writer, load func() deps) error {
	fs := newFlagSet("reply")
	snap := fs.String("snapshot", "", "snapshot file to read")
	id := fs.Int("id", -1, "review id to reply to")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id < 0 {
		return fmt.Errorf("reply: -id is required: %w", errUsage)
	}
	d := load()
	if err := loadSnapshot(d, snapshotPath(*snap, d.cfg)); err != nil {
		return err
	}
	reply, err := d.sess.Reply(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}

func runServe(ctx context.Context, args []string, load func() deps) error {
	fs := newFlagSet("serve")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	d := load()
	cfg := d.cfg

	if err := loadSnapshot(d, cfg.SnapshotPath); err != nil {
		log.Printf("No saved analysis loaded from %s: %v", cfg.SnapshotPath, err)
	} else {
		log.Printf("Saved analysis loaded from %s", cfg.SnapshotPath)
	}

	server := httpapi.New(d.sess)
	errc := make(chan error, 2)
	go func() { errc <- server.Start(cfg.HTTPAddr) }()

	if cfg.SlackConfigured() {
		api := slack.New(
			cfg.SlackBotToken,
			slack.OptionAppLevelToken(cfg.SlackAppToken),
		)
		poster := slackbot.NewPoster(api)
		if cfg.DigestSchedule != "" && cfg.SlackChannelID != "" {
			scheduler, err := digest.New(cfg.DigestSchedule, cfg.Location, clock.New(), d.sess, poster, cfg.SlackChannelID)
			if err != nil {
				log.Printf("%v, digest disabled", err)
			} else {
				scheduler.Start(ctx)
			}
		}
		bot := slackbot.New(poster, d.sess, cfg.SnapshotPath)
		go func() { errc <- slackbot.Start(ctx, api, bot) }()
	} else {
		log.Println("Slack not configured, bot disabled")
	}

	log.Println("Starting ReviewPulse...")
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if d.sess.Loaded() {
		if err := saveSnapshot(d, cfg.SnapshotPath); err != nil {
			log.Printf("Saving analysis on shutdown failed: %v", err)
		}
	}
	return runErr
}
