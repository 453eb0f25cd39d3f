package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkonno/koyama-events/internal/classify"
	"github.com/tkonno/koyama-events/internal/config"
	"github.com/tkonno/koyama-events/internal/logger"
	"github.com/tkonno/koyama-events/internal/notify"
	"github.com/tkonno/koyama-events/internal/pipeline"
	"github.com/tkonno/koyama-events/internal/repair"
	"github.com/tkonno/koyama-events/internal/scraper"
	"github.com/tkonno/koyama-events/internal/storage"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool

	flagDryRun  bool
	flagFilters []string
	flagDemo    bool
)

// app is everything a subcommand needs, built once per invocation.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store *storage.SQLite
}

func setup() (*app, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	level := cfg.LogLevel
	if flagVerbose {
		level = "debug"
	}
	log := logger.New(level)

	store, err := storage.NewSQLite(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) collectors() []scraper.Collector {
	client := scraper.NewClient(scraper.ClientOptions{
		UserAgent: a.cfg.Scrape.UserAgent,
		Timeout:   a.cfg.Scrape.Timeout,
		Delay:     a.cfg.Scrape.Delay,
	}, a.log)

	return []scraper.Collector{
		scraper.NewShinagawaKanko(client, a.log),
		scraper.NewMusashikoyamaPalm(client, a.log),
		scraper.NewLoveNishikoyama(client, a.log),
	}
}

// transport picks the notification delivery mechanism. Dry-run prints to
// stdout; otherwise web push needs a configured VAPID key pair, and
// without one the run is store-only.
func (a *app) transport(dryRun bool) (notify.Transport, error) {
	if dryRun {
		return notify.NewDryRunTransport(os.Stdout), nil
	}
	if !a.cfg.Push.Enabled() {
		a.log.Warn("push delivery not configured, skipping notifications")
		return nil, nil
	}
	return notify.NewWebPush(notify.WebPushConfig{
		Subscriber:      a.cfg.Push.Subscriber,
		VAPIDPublicKey:  a.cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: a.cfg.Push.VAPIDPrivateKey,
		TTLSeconds:      a.cfg.Push.TTLSeconds,
	})
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "koyama-events",
		Short: "Collect neighborhood events around Nishikoyama and Musashikoyama",
		Long: `Scrapes local event listings, normalizes and classifies them,
stores them in SQLite and pushes new events to subscribers.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to yaml config file")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging and output")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newDigestCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newRepairCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one scrape-store-notify cycle",
		RunE:  runCollect,
	}
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print notifications instead of sending them")
	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.store.Close()

	transport, err := a.transport(flagDryRun)
	if err != nil {
		return err
	}

	var notifier pipeline.Notifier
	if transport != nil {
		notifier = notify.NewFanout(a.store.Subscriptions(), transport, a.log)
	}

	p := pipeline.New(a.collectors(), classify.NewDefault(), a.store.Events(), notifier, a.log,
		pipeline.WithParallelism(a.cfg.Scrape.Parallel))

	report, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := writeRunReport(os.Stdout, report, format, flagVerbose); err != nil {
		return err
	}

	if len(report.NewEvents) > 0 {
		os.Exit(ExitNewEvents)
	}
	return nil
}

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest to daily-timing subscribers",
		RunE:  runDigest,
	}
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print notifications instead of sending them")
	return cmd
}

func runDigest(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.store.Close()

	transport, err := a.transport(flagDryRun)
	if err != nil {
		return err
	}
	if transport == nil {
		return fmt.Errorf("digest requires push configuration or --dry-run")
	}

	today := time.Now().Format("2006-01-02")
	events, err := a.store.Events().ListByDate(cmd.Context(), today)
	if err != nil {
		return fmt.Errorf("list today's events: %w", err)
	}
	if len(events) == 0 {
		a.log.Info("no events today, skipping digest")
		return nil
	}

	fanout := notify.NewFanout(a.store.Subscriptions(), transport, a.log)
	result, err := fanout.DailyDigest(cmd.Context(), events)
	if err != nil {
		return err
	}

	a.log.Info("digest sent", "events", len(events),
		"sent", result.Sent, "failed", result.Failed, "pruned", result.Pruned)
	return nil
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo events for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.store.Close()

			for _, evt := range demoEvents(time.Now()) {
				if err := a.store.Events().Upsert(cmd.Context(), evt); err != nil {
					return fmt.Errorf("seed %q: %w", evt.Title, err)
				}
				fmt.Fprintf(os.Stdout, "seeded: %s (%s)\n", evt.Title, evt.Date)
			}
			return nil
		},
	}
}

func newRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Maintenance operations on stored events",
	}

	areas := &cobra.Command{
		Use:   "areas",
		Short: "Re-run area classification over stored events",
		RunE:  runRepairAreas,
	}
	areas.Flags().BoolVar(&flagDryRun, "dry-run", false, "Report changes without writing them")
	areas.Flags().StringArrayVar(&flagFilters, "filter", nil,
		"Restrict to matching events, e.g. source=love_nishikoyama or before=2026-01-01 (repeatable)")
	areas.Flags().BoolVar(&flagDemo, "include-demo", false, "Also repair seeded demo events")

	cmd.AddCommand(areas)
	return cmd
}

func runRepairAreas(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	filter, err := repair.Parse(flagFilters)
	if err != nil {
		return err
	}
	filter.IncludeDemo = flagDemo

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.store.Close()

	result, err := repair.Areas(cmd.Context(), a.store.Events(), classify.NewDefault(), filter, flagDryRun, a.log)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		return writeJSON(os.Stdout, result)
	}

	verb := "moved"
	if flagDryRun {
		verb = "would move"
	}
	fmt.Fprintf(os.Stdout, "Examined %d events (%s)\n", result.Examined, filter)
	for _, ch := range result.Changes {
		fmt.Fprintf(os.Stdout, "  %s %s: %s -> %s (%s)\n", verb, ch.ID, ch.From, ch.To, ch.Title)
	}
	fmt.Fprintf(os.Stdout, "Total: %d changes\n", len(result.Changes))
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored event table",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.store.Close()

	events, err := a.store.Events().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	stats := &StatsResult{
		Total:      len(events),
		ByArea:     make(map[string]int),
		BySource:   make(map[string]int),
		ByCategory: make(map[string]int),
	}
	today := time.Now().Format("2006-01-02")
	for _, evt := range events {
		stats.ByArea[string(evt.Area)]++
		stats.BySource[evt.Source]++
		for _, c := range evt.Category {
			stats.ByCategory[string(c)]++
		}
		if evt.IsDemo {
			stats.Demo++
		}
		if evt.Date >= today {
			stats.Upcoming++
		}
	}

	return writeStats(os.Stdout, stats, format)
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
