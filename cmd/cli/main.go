package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"sport-activities/internal/activity"
	"sport-activities/internal/config"
	"sport-activities/internal/database"
	"sport-activities/internal/fetch"
	"sport-activities/internal/garmin"
	"sport-activities/internal/report"
	"sport-activities/internal/session"
)

func main() {
	// Disable structured logging for CLI
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" {
		printUsage()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var store session.Store
	if cfg.SessionCacheEnabled {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		store = db
	}

	client := garmin.NewClient(cfg.GarminAPIURL, cfg.GarminSSOURL, cfg.RequestTimeout, slog.Default())
	provider := session.NewCachingProvider(garmin.NewAccount(client, cfg.GarminUser, cfg.GarminPassword), store, nil)
	walker := fetch.NewWalker(provider, nil, fetch.WithRemoteDateFilter(cfg.RemoteDateFilter))

	args := os.Args[2:]
	switch command {
	case "activities":
		err = handleActivities(ctx, walker, cfg, args)
	case "month":
		err = handleMonth(ctx, walker, cfg, args)
	case "details":
		err = handleDetails(ctx, walker, args)
	case "logout":
		err = provider.Logout(ctx)
		if err == nil {
			fmt.Fprintln(os.Stderr, "✓ Cached session removed")
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sport-activities CLI - Garmin Connect activity fetcher

Usage:
  cli <command> [options]

Commands:
  activities START END   List activities between two dates (inclusive)
  month YYYY-MM          List activities of a calendar month
  details ID             Show the detail payload of one activity
  logout                 Forget the cached session
  help                   Show this help message

Options for activities and month:
  -type KEY              Keep only this type key (repeatable, comma separated)
  -raw                   Include the upstream payload of each activity
  -report KIND           Print a day, type or quality report instead
  -page-size N           Records per listing page (default from PAGE_SIZE)
  -max-pages N           Stop after N pages, 0 for no limit
  -newest-first          Stop once the listing is past START

Examples:
  cli activities 2025-06-01 2025-06-30 -type running
  cli month 2025-06 -report type
  cli details 19283746

Environment Variables Required:
  GARMIN_USER            - Garmin Connect username
  GARMIN_PWD             - Garmin Connect password
  DATABASE_PATH          - Session cache file (default: ./sessions.db)`)
}

type listOptions struct {
	types       []string
	raw         bool
	report      string
	pageSize    int
	maxPages    int
	newestFirst bool
}

func parseListFlags(name string, cfg *config.Config, args []string) (*listOptions, []string, error) {
	opts := &listOptions{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Func("type", "type key filter", func(v string) error {
		opts.types = append(opts.types, v)
		return nil
	})
	fs.BoolVar(&opts.raw, "raw", false, "include raw payloads")
	fs.StringVar(&opts.report, "report", "", "day, type or quality")
	fs.IntVar(&opts.pageSize, "page-size", cfg.PageSize, "records per page")
	fs.IntVar(&opts.maxPages, "max-pages", cfg.MaxPages, "page limit")
	fs.BoolVar(&opts.newestFirst, "newest-first", false, "stop once past start")

	// Positional arguments come first, flags after them
	var positional []string
	for len(args) > 0 && (len(args[0]) == 0 || args[0][0] != '-') {
		positional = append(positional, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	positional = append(positional, fs.Args()...)

	switch opts.report {
	case "", "day", "type", "quality":
	default:
		return nil, nil, fmt.Errorf("unknown report %q", opts.report)
	}
	return opts, positional, nil
}

func handleActivities(ctx context.Context, walker *fetch.Walker, cfg *config.Config, args []string) error {
	opts, positional, err := parseListFlags("activities", cfg, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return errors.New("activities requires START and END dates")
	}
	q, err := fetch.NewQuery(positional[0], positional[1])
	if err != nil {
		return err
	}
	return runList(ctx, walker, q, opts)
}

func handleMonth(ctx context.Context, walker *fetch.Walker, cfg *config.Config, args []string) error {
	opts, positional, err := parseListFlags("month", cfg, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("month requires a YYYY-MM argument")
	}
	q, err := fetch.MonthQuery(positional[0])
	if err != nil {
		return err
	}
	return runList(ctx, walker, q, opts)
}

func runList(ctx context.Context, walker *fetch.Walker, q fetch.Query, opts *listOptions) error {
	q.Types = activity.ParseTypes(opts.types...)
	q.PageSize = opts.pageSize
	q.MaxPages = opts.maxPages
	q.NewestFirst = opts.newestFirst

	res, err := walker.FetchRange(ctx, q)
	if err != nil {
		return err
	}
	if res.Skipped > 0 || len(res.Malformed) > 0 {
		fmt.Fprintf(os.Stderr, "Fetched %d activities over %d page(s), skipped %d (%d malformed)\n",
			len(res.Activities), res.Pages, res.Skipped, len(res.Malformed))
	}

	switch opts.report {
	case "day":
		return printJSON(report.ByDay(res.Activities))
	case "type":
		return printJSON(report.ByType(res.Activities))
	case "quality":
		return printJSON(report.Quality(res.Activities))
	}

	if opts.raw {
		return printJSON(res.Activities)
	}
	public := make([]activity.Fields, len(res.Activities))
	for i, s := range res.Activities {
		public[i] = s.Public()
	}
	return printJSON(public)
}

func handleDetails(ctx context.Context, walker *fetch.Walker, args []string) error {
	if len(args) != 1 {
		return errors.New("details requires an activity ID")
	}
	details, err := walker.FetchDetail(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(details)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	var httpErr *garmin.HTTPError
	if errors.As(err, &httpErr) {
		fmt.Fprintf(os.Stderr, "Error: Garmin request failed (HTTP %d)\n", httpErr.StatusCode)
		if garmin.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "\nThe cached session may be stale, try: cli logout")
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
