// cmd/curator/main.go
//
// This is the entry point for the Curator CLI.
//
// Subcommands:
//
//	curator acquire   search the provider and stage one image per asset
//	curator review    walk staged images in the TUI and apply/skip/delete
//	curator status    print acquisition and review progress
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/growthlabs/curator/internal/acquire"
	"github.com/growthlabs/curator/internal/checkpoint"
	"github.com/growthlabs/curator/internal/config"
	"github.com/growthlabs/curator/internal/infra"
	"github.com/growthlabs/curator/internal/publish"
	"github.com/growthlabs/curator/internal/ratelimit"
	"github.com/growthlabs/curator/internal/review"
	"github.com/growthlabs/curator/internal/staging"
	"github.com/growthlabs/curator/internal/store"
	"github.com/growthlabs/curator/internal/tui"
	"github.com/growthlabs/curator/internal/unsplash"
)

const usage = `curator - image asset acquisition and curation

Usage:
  curator acquire [-project DIR] [-v]   acquire images for unfilled assets
  curator review  [-project DIR] [-v]   review staged images interactively
  curator status  [-project DIR]        show acquisition and review progress
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "acquire":
		err = runAcquire(os.Args[2:])
	case "review":
		err = runReview(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "curator: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "curator: %v\n", err)
		os.Exit(1)
	}
}

// openProject resolves the project directory, ensures the .curator
// layout exists and loads the configuration.
func openProject(name string, args []string) (*config.Config, bool, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	project := fs.String("project", "", "project directory (default: current directory)")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	dir := *project
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, false, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, false, fmt.Errorf("resolve project directory: %w", err)
	}

	if err := config.InitCuratorDir(dir); err != nil {
		return nil, false, fmt.Errorf("initialize %s: %w", config.CuratorDir, err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, false, err
	}
	return cfg, *verbose, nil
}

func runAcquire(args []string) error {
	cfg, verbose, err := openProject("acquire", args)
	if err != nil {
		return err
	}
	if cfg.AccessKey == "" {
		return fmt.Errorf("no provider credential: set %s in the environment or a .env file", config.EnvAccessKey)
	}
	logger := infra.NewLogger(cfg.LogsDir(), verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := unsplash.NewClient(unsplash.Options{AccessKey: cfg.AccessKey})
	if err != nil {
		return err
	}
	limiter, err := ratelimit.New(
		store.NewJSONFile(cfg.RateLimitPath()),
		cfg.Project.Provider.MaxRequests,
		time.Duration(cfg.Project.Provider.Window),
		logger,
	)
	if err != nil {
		return err
	}
	checkpoints, err := checkpoint.New(store.NewJSONFile(cfg.CheckpointPath()))
	if err != nil {
		return err
	}
	area, err := staging.NewArea(cfg.StagingDir(), store.NewJSONFile(cfg.MetadataPath()))
	if err != nil {
		return err
	}

	finder := acquire.NewFinder(client, limiter, cfg.Project.Quality, cfg.Project.Provider.PerPage, logger)
	downloader := acquire.NewDownloader(client, limiter, area, checkpoints, nil, logger)
	driver := acquire.NewDriver(cfg, finder, downloader, checkpoints, limiter, store.NewJSONFile(cfg.StatusPath()), logger)

	summary, err := driver.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Acquisition interrupted; progress is saved, rerun to continue.")
			printSummary(summary)
			return nil
		}
		return err
	}
	printSummary(summary)
	return nil
}

func printSummary(s acquire.Summary) {
	fmt.Printf("Acquisition run %s\n", s.RunID)
	fmt.Printf("  completed: %d/%d\n", s.Completed, s.Total)
	fmt.Printf("  failed:    %d\n", s.Failed)
	fmt.Printf("  pending:   %d\n", s.Pending)
	fmt.Printf("  requests remaining this window: %d\n", s.Remaining)
	for _, f := range s.Failures {
		fmt.Printf("  ! %s: %s\n", f.Name, f.Reason)
	}
}

func runReview(args []string) error {
	cfg, verbose, err := openProject("review", args)
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.LogsDir(), verbose)

	// Fail before the session starts rather than on the first apply.
	magick, err := publish.NewMagick()
	if err != nil {
		return err
	}

	area, err := staging.NewArea(cfg.StagingDir(), store.NewJSONFile(cfg.MetadataPath()))
	if err != nil {
		return err
	}
	publisher := publish.NewPublisher(cfg.AssetsDir(), magick, logger)
	session, err := review.NewSession(
		area,
		store.NewJSONFile(cfg.ReviewLogPath()),
		store.NewJSONFile(cfg.AttributionsPath()),
		publisher,
		logger,
	)
	if err != nil {
		return err
	}
	if len(session.Pending()) == 0 {
		fmt.Println("Nothing to review. Run `curator acquire` first.")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(tui.NewApp(ctx, session), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("review session: %w", err)
	}
	applied, skipped, deleted := session.Counts()
	fmt.Printf("Review session ended: %d applied, %d skipped, %d deleted\n", applied, skipped, deleted)
	return nil
}

func runStatus(args []string) error {
	cfg, _, err := openProject("status", args)
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.LogsDir(), false)

	names := make([]string, 0, len(cfg.Requests()))
	for _, req := range cfg.Requests() {
		names = append(names, req.Name)
	}

	checkpoints, err := checkpoint.New(store.NewJSONFile(cfg.CheckpointPath()))
	if err != nil {
		return err
	}
	completed, failed, pending := checkpoints.Counts(names)

	limiter, err := ratelimit.New(
		store.NewJSONFile(cfg.RateLimitPath()),
		cfg.Project.Provider.MaxRequests,
		time.Duration(cfg.Project.Provider.Window),
		logger,
	)
	if err != nil {
		return err
	}

	applied, skipped, deleted, err := review.LoadCounts(store.NewJSONFile(cfg.ReviewLogPath()))
	if err != nil {
		return err
	}

	fmt.Printf("Assets configured: %d\n", len(names))
	fmt.Printf("Acquisition: %d completed, %d failed, %d pending\n", completed, failed, pending)
	fmt.Printf("Review: %d applied, %d skipped, %d deleted\n", applied, skipped, deleted)
	fmt.Printf("Provider quota: %d of %d requests remaining this window\n",
		limiter.Remaining(), cfg.Project.Provider.MaxRequests)

	var last acquire.Summary
	err = store.NewJSONFile(cfg.StatusPath()).Load(&last)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Println("No acquisition run recorded yet.")
	case err != nil:
		return err
	default:
		fmt.Printf("Last run %s finished %s\n", last.RunID, last.FinishedAt.Local().Format(time.RFC1123))
	}
	return nil
}
