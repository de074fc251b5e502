package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
)

func runRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: config)")
	fs.Parse(os.Args[1:])

	cfg, st := setup(*dbPath)
	defer st.Close()
	defer logging.Close()

	board := report.NewBoard()
	c := buildCoordinator(cfg, st, board)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("pipeline starting",
		"db", cfg.DatabasePath,
		"cluster_interval_sec", cfg.Pipeline.ClusterIntervalSec)
	c.Start(ctx)

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "storyline: shutting down")
	c.Wait()

	printReport(board.Counters())
}
