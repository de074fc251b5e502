package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/ui"
)

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: config)")
	passive := fs.Bool("passive", false, "Watch the store without running the pipeline")
	fs.Parse(os.Args[1:])

	cfg, st := setup(*dbPath)
	defer st.Close()
	defer logging.Close()

	board := report.NewBoard()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wait func()
	if !*passive {
		c := buildCoordinator(cfg, st, board)
		c.Start(ctx)
		wait = c.Wait
	}

	p := tea.NewProgram(ui.New(st, board), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "storyline: dashboard: %v\n", err)
		os.Exit(1)
	}

	cancel()
	if wait != nil {
		wait()
	}
}
