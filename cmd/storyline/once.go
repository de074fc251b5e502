package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
)

func runOnce() {
	fs := flag.NewFlagSet("once", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: config)")
	fixture := fs.Bool("fixture", false, "Seed a small demo batch before running")
	fs.Parse(os.Args[1:])

	cfg, st := setup(*dbPath)
	defer st.Close()
	defer logging.Close()

	if *fixture {
		n, err := st.SaveRecords(fixtureRecords())
		if err != nil {
			fmt.Fprintf(os.Stderr, "storyline: seed fixture: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("seeded %d fixture records\n", n)
	}

	board := report.NewBoard()
	c := buildCoordinator(cfg, st, board)

	counters, err := c.RunOnce(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyline: cycle failed: %v\n", err)
		printReport(counters)
		os.Exit(1)
	}
	printReport(counters)
}
