package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: config)")
	top := fs.Int("top", 10, "Live families to list, largest first")
	fs.Parse(os.Args[1:])

	_, st := setup(*dbPath)
	defer st.Close()
	defer logging.Close()

	records, err := st.RecordCounts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyline: record counts: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Records")
	fmt.Printf("  unassigned:  %d\n", records[family.RecordUnassigned])
	fmt.Printf("  assigned:    %d\n", records[family.RecordAssigned])
	fmt.Printf("  recycled:    %d\n", records[family.RecordRecycled])

	families, err := st.FamilyCounts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyline: family counts: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nEvent Families")
	fmt.Printf("  seed:        %d\n", families[family.StatusSeed])
	fmt.Printf("  active:      %d\n", families[family.StatusActive])
	fmt.Printf("  merged:      %d\n", families[family.StatusMerged])
	fmt.Printf("  split:       %d\n", families[family.StatusSplit])
	fmt.Printf("  archived:    %d\n", families[family.StatusArchived])

	live, err := st.LargeLiveFamilies(1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyline: live families: %v\n", err)
		os.Exit(1)
	}
	if len(live) == 0 {
		return
	}
	if len(live) > *top {
		live = live[:*top]
	}
	fmt.Printf("\nLargest live families (%d)\n", len(live))
	for _, f := range live {
		fmt.Printf("  %3d  %-10s %-14s %s\n", len(f.Members), f.Category, f.Theater, f.Title)
	}
}
