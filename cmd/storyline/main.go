// Command storyline runs the incident clustering pipeline: it groups
// relevance-filtered news titles into Event Families, keeps them merged
// under stable grouping keys, and revises them continuously.
//
// Usage:
//
//	storyline               Show help
//	storyline run           Run the recurring pipeline until interrupted
//	storyline once          Run every pass a single time and print the report
//	storyline stats         Store statistics
//	storyline watch         Live operator dashboard
package main

import (
	"fmt"
	"os"
)

const usage = `storyline - incident clustering pipeline

Usage:
  storyline <command> [flags]

Commands:
  run         Run the recurring passes until interrupted
  once        Run every pass a single time and print the report
  stats       Record and Event Family statistics from the store
  watch       Live dashboard: counters, store totals, recent activity

Environment:
  CLAUDE_API_KEY / ANTHROPIC_API_KEY   Claude classification provider
  OPENAI_API_KEY                       OpenAI classification provider
  GOOGLE_API_KEY                       Gemini classification provider
  XAI_API_KEY                          Grok classification provider
  OLLAMA_HOST                          Local Ollama endpoint

Run 'storyline <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "run":
		runRun()
	case "once":
		runOnce()
	case "stats":
		runStats()
	case "watch":
		runWatch()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "storyline: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
