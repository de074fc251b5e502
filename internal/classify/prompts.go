package classify

import (
	"fmt"
	"strings"

	"github.com/abelbrown/storyline/internal/family"
)

const clusterSystemPrompt = `You group news titles into incidents. An incident is one real-world
event or tightly coupled development, not a broad topic. Titles about
distinct events stay apart even when they share a region or actor.

Reply with JSON only, no prose:
{"clusters":[{"record_ids":["id",...],"theme":"one line"}]}

Rules:
- Use only the record ids given. Never invent ids.
- A record belongs to at most one cluster.
- Leave out records that match nothing; do not force singleton clusters.`

const fitSystemPrompt = `You check whether one news title belongs to a working incident theme.
Answer with exactly one word: yes or no.`

const analysisSystemPrompt = `You analyze a cluster of news titles describing one incident.

Reply with JSON only, no prose:
{
  "title": "short incident title",
  "summary": "2-3 sentence summary",
  "anchor": "one sentence stating the concrete underlying event",
  "actors": ["canonical actor names"],
  "category": "one of: %s",
  "theater": "one of: %s",
  "timeline": [{"date":"YYYY-MM-DD","headline":"..."}]
}

The anchor names the single concrete event the titles orbit. The
category and theater must come from the given lists exactly.`

const mergeSystemPrompt = `You compare two incident anchors and decide whether they describe the
same underlying real-world incident. Shared region or actors alone is
not enough; the concrete event must be the same.

Reply with JSON only, no prose:
{"same_incident": true|false, "rationale": "one line"}`

const splitSystemPrompt = `You examine a large incident and decide whether it has drifted into
covering several distinct incidents.

Reply with JSON only, no prose. If it reads as one coherent incident:
{"split": false, "parts": []}

If it covers distinct incidents, partition the member records:
{"split": true, "parts": [{"title":"...","anchor":"...","record_ids":["id",...]}]}

Rules:
- At least two parts, each with a title, an anchor, and members.
- Use only the record ids given. A record belongs to at most one part.
- Do not split over minor subplots of the same underlying event.`

func clusterUserPrompt(records []family.Record) string {
	var b strings.Builder
	b.WriteString("Records:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s: %s\n", r.ID, r.Text)
	}
	return b.String()
}

func fitUserPrompt(theme, title string) string {
	return fmt.Sprintf("Theme: %s\nTitle: %s\nDoes the title belong to the theme?", theme, title)
}

func analysisUserPrompt(records []family.Record, theaterHint family.Theater) string {
	var b strings.Builder
	b.WriteString("Titles in this cluster:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Published.Format("2006-01-02"), r.Text)
	}
	if theaterHint != "" {
		fmt.Fprintf(&b, "\nLexical signals suggest theater %s; override if the titles say otherwise.\n", theaterHint)
	}
	return b.String()
}

func mergeUserPrompt(a, b family.EventFamily) string {
	return fmt.Sprintf(
		"Incident A: %s\nAnchor A: %s\nActors A: %s\n\nIncident B: %s\nAnchor B: %s\nActors B: %s",
		a.Title, a.Anchor, strings.Join(a.Actors, ", "),
		b.Title, b.Anchor, strings.Join(b.Actors, ", "),
	)
}

func splitUserPrompt(fam family.EventFamily, records []family.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s\nAnchor: %s\n\nMember records:\n", fam.Title, fam.Anchor)
	for _, r := range records {
		fmt.Fprintf(&b, "%s: %s\n", r.ID, r.Text)
	}
	return b.String()
}

func categoryList() string {
	names := make([]string, 0, len(family.Categories()))
	for _, c := range family.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func theaterList() string {
	names := make([]string, 0, len(family.Theaters()))
	for _, t := range family.Theaters() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
