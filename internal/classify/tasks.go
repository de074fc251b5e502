package classify

import (
	"context"
	"fmt"

	"github.com/abelbrown/storyline/internal/family"
)

// ProposeClusters asks for an incident grouping over one batch of
// records. Records the model leaves unclustered stay out of every
// proposal; the caller treats them as orphans.
func (c *Client) ProposeClusters(ctx context.Context, records []family.Record) ([]ClusterProposal, error) {
	if len(records) == 0 {
		return nil, nil
	}

	content, err := c.call(ctx, clusterSystemPrompt, clusterUserPrompt(records), 4096)
	if err != nil {
		return nil, err
	}

	var resp clusterResponse
	if err := decodeJSON(content, &resp); err != nil {
		return nil, err
	}

	batch := make(map[string]bool, len(records))
	for _, r := range records {
		batch[r.ID] = true
	}
	return validateClusters(resp, batch)
}

// CheckFit asks whether a single title belongs to a working theme.
func (c *Client) CheckFit(ctx context.Context, theme, title string) (bool, error) {
	content, err := c.call(ctx, fitSystemPrompt, fitUserPrompt(theme, title), 8)
	if err != nil {
		return false, err
	}
	return parseYesNo(content)
}

// AnalyzeCluster asks for the full interpretive read of one validated
// cluster. The theater hint comes from lexical signals; the model may
// override it.
func (c *Client) AnalyzeCluster(ctx context.Context, records []family.Record, theaterHint family.Theater) (Analysis, error) {
	if len(records) == 0 {
		return Analysis{}, fmt.Errorf("empty cluster")
	}

	system := fmt.Sprintf(analysisSystemPrompt, categoryList(), theaterList())
	content, err := c.call(ctx, system, analysisUserPrompt(records, theaterHint), 2048)
	if err != nil {
		return Analysis{}, err
	}

	var resp analysisResponse
	if err := decodeJSON(content, &resp); err != nil {
		return Analysis{}, err
	}
	return resp.validate()
}

// CompareAnchors asks whether two live incidents describe the same
// underlying event.
func (c *Client) CompareAnchors(ctx context.Context, a, b family.EventFamily) (MergeVerdict, error) {
	content, err := c.call(ctx, mergeSystemPrompt, mergeUserPrompt(a, b), 256)
	if err != nil {
		return MergeVerdict{}, err
	}

	var verdict MergeVerdict
	if err := decodeJSON(content, &verdict); err != nil {
		return MergeVerdict{}, err
	}
	if verdict.SameIncident && verdict.Rationale == "" {
		verdict.Rationale = "anchors describe the same incident"
	}
	return verdict, nil
}

// ProposeSplit asks whether an overgrown incident should be partitioned
// into distinct children. The second return lists member IDs the model
// left out of every part; the caller assigns them to the largest child.
func (c *Client) ProposeSplit(ctx context.Context, fam family.EventFamily, records []family.Record) (SplitVerdict, []string, error) {
	content, err := c.call(ctx, splitSystemPrompt, splitUserPrompt(fam, records), 2048)
	if err != nil {
		return SplitVerdict{}, nil, err
	}

	var verdict SplitVerdict
	if err := decodeJSON(content, &verdict); err != nil {
		return SplitVerdict{}, nil, err
	}

	members := make(map[string]bool, len(records))
	for _, r := range records {
		members[r.ID] = true
	}
	return validateSplit(verdict, members)
}
