// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report assembles the final report from synthesized findings and
// exports it. Sections follow the topic tree in depth-first pre-order, so
// the report reads in the order discovery explored the topic; coverage gaps
// get their own closing section instead of being dropped.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// StageName is the coverage-gap marker for this stage.
const StageName = "reporting"

// GapHeading titles the coverage-gap section.
const GapHeading = "Coverage Gaps"

// ErrNoSections is returned when there were no findings to report. The
// orchestrator treats this as unrecoverable.
var ErrNoSections = errors.New("report has no sections")

// Summary holds counts from a reporting run.
type Summary struct {
	// Sections is the number of report sections appended.
	Sections int

	// Gaps is the number of coverage gaps surfaced in the report.
	Gaps int

	// Skipped is true when sections already existed and the run was a no-op.
	Skipped bool
}

// Partial reports whether the report carries coverage gaps.
func (s Summary) Partial() bool { return s.Gaps > 0 }

// Run builds the report sections: one per finding in depth-first pre-order
// of the topic tree, then a coverage-gap section when gaps were recorded.
// A state that already has sections is left untouched, so re-running after
// a crash or retry adds nothing.
func Run(ctx context.Context, st *state.Research, w io.Writer) (Summary, error) {
	var summary Summary
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if existing := st.Sections(); len(existing) > 0 {
		summary.Sections = len(existing)
		summary.Gaps = len(st.Gaps())
		summary.Skipped = true
		return summary, nil
	}

	findings := make(map[int]types.Finding)
	for _, f := range st.Findings() {
		findings[f.TopicID] = f
	}
	if len(findings) == 0 {
		return summary, ErrNoSections
	}

	for _, node := range preorder(st.Topics()) {
		f, ok := findings[node.ID]
		if !ok {
			continue
		}
		body := f.Narrative
		for _, caveat := range f.Caveats {
			body += "\n\n" + caveat
		}
		if _, err := st.AppendSection(node.Label, body, f.Citations); err != nil {
			return summary, err
		}
		summary.Sections++
	}

	gaps := st.Gaps()
	if len(gaps) > 0 {
		var sb strings.Builder
		for _, g := range gaps {
			line := fmt.Sprintf("(%s): %s", g.Stage, g.Detail)
			if node, ok := st.Topic(g.TopicID); ok && g.TopicID != 0 {
				line = fmt.Sprintf("%s (%s): %s", node.Label, g.Stage, g.Detail)
			}
			sb.WriteString("- " + line + "\n")
		}
		if _, err := st.AppendSection(GapHeading, sb.String(), nil); err != nil {
			return summary, err
		}
		summary.Sections++
		summary.Gaps = len(gaps)
	}

	fmt.Fprintf(w, "report assembled: %d section(s), %d gap(s)\n", summary.Sections, summary.Gaps)
	return summary, nil
}

// preorder returns topic nodes in depth-first pre-order from the root,
// visiting children in creation order.
func preorder(topics []types.TopicNode) []types.TopicNode {
	children := make(map[int][]types.TopicNode)
	var root *types.TopicNode
	for i, n := range topics {
		if n.ParentID == 0 {
			root = &topics[i]
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], n)
	}
	if root == nil {
		return nil
	}

	var out []types.TopicNode
	var walk func(n types.TopicNode)
	walk = func(n types.TopicNode) {
		out = append(out, n)
		for _, c := range children[n.ID] {
			walk(c)
		}
	}
	walk(*root)
	return out
}

// Bibliography returns the evidence items cited anywhere in the report,
// deduplicated, in first-appearance order across sections.
func Bibliography(snap *types.Snapshot) []types.EvidenceItem {
	byID := make(map[int]types.EvidenceItem, len(snap.Evidence))
	for _, e := range snap.Evidence {
		byID[e.ID] = e
	}

	seen := make(map[int]bool)
	var out []types.EvidenceItem
	for _, s := range snap.Sections {
		for _, id := range s.Citations {
			if seen[id] {
				continue
			}
			seen[id] = true
			if e, ok := byID[id]; ok {
				out = append(out, e)
			}
		}
	}
	return out
}
