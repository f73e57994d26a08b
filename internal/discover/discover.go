// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover expands the root topic into a bounded tree of research
// sub-topics using the reasoning backend. It is the first pipeline stage.
package discover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/research-assistant/internal/reasoning"
	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// StageName is the coverage-gap marker for this stage.
const StageName = "discovery"

// ErrNoTopics is returned when not a single node could be expanded. The
// orchestrator treats this as unrecoverable: there is nothing to research.
var ErrNoTopics = errors.New("discovery produced no expanded topics")

// Summary holds counts from a discovery run.
type Summary struct {
	// Expanded is the number of nodes successfully expanded (including
	// max-depth leaves, which expand to nothing).
	Expanded int

	// Failed is the number of nodes whose reasoning budget was exhausted.
	// They stay pending permanently and are excluded from later stages.
	Failed int
}

// Partial reports whether the stage completed with coverage gaps.
func (s Summary) Partial() bool { return s.Failed > 0 }

// childTopic is a single proposed sub-topic in the reasoning response.
type childTopic struct {
	Title string `json:"title"`
}

// childResponse is the structured reasoning response for one node.
type childResponse struct {
	Subtopics []childTopic `json:"subtopics"`
}

// Run expands the topic tree breadth-first until the frontier is empty or
// every branch reaches cfg.MaxDepth. The root node must already exist in
// the state. Reasoning responses are treated as priority-ordered: when a
// node yields more children than MaxBreadth, the first MaxBreadth win.
//
// A node whose reasoning calls exhaust the retry budget is left pending,
// recorded as a coverage gap, and excluded from later stages; the run
// continues with the remaining frontier.
func Run(ctx context.Context, engine reasoning.Engine, st *state.Research, cfg types.PipelineConfig, w io.Writer) (Summary, error) {
	var summary Summary

	// Failed nodes keep status pending per the data model. The frontier
	// would return them forever, so track them locally and skip.
	failed := make(map[int]bool)

	for {
		frontier := st.TopicsByStatus(types.TopicPending)

		progressed := false
		for _, node := range frontier {
			if failed[node.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			// Max-depth nodes are leaves: expanded, no children.
			if node.Depth >= cfg.MaxDepth {
				if err := st.SetTopicStatus(node.ID, types.TopicExpanded); err != nil {
					return summary, err
				}
				summary.Expanded++
				progressed = true
				continue
			}

			children, err := proposeChildren(ctx, engine, st.RootTopic(), node, cfg)
			if err != nil {
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				fmt.Fprintf(w, "warning: expansion failed for %q: %v\n", node.Label, err)
				if gapErr := st.AddGap(StageName, node.ID, fmt.Sprintf("topic %q not expanded: %v", node.Label, err)); gapErr != nil {
					return summary, gapErr
				}
				failed[node.ID] = true
				summary.Failed++
				progressed = true
				continue
			}

			if len(children) > cfg.MaxBreadth {
				children = children[:cfg.MaxBreadth]
			}
			for _, child := range children {
				if _, err := st.AddTopic(child, node.ID); err != nil {
					return summary, err
				}
			}
			if err := st.SetTopicStatus(node.ID, types.TopicExpanded); err != nil {
				return summary, err
			}
			fmt.Fprintf(w, "expanded %q (%d children)\n", node.Label, len(children))
			summary.Expanded++
			progressed = true
		}

		if !progressed {
			break
		}
	}

	if summary.Expanded == 0 {
		return summary, fmt.Errorf("%w: %d node(s) failed", ErrNoTopics, summary.Failed)
	}
	return summary, nil
}

// proposeChildren asks the reasoning backend for sub-topics of one node.
func proposeChildren(ctx context.Context, engine reasoning.Engine, rootTopic string, node types.TopicNode, cfg types.PipelineConfig) ([]string, error) {
	prompt, err := renderDiscoveryPrompt(rootTopic, node.Label, cfg.MaxBreadth)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := reasoning.CompleteWithRetry(ctx, engine, prompt, cfg.RetryLimit, cfg.BackoffBase)
	if err != nil {
		return nil, err
	}

	var resp childResponse
	if err := json.Unmarshal([]byte(reasoning.ExtractJSON(text)), &resp); err != nil {
		// Unparseable root output falls back to a single overview child so
		// the run can still produce a report.
		if node.ParentID == 0 {
			return []string{node.Label + " overview"}, nil
		}
		return nil, fmt.Errorf("parsing subtopics: %w", err)
	}

	var children []string
	for _, c := range resp.Subtopics {
		title := strings.TrimSpace(c.Title)
		if title != "" {
			children = append(children, title)
		}
	}
	return children, nil
}
