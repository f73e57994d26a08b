// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesize turns verified verdicts into per-topic findings. It
// narrates corroborated claims with validated citations, surfaces disputed
// claims as caveats when configured to, and records an explicit
// insufficient-evidence finding for topics with nothing corroborated.
package synthesize

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
const StageName = "synthesis"

// ErrNoFindings is returned when there were no verified topics to
// synthesize. The orchestrator treats this as unrecoverable.
var ErrNoFindings = errors.New("synthesis produced no findings")

// insufficientNarrative is the fixed narrative for topics where no claim
// survived verification.
const insufficientNarrative = "Insufficient corroborated evidence was found for this topic."

// Summary holds counts from a synthesis run.
type Summary struct {
	// Synthesized is the number of topics with a narrated finding.
	Synthesized int

	// Insufficient is the number of topics recorded with an
	// insufficient-evidence finding because nothing was corroborated.
	Insufficient int

	// Failed is the number of topics where narration failed; they fall back
	// to an insufficient-evidence finding plus a coverage gap.
	Failed int

	// Skipped is the number of topics that already had a finding.
	Skipped int
}

// Partial reports whether the stage completed with degraded output.
func (s Summary) Partial() bool { return s.Insufficient > 0 || s.Failed > 0 }

type narrativeResponse struct {
	Narrative string `json:"narrative"`
	Citations []int  `json:"citations"`
}

// Run synthesizes a finding for every verified topic node. Topics that
// already carry a finding are skipped, so re-running after a crash or retry
// adds nothing. Every verified topic ends the stage with exactly one
// finding; degraded topics get the insufficient-evidence form.
func Run(ctx context.Context, engine reasoning.Engine, st *state.Research, cfg types.PipelineConfig, w io.Writer) (Summary, error) {
	var summary Summary
	nodes := st.TopicsByStatus(types.TopicVerified)
	if len(nodes) == 0 {
		return summary, ErrNoFindings
	}

	covered := make(map[int]bool)
	for _, f := range st.Findings() {
		covered[f.TopicID] = true
	}

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if covered[node.ID] {
			summary.Skipped++
			continue
		}

		corroborated, caveats, citedOrder, cited := splitVerdicts(st.VerdictsByTopic(node.ID), cfg.IncludeDisputedClaims)

		if len(corroborated) == 0 {
			f := types.Finding{
				TopicID:              node.ID,
				Narrative:            insufficientNarrative,
				InsufficientEvidence: true,
				Caveats:              caveats,
			}
			if _, err := st.AddFinding(f); err != nil {
				return summary, err
			}
			fmt.Fprintf(w, "insufficient evidence for %q\n", node.Label)
			summary.Insufficient++
			continue
		}

		finding, err := narrate(ctx, engine, st, node, corroborated, citedOrder, cited, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			fmt.Fprintf(w, "warning: synthesis failed for %q: %v\n", node.Label, err)
			if gapErr := st.AddGap(StageName, node.ID, fmt.Sprintf("topic %q not synthesized: %v", node.Label, err)); gapErr != nil {
				return summary, gapErr
			}
			finding = types.Finding{
				TopicID:              node.ID,
				Narrative:            insufficientNarrative,
				InsufficientEvidence: true,
			}
			finding.Caveats = caveats
			if _, addErr := st.AddFinding(finding); addErr != nil {
				return summary, addErr
			}
			summary.Failed++
			continue
		}

		finding.Caveats = caveats
		if _, err := st.AddFinding(finding); err != nil {
			return summary, err
		}
		fmt.Fprintf(w, "synthesized %q (%d citations)\n", node.Label, len(finding.Citations))
		summary.Synthesized++
	}

	fmt.Fprintf(w, "\nSynthesis summary: %d synthesized, %d insufficient, %d failed, %d skipped\n",
		summary.Synthesized, summary.Insufficient, summary.Failed, summary.Skipped)
	return summary, nil
}

// splitVerdicts partitions a topic's verdicts into corroborated claims, the
// caveat lines for disputed claims (when enabled), and the evidence ids a
// narrative may cite (first-appearance order plus a membership set). Only
// evidence supporting a corroborated claim is citable.
func splitVerdicts(verdicts []types.Verdict, includeDisputed bool) (corroborated []string, caveats []string, citedOrder []int, cited map[int]bool) {
	cited = make(map[int]bool)
	for _, v := range verdicts {
		switch v.Label {
		case types.VerdictCorroborated:
			corroborated = append(corroborated, v.Claim)
			for _, id := range v.Supporting {
				if !cited[id] {
					cited[id] = true
					citedOrder = append(citedOrder, id)
				}
			}
		case types.VerdictDisputed:
			if includeDisputed {
				caveats = append(caveats, fmt.Sprintf("Disputed: %s (confidence %.2f)", v.Claim, v.Confidence))
			}
		}
	}
	return corroborated, caveats, citedOrder, cited
}

// narrate asks the reasoning backend for the topic narrative and validates
// the citations it returns.
func narrate(ctx context.Context, engine reasoning.Engine, st *state.Research, node types.TopicNode, claims []string, citedOrder []int, cited map[int]bool, cfg types.PipelineConfig) (types.Finding, error) {
	var citable []types.EvidenceItem
	for _, e := range st.EvidenceByTopic(node.ID) {
		if cited[e.ID] {
			citable = append(citable, e)
		}
	}

	prompt, err := renderNarrativePrompt(node.Label, claims, citable)
	if err != nil {
		return types.Finding{}, err
	}
	text, err := reasoning.CompleteWithRetry(ctx, engine, prompt, cfg.RetryLimit, cfg.BackoffBase)
	if err != nil {
		return types.Finding{}, err
	}

	var resp narrativeResponse
	if err := json.Unmarshal([]byte(reasoning.ExtractJSON(text)), &resp); err != nil {
		return types.Finding{}, fmt.Errorf("parsing narrative: %w", err)
	}
	narrative := strings.TrimSpace(resp.Narrative)
	if narrative == "" {
		return types.Finding{}, fmt.Errorf("empty narrative in response")
	}

	// Citations outside the corroborated supporting sets are discarded, not
	// fatal: the model is allowed to be sloppy, the report is not.
	var citations []int
	for _, id := range resp.Citations {
		if cited[id] {
			citations = append(citations, id)
		}
	}
	// A corroborated finding must cite something. When nothing the model
	// cited survives validation, cite the corroborated supporting evidence
	// itself.
	if len(citations) == 0 {
		citations = append(citations, citedOrder...)
	}

	return types.Finding{
		TopicID:   node.ID,
		Narrative: narrative,
		Citations: citations,
	}, nil
}
