// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify cross-checks collected evidence. For each collected topic
// node it extracts candidate claims, judges every evidence item's stance
// toward each claim, and records one verdict per claim with a confidence
// score and label.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/reasoning"
	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// StageName is the coverage-gap marker for this stage.
const StageName = "verification"

// ErrNoVerdicts is returned when no collected node could be verified. The
// orchestrator treats this as unrecoverable.
var ErrNoVerdicts = errors.New("verification produced no verdicts")

// Verdict label thresholds on the supporting fraction.
const (
	corroboratedMin = 0.66
	disputedMax     = 0.33
)

// maxClaimsPerTopic bounds claim extraction so stance checking stays at
// claims x evidence reasoning calls per node.
const maxClaimsPerTopic = 3

// Summary holds counts from a verification run.
type Summary struct {
	// Verified is the number of nodes that received a verdict.
	Verified int

	// Failed is the number of nodes where verification could not complete.
	// They keep status collected and are reported as coverage gaps.
	Failed int

	// Corroborated, Disputed, and Unverified count verdicts by label.
	Corroborated int
	Disputed     int
	Unverified   int
}

// Partial reports whether the stage completed with coverage gaps.
func (s Summary) Partial() bool { return s.Failed > 0 }

type claimsResponse struct {
	Claims []string `json:"claims"`
}

type stanceResponse struct {
	Stance string `json:"stance"`
}

// Run verifies every collected topic node: candidate claims are extracted
// from the node's evidence and every claim gets its own verdict, judged by
// checking each evidence item's stance toward it. Nodes are processed in a
// bounded pool; a reasoning failure on one node flags only that node.
// Verified nodes transition to status verified; nodes that already carry a
// verdict are skipped so re-running after a crash or retry adds nothing.
//
// A node with a single evidence item cannot be cross-checked: it receives an
// unverified verdict at confidence zero, with the item recorded as its
// supporting evidence.
func Run(ctx context.Context, engine reasoning.Engine, st *state.Research, cfg types.PipelineConfig, w io.Writer) (Summary, error) {
	var summary Summary
	nodes := st.TopicsByStatus(types.TopicCollected)

	var mu sync.Mutex

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, node := range nodes {
		node := node
		g.Go(func() error {
			if len(st.VerdictsByTopic(node.ID)) > 0 {
				return st.SetTopicStatus(node.ID, types.TopicVerified)
			}

			verdicts, err := verifyNode(gctx, engine, st, node, cfg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fmt.Fprintf(w, "warning: verification failed for %q: %v\n", node.Label, err)
				if gapErr := st.AddGap(StageName, node.ID, fmt.Sprintf("topic %q not verified: %v", node.Label, err)); gapErr != nil {
					return gapErr
				}
				summary.Failed++
				return nil
			}

			for _, v := range verdicts {
				if _, err := st.AddVerdict(v); err != nil {
					return err
				}
				switch v.Label {
				case types.VerdictCorroborated:
					summary.Corroborated++
				case types.VerdictDisputed:
					summary.Disputed++
				default:
					summary.Unverified++
				}
			}
			if err := st.SetTopicStatus(node.ID, types.TopicVerified); err != nil {
				return err
			}
			fmt.Fprintf(w, "verified %q: %d claim(s)\n", node.Label, len(verdicts))
			summary.Verified++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if summary.Verified == 0 && len(nodes) > 0 {
		return summary, fmt.Errorf("%w: %d node(s) failed", ErrNoVerdicts, summary.Failed)
	}

	fmt.Fprintf(w, "\nVerification summary: %d verified (%d corroborated, %d disputed, %d unverified), %d failed\n",
		summary.Verified, summary.Corroborated, summary.Disputed, summary.Unverified, summary.Failed)
	return summary, nil
}

// verifyNode builds the verdicts for one node from its evidence, one per
// extracted claim.
func verifyNode(ctx context.Context, engine reasoning.Engine, st *state.Research, node types.TopicNode, cfg types.PipelineConfig) ([]types.Verdict, error) {
	evidence := st.EvidenceByTopic(node.ID)
	if len(evidence) == 0 {
		return nil, fmt.Errorf("no evidence for topic %d", node.ID)
	}

	// One item gives nothing to cross-check against.
	if len(evidence) == 1 {
		return []types.Verdict{{
			TopicID:    node.ID,
			Claim:      firstSentence(evidence[0].Text),
			Supporting: []int{evidence[0].ID},
			Confidence: 0,
			Label:      types.VerdictUnverified,
		}}, nil
	}

	claims, err := extractClaims(ctx, engine, node.Label, evidence, cfg)
	if err != nil {
		return nil, err
	}

	verdicts := make([]types.Verdict, 0, len(claims))
	for _, claim := range claims {
		verdict := types.Verdict{TopicID: node.ID, Claim: claim}
		for _, item := range evidence {
			stance, err := checkStance(ctx, engine, claim, item, cfg)
			if err != nil {
				return nil, err
			}
			switch stance {
			case "supporting":
				verdict.Supporting = append(verdict.Supporting, item.ID)
			case "contradicting":
				verdict.Contradicting = append(verdict.Contradicting, item.ID)
			}
		}

		judged := len(verdict.Supporting) + len(verdict.Contradicting)
		if judged > 0 {
			verdict.Confidence = float64(len(verdict.Supporting)) / float64(judged)
		}
		switch {
		case judged == 0:
			verdict.Label = types.VerdictUnverified
		case verdict.Confidence >= corroboratedMin:
			verdict.Label = types.VerdictCorroborated
		case verdict.Confidence <= disputedMax:
			verdict.Label = types.VerdictDisputed
		default:
			verdict.Label = types.VerdictUnverified
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts, nil
}

func extractClaims(ctx context.Context, engine reasoning.Engine, label string, evidence []types.EvidenceItem, cfg types.PipelineConfig) ([]string, error) {
	prompt, err := renderClaimsPrompt(label, evidence, maxClaimsPerTopic)
	if err != nil {
		return nil, err
	}
	text, err := reasoning.CompleteWithRetry(ctx, engine, prompt, cfg.RetryLimit, cfg.BackoffBase)
	if err != nil {
		return nil, err
	}
	var resp claimsResponse
	if err := json.Unmarshal([]byte(reasoning.ExtractJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("parsing claims: %w", err)
	}

	var claims []string
	for _, c := range resp.Claims {
		if c = strings.TrimSpace(c); c != "" {
			claims = append(claims, c)
		}
	}
	if len(claims) == 0 {
		return nil, fmt.Errorf("no claims in response")
	}
	if len(claims) > maxClaimsPerTopic {
		claims = claims[:maxClaimsPerTopic]
	}
	return claims, nil
}

func checkStance(ctx context.Context, engine reasoning.Engine, claim string, item types.EvidenceItem, cfg types.PipelineConfig) (string, error) {
	prompt, err := renderStancePrompt(claim, item)
	if err != nil {
		return "", err
	}
	text, err := reasoning.CompleteWithRetry(ctx, engine, prompt, cfg.RetryLimit, cfg.BackoffBase)
	if err != nil {
		return "", err
	}
	var resp stanceResponse
	if err := json.Unmarshal([]byte(reasoning.ExtractJSON(text)), &resp); err != nil {
		return "", fmt.Errorf("parsing stance: %w", err)
	}

	stance := strings.ToLower(strings.TrimSpace(resp.Stance))
	switch stance {
	case "supporting", "contradicting", "neutral":
		return stance, nil
	}
	// Off-script answers count as neutral rather than failing the node.
	return "neutral", nil
}

// firstSentence returns the leading sentence of a snippet, used as the claim
// when a single evidence item leaves nothing to cross-check.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ". "); idx >= 0 {
		return text[:idx+1]
	}
	return text
}
