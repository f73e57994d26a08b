// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect gathers evidence for expanded topic nodes from every
// configured source provider. Work units are per node/provider pairs,
// failure-isolated and run in a bounded pool; the stage ends with a
// barrier so no later stage sees partial collection output.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/provider"
	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// StageName is the coverage-gap marker for this stage.
const StageName = "collection"

// ErrNoEvidence is returned when every node/provider pair failed and the
// stage produced nothing. The orchestrator treats this as unrecoverable.
var ErrNoEvidence = errors.New("collection produced no evidence")

// Summary holds counts from a collection run.
type Summary struct {
	// Collected is the number of nodes with at least one successful provider.
	Collected int

	// Flagged is the number of nodes where every provider failed. They keep
	// status expanded and are reported as coverage gaps.
	Flagged int

	// Degraded is the number of nodes collected despite one or more provider
	// failures. The failures are recorded as coverage gaps.
	Degraded int

	// Skipped is the number of nodes already collected by an earlier run.
	Skipped int

	// Items is the number of evidence items appended.
	Items int
}

// Partial reports whether the stage completed with coverage gaps.
func (s Summary) Partial() bool { return s.Flagged > 0 || s.Degraded > 0 }

// Run queries every configured provider for every expanded node. Nodes
// already collected are skipped, so re-running after a crash or retry adds
// nothing (idempotence). A provider failure affects only its own
// node/provider pair; the node is marked collected as soon as one provider
// succeeds and flagged when all fail. Either way a provider failure leaves
// a coverage gap so the report can say what is missing.
func Run(ctx context.Context, providers []provider.Provider, st *state.Research, cfg types.PipelineConfig, w io.Writer) (Summary, error) {
	if len(providers) == 0 {
		return Summary{}, fmt.Errorf("no providers configured")
	}

	var summary Summary
	nodes := st.TopicsByStatus(types.TopicExpanded)

	type nodeOutcome struct {
		succeeded int
		failed    int
		lastErr   error
	}
	outcomes := make(map[int]*nodeOutcome, len(nodes))
	for _, n := range nodes {
		outcomes[n.ID] = &nodeOutcome{}
	}
	var mu sync.Mutex

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, node := range nodes {
		node := node
		for _, p := range providers {
			p := p
			g.Go(func() error {
				results, err := searchWithRetry(gctx, p, node.Label, cfg)

				mu.Lock()
				defer mu.Unlock()
				out := outcomes[node.ID]
				if err != nil {
					out.failed++
					out.lastErr = err
					fmt.Fprintf(w, "warning: %s failed for %q: %v\n", p.Name(), node.Label, err)
					// Failure is isolated to this pair; never cancel the group.
					return nil
				}

				for _, r := range results {
					if _, addErr := st.AddEvidence(node.ID, r.Provider, r.Text, r.ProvenanceURL, time.Now().UTC()); addErr != nil {
						return addErr
					}
					summary.Items++
				}
				out.succeeded++
				return nil
			})
		}
	}

	// Barrier: the stage owns all of its work units before any status
	// transition is judged.
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	for _, node := range nodes {
		out := outcomes[node.ID]
		switch {
		case out.succeeded > 0:
			if err := st.SetTopicStatus(node.ID, types.TopicCollected); err != nil {
				return summary, err
			}
			summary.Collected++
			if out.failed > 0 {
				detail := fmt.Sprintf("%d of %d providers failed for topic %q: %v",
					out.failed, len(providers), node.Label, out.lastErr)
				if err := st.AddGap(StageName, node.ID, detail); err != nil {
					return summary, err
				}
				summary.Degraded++
			}
		default:
			detail := fmt.Sprintf("all providers failed for topic %q", node.Label)
			if out.lastErr != nil {
				detail = fmt.Sprintf("%s: %v", detail, out.lastErr)
			}
			if err := st.AddGap(StageName, node.ID, detail); err != nil {
				return summary, err
			}
			fmt.Fprintf(w, "flagged %q: no provider succeeded\n", node.Label)
			summary.Flagged++
		}
	}

	// Nodes collected by an earlier invocation.
	summary.Skipped = len(st.TopicsByStatus(types.TopicCollected)) - summary.Collected

	if summary.Items == 0 && len(st.Evidence()) == 0 {
		return summary, fmt.Errorf("%w: %d node(s), %d provider(s)", ErrNoEvidence, len(nodes), len(providers))
	}

	fmt.Fprintf(w, "\nCollection summary: %d collected, %d flagged, %d items\n",
		summary.Collected, summary.Flagged, summary.Items)
	return summary, nil
}

// searchWithRetry calls a provider with exponential backoff on
// ErrUnavailable. ErrRejected and other errors are returned immediately.
func searchWithRetry(ctx context.Context, p provider.Provider, query string, cfg types.PipelineConfig) ([]provider.Result, error) {
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		results, err := p.Search(ctx, query, cfg.Provider.MaxResults)
		if err == nil {
			return results, nil
		}
		if !errors.Is(err, provider.ErrUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d retries: %w", cfg.RetryLimit, lastErr)
}
