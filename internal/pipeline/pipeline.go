// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline is the stateful orchestrator. It drives the stage
// executors through a fixed state machine, retries transient stage failures
// with exponential backoff, checkpoints after every successful transition,
// and resumes an interrupted run from its last completed stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/research-assistant/internal/checkpoint"
	"github.com/pdiddy/research-assistant/internal/collect"
	"github.com/pdiddy/research-assistant/internal/discover"
	"github.com/pdiddy/research-assistant/internal/provider"
	"github.com/pdiddy/research-assistant/internal/reasoning"
	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/internal/synthesize"
	"github.com/pdiddy/research-assistant/internal/verify"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// State names a pipeline machine state. Stage states share their name with
// the checkpoint stage marker.
type State string

const (
	StateInitialized  State = "initialized"
	StateDiscovering  State = "discovering"
	StateCollecting   State = "collecting"
	StateVerifying    State = "verifying"
	StateSynthesizing State = "synthesizing"
	StateReporting    State = "reporting"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// stageOrder is the fixed stage sequence. A run visits these in order;
// Failed is reachable from any of them.
var stageOrder = []State{
	StateDiscovering,
	StateCollecting,
	StateVerifying,
	StateSynthesizing,
	StateReporting,
}

// ErrRunNotFound is returned by Resume when the checkpoint store has no
// checkpoints for the requested run.
var ErrRunNotFound = errors.New("run not found in checkpoint store")

// ErrRunCompleted is returned by Resume when the run already reached a
// terminal state.
var ErrRunCompleted = errors.New("run already completed")

// stageFunc executes one stage against the state and reports whether it
// completed with partial results.
type stageFunc func(ctx context.Context, st *state.Research) (partial bool, err error)

// Pipeline orchestrates one research run at a time.
type Pipeline struct {
	engine    reasoning.Engine
	providers []provider.Provider
	store     *checkpoint.Store
	cfg       types.PipelineConfig
	out       io.Writer

	// runners maps each stage state to its executor. Tests substitute
	// entries to script stage outcomes.
	runners map[State]stageFunc

	status State
}

// New assembles a pipeline from its collaborators. The checkpoint store may
// be nil, in which case the run is not resumable.
func New(engine reasoning.Engine, providers []provider.Provider, store *checkpoint.Store, cfg types.PipelineConfig, out io.Writer) *Pipeline {
	p := &Pipeline{
		engine:    engine,
		providers: providers,
		store:     store,
		cfg:       cfg,
		out:       out,
		status:    StateInitialized,
	}
	p.runners = map[State]stageFunc{
		StateDiscovering: func(ctx context.Context, st *state.Research) (bool, error) {
			s, err := discover.Run(ctx, p.engine, st, p.cfg, p.out)
			return s.Partial(), err
		},
		StateCollecting: func(ctx context.Context, st *state.Research) (bool, error) {
			s, err := collect.Run(ctx, p.providers, st, p.cfg, p.out)
			return s.Partial(), err
		},
		StateVerifying: func(ctx context.Context, st *state.Research) (bool, error) {
			s, err := verify.Run(ctx, p.engine, st, p.cfg, p.out)
			return s.Partial(), err
		},
		StateSynthesizing: func(ctx context.Context, st *state.Research) (bool, error) {
			s, err := synthesize.Run(ctx, p.engine, st, p.cfg, p.out)
			return s.Partial(), err
		},
		StateReporting: func(ctx context.Context, st *state.Research) (bool, error) {
			s, err := report.Run(ctx, st, p.out)
			return s.Partial(), err
		},
	}
	return p
}

// Status returns the machine state after the last Run or Resume call.
func (p *Pipeline) Status() State { return p.status }

// Run executes a fresh research run on rootTopic and returns the final
// state snapshot. The returned snapshot is non-nil whenever a checkpoint
// exists, even on failure, so partial results are never lost.
func (p *Pipeline) Run(ctx context.Context, rootTopic string) (*types.Snapshot, error) {
	runID := uuid.NewString()
	st := state.New(runID, rootTopic)
	if _, err := st.AddTopic(rootTopic, 0); err != nil {
		p.status = StateFailed
		return nil, err
	}

	fmt.Fprintf(p.out, "run %s: researching %q\n", runID, rootTopic)
	if err := p.transition(st, StateInitialized); err != nil {
		p.status = StateFailed
		return st.Snapshot(), err
	}
	return p.execute(ctx, st, stageOrder)
}

// Resume continues an interrupted run from its last checkpoint, skipping
// every stage the checkpoint marks completed. An empty runID resumes the
// most recently checkpointed run.
func (p *Pipeline) Resume(ctx context.Context, runID string) (*types.Snapshot, error) {
	if p.store == nil {
		return nil, fmt.Errorf("no checkpoint store configured")
	}
	if runID == "" {
		latest, err := p.store.LatestRun()
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, ErrRunNotFound
		}
		runID = latest
	}

	marker, snap, err := p.store.LoadLatest(runID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	remaining := remainingStages(State(marker))
	if remaining == nil {
		p.status = StateCompleted
		return snap, ErrRunCompleted
	}

	fmt.Fprintf(p.out, "run %s: resuming at %s\n", runID, remaining[0])
	return p.execute(ctx, state.Restore(snap), remaining)
}

// remainingStages returns the stages still to run after the given
// checkpoint marker, or nil when the run is done.
func remainingStages(marker State) []State {
	if marker == StateCompleted {
		return nil
	}
	if marker == StateInitialized {
		return stageOrder
	}
	for i, s := range stageOrder {
		if s == marker {
			if i+1 == len(stageOrder) {
				return nil
			}
			return stageOrder[i+1:]
		}
	}
	return stageOrder
}

// execute drives the state machine through the given stages. Each stage is
// retried on transient failure, then either advances (checkpointing) or
// aborts the run to Failed.
func (p *Pipeline) execute(ctx context.Context, st *state.Research, stages []State) (*types.Snapshot, error) {
	partial := false
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			p.status = StateFailed
			return st.Snapshot(), err
		}

		p.status = stage
		if err := st.SetStage(string(stage)); err != nil {
			p.status = StateFailed
			return st.Snapshot(), err
		}

		stagePartial, err := p.runStageWithRetry(ctx, stage, st)
		if err != nil {
			p.status = StateFailed
			return st.Snapshot(), fmt.Errorf("stage %s: %w", stage, err)
		}
		partial = partial || stagePartial

		if err := p.transition(st, stage); err != nil {
			p.status = StateFailed
			return st.Snapshot(), err
		}
	}

	if err := st.SetStage(string(StateCompleted)); err != nil {
		p.status = StateFailed
		return st.Snapshot(), err
	}
	if err := p.transition(st, StateCompleted); err != nil {
		p.status = StateFailed
		return st.Snapshot(), err
	}
	st.Seal()
	p.status = StateCompleted

	if partial {
		fmt.Fprintf(p.out, "run %s: completed with coverage gaps\n", st.RunID())
	} else {
		fmt.Fprintf(p.out, "run %s: completed\n", st.RunID())
	}
	return st.Snapshot(), nil
}

// runStageWithRetry invokes one stage, retrying up to cfg.RetryLimit times
// with exponential backoff when the failure is transient. Stage executors
// are idempotent, so a retry never duplicates committed work.
func (p *Pipeline) runStageWithRetry(ctx context.Context, stage State, st *state.Research) (bool, error) {
	backoffBase := p.cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			fmt.Fprintf(p.out, "stage %s: transient failure, retrying in %s\n", stage, backoff)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		partial, err := p.runners[stage](ctx, st)
		if err == nil {
			return partial, nil
		}
		if Classify(err) != ClassTransient {
			return false, err
		}
		lastErr = err
	}
	return false, fmt.Errorf("after %d retries: %w", p.cfg.RetryLimit, lastErr)
}

// transition checkpoints the state after a completed machine state. With no
// store configured it is a no-op.
func (p *Pipeline) transition(st *state.Research, completed State) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.Save(string(completed), st.Snapshot()); err != nil {
		return fmt.Errorf("checkpointing after %s: %w", completed, err)
	}
	return nil
}
