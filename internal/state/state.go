// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state holds the mutable research state shared across pipeline
// stages: the topic tree, collected evidence, verdicts, findings, and report
// sections. The state is an append-only arena with monotonic entity IDs and
// a state-wide version counter; a single mutation lock serializes appends so
// concurrent work units within a stage remain safe.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrInvalidMutation is returned when a mutation references an entity that
// does not exist, or attempts an illegal transition.
var ErrInvalidMutation = errors.New("invalid mutation")

// ErrSealed is returned when a mutation is applied to a terminal state.
var ErrSealed = errors.New("state is sealed")

// Research is the aggregate research state. The orchestrator owns it; stage
// executors receive it for the duration of their invocation only. Committed
// entities are never edited in place; the sole permitted update is a topic
// status transition, and that too bumps the version.
type Research struct {
	mu sync.Mutex

	runID     string
	rootTopic string
	version   int
	stage     string
	sealed    bool

	topics   []types.TopicNode
	evidence []types.EvidenceItem
	verdicts []types.Verdict
	findings []types.Finding
	sections []types.ReportSection
	gaps     []types.CoverageGap
}

// New creates an empty research state for a run.
func New(runID, rootTopic string) *Research {
	return &Research{runID: runID, rootTopic: rootTopic}
}

// Restore rebuilds a research state from a checkpoint snapshot.
func Restore(snap *types.Snapshot) *Research {
	r := &Research{
		runID:     snap.RunID,
		rootTopic: snap.RootTopic,
		version:   snap.Version,
		stage:     snap.Stage,
	}
	r.topics = append(r.topics, snap.Topics...)
	r.evidence = append(r.evidence, snap.Evidence...)
	r.verdicts = append(r.verdicts, snap.Verdicts...)
	r.findings = append(r.findings, snap.Findings...)
	r.sections = append(r.sections, snap.Sections...)
	r.gaps = append(r.gaps, snap.Gaps...)
	return r
}

// RunID returns the run identifier.
func (r *Research) RunID() string { return r.runID }

// RootTopic returns the topic the run was started with.
func (r *Research) RootTopic() string { return r.rootTopic }

// Version returns the current state version.
func (r *Research) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Stage returns the current-stage marker.
func (r *Research) Stage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// SetStage records the current-stage marker.
func (r *Research) SetStage(stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.stage = stage
	r.version++
	return nil
}

// Seal freezes the state. All further mutations fail with ErrSealed.
// Called when the pipeline reaches its terminal state.
func (r *Research) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// AddTopic appends a topic node and returns its ID. parentID must be zero
// (root, only while the tree is empty) or reference an existing node; the
// child depth is parent depth + 1. New nodes start pending.
func (r *Research) AddTopic(label string, parentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return 0, ErrSealed
	}
	if label == "" {
		return 0, fmt.Errorf("%w: empty topic label", ErrInvalidMutation)
	}

	depth := 0
	if parentID == 0 {
		if len(r.topics) > 0 {
			return 0, fmt.Errorf("%w: root topic already exists", ErrInvalidMutation)
		}
	} else {
		parent, ok := r.topicLocked(parentID)
		if !ok {
			return 0, fmt.Errorf("%w: unknown parent topic %d", ErrInvalidMutation, parentID)
		}
		depth = parent.Depth + 1
	}

	id := len(r.topics) + 1
	r.topics = append(r.topics, types.TopicNode{
		ID:       id,
		Label:    label,
		ParentID: parentID,
		Depth:    depth,
		Status:   types.TopicPending,
	})
	r.version++
	return id, nil
}

// SetTopicStatus transitions a topic node's status. Status is the only field
// of a committed entity that may change.
func (r *Research) SetTopicStatus(id int, status types.TopicStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if id < 1 || id > len(r.topics) {
		return fmt.Errorf("%w: unknown topic %d", ErrInvalidMutation, id)
	}
	r.topics[id-1].Status = status
	r.version++
	return nil
}

// AddEvidence appends an evidence item for a topic and returns its ID.
func (r *Research) AddEvidence(topicID int, provider, text, provenanceURL string, retrievedAt time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return 0, ErrSealed
	}
	if _, ok := r.topicLocked(topicID); !ok {
		return 0, fmt.Errorf("%w: evidence references unknown topic %d", ErrInvalidMutation, topicID)
	}

	id := len(r.evidence) + 1
	r.evidence = append(r.evidence, types.EvidenceItem{
		ID:            id,
		TopicID:       topicID,
		Provider:      provider,
		Text:          text,
		ProvenanceURL: provenanceURL,
		RetrievedAt:   retrievedAt,
	})
	r.version++
	return id, nil
}

// AddVerdict appends a verification verdict and returns its ID. Every
// referenced evidence item must exist and belong to the verdict's topic.
func (r *Research) AddVerdict(v types.Verdict) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return 0, ErrSealed
	}
	if _, ok := r.topicLocked(v.TopicID); !ok {
		return 0, fmt.Errorf("%w: verdict references unknown topic %d", ErrInvalidMutation, v.TopicID)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return 0, fmt.Errorf("%w: confidence %f out of range [0,1]", ErrInvalidMutation, v.Confidence)
	}
	for _, set := range [][]int{v.Supporting, v.Contradicting} {
		for _, eid := range set {
			ev, ok := r.evidenceLocked(eid)
			if !ok {
				return 0, fmt.Errorf("%w: verdict references unknown evidence %d", ErrInvalidMutation, eid)
			}
			if ev.TopicID != v.TopicID {
				return 0, fmt.Errorf("%w: evidence %d belongs to topic %d, not %d",
					ErrInvalidMutation, eid, ev.TopicID, v.TopicID)
			}
		}
	}

	v.ID = len(r.verdicts) + 1
	r.verdicts = append(r.verdicts, v)
	r.version++
	return v.ID, nil
}

// AddFinding appends a synthesis finding and returns its ID. Citations must
// reference existing evidence items.
func (r *Research) AddFinding(f types.Finding) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return 0, ErrSealed
	}
	if _, ok := r.topicLocked(f.TopicID); !ok {
		return 0, fmt.Errorf("%w: finding references unknown topic %d", ErrInvalidMutation, f.TopicID)
	}
	for _, eid := range f.Citations {
		if _, ok := r.evidenceLocked(eid); !ok {
			return 0, fmt.Errorf("%w: finding cites unknown evidence %d", ErrInvalidMutation, eid)
		}
	}

	f.ID = len(r.findings) + 1
	r.findings = append(r.findings, f)
	r.version++
	return f.ID, nil
}

// AppendSection appends a report section. Position is assigned from the
// current section count. Citations must reference existing evidence items.
func (r *Research) AppendSection(heading, body string, citations []int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return 0, ErrSealed
	}
	for _, eid := range citations {
		if _, ok := r.evidenceLocked(eid); !ok {
			return 0, fmt.Errorf("%w: section cites unknown evidence %d", ErrInvalidMutation, eid)
		}
	}

	pos := len(r.sections) + 1
	r.sections = append(r.sections, types.ReportSection{
		Position:  pos,
		Heading:   heading,
		Body:      body,
		Citations: append([]int(nil), citations...),
	})
	r.version++
	return pos, nil
}

// AddGap records a coverage gap annotation.
func (r *Research) AddGap(stage string, topicID int, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.gaps = append(r.gaps, types.CoverageGap{Stage: stage, TopicID: topicID, Detail: detail})
	r.version++
	return nil
}

// Topic returns a copy of the topic node with the given ID.
func (r *Research) Topic(id int) (types.TopicNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topicLocked(id)
}

// Topics returns a copy of all topic nodes in creation order.
func (r *Research) Topics() []types.TopicNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.TopicNode(nil), r.topics...)
}

// TopicsByStatus returns copies of all topic nodes with the given status,
// in creation order.
func (r *Research) TopicsByStatus(status types.TopicStatus) []types.TopicNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.TopicNode
	for _, n := range r.topics {
		if n.Status == status {
			out = append(out, n)
		}
	}
	return out
}

// Evidence returns a copy of all evidence items in creation order.
func (r *Research) Evidence() []types.EvidenceItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.EvidenceItem(nil), r.evidence...)
}

// EvidenceByTopic returns copies of the evidence items for one topic.
func (r *Research) EvidenceByTopic(topicID int) []types.EvidenceItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.EvidenceItem
	for _, e := range r.evidence {
		if e.TopicID == topicID {
			out = append(out, e)
		}
	}
	return out
}

// Verdicts returns a copy of all verdicts in creation order.
func (r *Research) Verdicts() []types.Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Verdict(nil), r.verdicts...)
}

// VerdictsByTopic returns copies of the verdicts for one topic.
func (r *Research) VerdictsByTopic(topicID int) []types.Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Verdict
	for _, v := range r.verdicts {
		if v.TopicID == topicID {
			out = append(out, v)
		}
	}
	return out
}

// Findings returns a copy of all findings in creation order.
func (r *Research) Findings() []types.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Finding(nil), r.findings...)
}

// Sections returns a copy of the report sections in order.
func (r *Research) Sections() []types.ReportSection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ReportSection(nil), r.sections...)
}

// Gaps returns a copy of the recorded coverage gaps.
func (r *Research) Gaps() []types.CoverageGap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.CoverageGap(nil), r.gaps...)
}

// Snapshot returns a deep immutable copy of the state for checkpointing
// and export.
func (r *Research) Snapshot() *types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := &types.Snapshot{
		RunID:     r.runID,
		RootTopic: r.rootTopic,
		Version:   r.version,
		Stage:     r.stage,
	}
	snap.Topics = append(snap.Topics, r.topics...)
	snap.Evidence = append(snap.Evidence, r.evidence...)
	for _, v := range r.verdicts {
		c := v
		c.Supporting = append([]int(nil), v.Supporting...)
		c.Contradicting = append([]int(nil), v.Contradicting...)
		snap.Verdicts = append(snap.Verdicts, c)
	}
	for _, f := range r.findings {
		c := f
		c.Citations = append([]int(nil), f.Citations...)
		c.Caveats = append([]string(nil), f.Caveats...)
		snap.Findings = append(snap.Findings, c)
	}
	for _, s := range r.sections {
		c := s
		c.Citations = append([]int(nil), s.Citations...)
		snap.Sections = append(snap.Sections, c)
	}
	snap.Gaps = append(snap.Gaps, r.gaps...)
	return snap
}

func (r *Research) topicLocked(id int) (types.TopicNode, bool) {
	if id < 1 || id > len(r.topics) {
		return types.TopicNode{}, false
	}
	return r.topics[id-1], true
}

func (r *Research) evidenceLocked(id int) (types.EvidenceItem, bool) {
	if id < 1 || id > len(r.evidence) {
		return types.EvidenceItem{}, false
	}
	return r.evidence[id-1], true
}
