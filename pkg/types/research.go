// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-assistant pipeline.
// See docs/ARCHITECTURE.md § Pipeline Interface, § Data Structures.
package types

import "time"

// TopicStatus tracks a topic node's progress through the pipeline stages.
type TopicStatus string

const (
	TopicPending   TopicStatus = "pending"
	TopicExpanded  TopicStatus = "expanded"
	TopicCollected TopicStatus = "collected"
	TopicVerified  TopicStatus = "verified"
)

// TopicNode is one node in the research topic tree produced by discovery.
// Every non-root node has exactly one parent; the tree carries no cycles.
type TopicNode struct {
	// ID is the arena-assigned identifier, monotonically increasing from 1.
	ID int `json:"id" yaml:"id"`

	// Label is the topic text proposed by discovery (or the root topic).
	Label string `json:"label" yaml:"label"`

	// ParentID references the parent node. Zero for the root.
	ParentID int `json:"parent_id" yaml:"parent_id"`

	// Depth is the discovery depth: 0 for the root, parent depth + 1 otherwise.
	Depth int `json:"depth" yaml:"depth"`

	// Status tracks pipeline progress: pending, expanded, collected, verified.
	// A node that stays pending after discovery was never expanded and is
	// excluded from later stages.
	Status TopicStatus `json:"status" yaml:"status"`
}

// EvidenceItem is a single retrieved snippet with provenance, tied to one
// topic node. Immutable once created.
type EvidenceItem struct {
	// ID is the arena-assigned identifier.
	ID int `json:"id" yaml:"id"`

	// TopicID is the topic node this evidence was collected for.
	TopicID int `json:"topic_id" yaml:"topic_id"`

	// Provider identifies the source backend (e.g. "web", "wikipedia", "openalex").
	Provider string `json:"provider" yaml:"provider"`

	// Text is the retrieved snippet.
	Text string `json:"text" yaml:"text"`

	// ProvenanceURL points at the original source.
	ProvenanceURL string `json:"provenance_url" yaml:"provenance_url"`

	// RetrievedAt is the retrieval timestamp.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
}

// VerdictLabel classifies the corroboration outcome for one claim.
type VerdictLabel string

const (
	VerdictCorroborated VerdictLabel = "corroborated"
	VerdictDisputed     VerdictLabel = "disputed"
	VerdictUnverified   VerdictLabel = "unverified"
)

// Verdict records the cross-source corroboration judgment for one extracted
// claim. Verdicts are append-only; corrections are new verdicts.
type Verdict struct {
	// ID is the arena-assigned identifier.
	ID int `json:"id" yaml:"id"`

	// TopicID is the topic node the claim belongs to.
	TopicID int `json:"topic_id" yaml:"topic_id"`

	// Claim is the claim text under assessment.
	Claim string `json:"claim" yaml:"claim"`

	// Supporting lists evidence item IDs that corroborate the claim.
	Supporting []int `json:"supporting" yaml:"supporting"`

	// Contradicting lists evidence item IDs that dispute the claim.
	Contradicting []int `json:"contradicting" yaml:"contradicting"`

	// Confidence is supporting / (supporting + contradicting), in [0,1].
	// Zero when no source addresses the claim.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Label is corroborated (confidence >= 0.66), disputed (<= 0.33),
	// or unverified otherwise.
	Label VerdictLabel `json:"label" yaml:"label"`
}

// Finding is the synthesized narrative for one topic, derived from that
// topic's verdicts.
type Finding struct {
	// ID is the arena-assigned identifier.
	ID int `json:"id" yaml:"id"`

	// TopicID is the topic the narrative covers.
	TopicID int `json:"topic_id" yaml:"topic_id"`

	// Narrative is the synthesized text.
	Narrative string `json:"narrative" yaml:"narrative"`

	// Citations lists the evidence item IDs the narrative cites. Only IDs
	// present in a corroborated verdict's supporting set are permitted.
	Citations []int `json:"citations" yaml:"citations"`

	// InsufficientEvidence marks a topic that had no corroborated verdicts
	// and is recorded explicitly rather than omitted.
	InsufficientEvidence bool `json:"insufficient_evidence" yaml:"insufficient_evidence"`

	// Caveats lists disputed claims carried along when the pipeline is
	// configured to include them.
	Caveats []string `json:"caveats,omitempty" yaml:"caveats,omitempty"`
}

// ReportSection is one ordered section of the final report.
type ReportSection struct {
	// Position is the section's place in the report, starting at 1.
	Position int `json:"position" yaml:"position"`

	// Heading is the section title.
	Heading string `json:"heading" yaml:"heading"`

	// Body is the section text.
	Body string `json:"body" yaml:"body"`

	// Citations lists evidence item IDs in citation order.
	Citations []int `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// CoverageGap records a topic or claim that could not be fully researched.
// Gaps surface in the final report instead of being silently dropped.
type CoverageGap struct {
	// Stage names the pipeline stage that hit the gap.
	Stage string `json:"stage" yaml:"stage"`

	// TopicID is the affected topic, or zero when the gap is not topic-bound.
	TopicID int `json:"topic_id,omitempty" yaml:"topic_id,omitempty"`

	// Detail describes what failed or was missing.
	Detail string `json:"detail" yaml:"detail"`
}

// Snapshot is an immutable copy of the research state, used for
// checkpointing, resume, and report export.
type Snapshot struct {
	// RunID identifies the pipeline run that produced this snapshot.
	RunID string `json:"run_id" yaml:"run_id"`

	// RootTopic is the research topic the run was started with.
	RootTopic string `json:"root_topic" yaml:"root_topic"`

	// Version is the state version at snapshot time.
	Version int `json:"version" yaml:"version"`

	// Stage is the current-stage marker at snapshot time.
	Stage string `json:"stage" yaml:"stage"`

	Topics   []TopicNode     `json:"topics" yaml:"topics"`
	Evidence []EvidenceItem  `json:"evidence" yaml:"evidence"`
	Verdicts []Verdict       `json:"verdicts" yaml:"verdicts"`
	Findings []Finding       `json:"findings" yaml:"findings"`
	Sections []ReportSection `json:"sections" yaml:"sections"`
	Gaps     []CoverageGap   `json:"gaps,omitempty" yaml:"gaps,omitempty"`
}
