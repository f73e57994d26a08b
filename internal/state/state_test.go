// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func newTestState(t *testing.T) *Research {
	t.Helper()
	return New("run-1", "Topic X")
}

// --- topics ---

func TestAddTopicAssignsMonotonicIDs(t *testing.T) {
	r := newTestState(t)

	root, err := r.AddTopic("Topic X", 0)
	if err != nil {
		t.Fatal(err)
	}
	if root != 1 {
		t.Errorf("root id = %d, want 1", root)
	}

	c1, err := r.AddTopic("Child A", root)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := r.AddTopic("Child B", root)
	if err != nil {
		t.Fatal(err)
	}
	if c1 != 2 || c2 != 3 {
		t.Errorf("child ids = %d, %d, want 2, 3", c1, c2)
	}

	node, ok := r.Topic(c1)
	if !ok {
		t.Fatal("child not found")
	}
	if node.Depth != 1 {
		t.Errorf("child depth = %d, want 1", node.Depth)
	}
	if node.Status != types.TopicPending {
		t.Errorf("new node status = %q, want pending", node.Status)
	}
}

func TestAddTopicRejectsUnknownParent(t *testing.T) {
	r := newTestState(t)
	if _, err := r.AddTopic("Topic X", 0); err != nil {
		t.Fatal(err)
	}

	_, err := r.AddTopic("orphan", 42)
	if !errors.Is(err, ErrInvalidMutation) {
		t.Errorf("err = %v, want ErrInvalidMutation", err)
	}
}

func TestAddTopicRejectsSecondRoot(t *testing.T) {
	r := newTestState(t)
	if _, err := r.AddTopic("Topic X", 0); err != nil {
		t.Fatal(err)
	}

	_, err := r.AddTopic("second root", 0)
	if !errors.Is(err, ErrInvalidMutation) {
		t.Errorf("err = %v, want ErrInvalidMutation", err)
	}
}

// TestTopicTreeInvariant checks the structural invariant after building a
// tree: every non-root node has exactly one existing parent and no cycles
// are reachable.
func TestTopicTreeInvariant(t *testing.T) {
	r := newTestState(t)
	root, _ := r.AddTopic("Topic X", 0)
	a, _ := r.AddTopic("A", root)
	b, _ := r.AddTopic("B", root)
	if _, err := r.AddTopic("A1", a); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddTopic("B1", b); err != nil {
		t.Fatal(err)
	}

	topics := r.Topics()
	for _, n := range topics {
		if n.ID == root {
			if n.ParentID != 0 {
				t.Errorf("root parent = %d, want 0", n.ParentID)
			}
			continue
		}
		if n.ParentID < 1 || n.ParentID > len(topics) {
			t.Errorf("node %d has nonexistent parent %d", n.ID, n.ParentID)
		}
		// Parent IDs are always smaller than child IDs in the arena, so a
		// cycle would require a forward reference.
		if n.ParentID >= n.ID {
			t.Errorf("node %d references non-ancestor parent %d", n.ID, n.ParentID)
		}
	}
}

// --- evidence and verdicts ---

func TestAddEvidenceValidatesTopic(t *testing.T) {
	r := newTestState(t)
	root, _ := r.AddTopic("Topic X", 0)

	id, err := r.AddEvidence(root, "web", "snippet", "https://example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("evidence id = %d, want 1", id)
	}

	if _, err := r.AddEvidence(99, "web", "snippet", "https://example.com", time.Now()); !errors.Is(err, ErrInvalidMutation) {
		t.Errorf("err = %v, want ErrInvalidMutation", err)
	}
}

func TestAddVerdictValidatesReferences(t *testing.T) {
	r := newTestState(t)
	root, _ := r.AddTopic("Topic X", 0)
	other, _ := r.AddTopic("Other", root)
	e1, _ := r.AddEvidence(root, "web", "s1", "u1", time.Now())
	eOther, _ := r.AddEvidence(other, "web", "s2", "u2", time.Now())

	tests := []struct {
		name    string
		verdict types.Verdict
		wantErr bool
	}{
		{
			name:    "valid",
			verdict: types.Verdict{TopicID: root, Claim: "c", Supporting: []int{e1}, Confidence: 1, Label: types.VerdictCorroborated},
		},
		{
			name:    "unknown evidence",
			verdict: types.Verdict{TopicID: root, Claim: "c", Supporting: []int{77}, Confidence: 0, Label: types.VerdictUnverified},
			wantErr: true,
		},
		{
			name:    "evidence from another topic",
			verdict: types.Verdict{TopicID: root, Claim: "c", Contradicting: []int{eOther}, Confidence: 0, Label: types.VerdictDisputed},
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			verdict: types.Verdict{TopicID: root, Claim: "c", Confidence: 1.5, Label: types.VerdictCorroborated},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.AddVerdict(tt.verdict)
			if tt.wantErr && !errors.Is(err, ErrInvalidMutation) {
				t.Errorf("err = %v, want ErrInvalidMutation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// --- versioning ---

func TestEveryMutationIncrementsVersion(t *testing.T) {
	r := newTestState(t)
	if r.Version() != 0 {
		t.Fatalf("initial version = %d, want 0", r.Version())
	}

	root, _ := r.AddTopic("Topic X", 0)
	r.SetTopicStatus(root, types.TopicExpanded)
	r.AddEvidence(root, "web", "s", "u", time.Now())
	r.AddGap("collection", root, "provider down")
	r.SetStage("Collecting")

	if got := r.Version(); got != 5 {
		t.Errorf("version = %d, want 5", got)
	}
}

func TestSealBlocksMutations(t *testing.T) {
	r := newTestState(t)
	root, _ := r.AddTopic("Topic X", 0)
	r.Seal()

	if _, err := r.AddTopic("late", root); !errors.Is(err, ErrSealed) {
		t.Errorf("AddTopic err = %v, want ErrSealed", err)
	}
	if err := r.SetTopicStatus(root, types.TopicExpanded); !errors.Is(err, ErrSealed) {
		t.Errorf("SetTopicStatus err = %v, want ErrSealed", err)
	}
	if err := r.AddGap("x", 0, "y"); !errors.Is(err, ErrSealed) {
		t.Errorf("AddGap err = %v, want ErrSealed", err)
	}
}

// --- concurrency ---

// TestConcurrentAppendsAreAtomic hammers the append gate from many
// goroutines and checks that every evidence ID is unique and the version
// matches the mutation count.
func TestConcurrentAppendsAreAtomic(t *testing.T) {
	r := newTestState(t)
	root, _ := r.AddTopic("Topic X", 0)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := r.AddEvidence(root, "web", "s", "u", time.Now()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	evidence := r.Evidence()
	if len(evidence) != workers*perWorker {
		t.Fatalf("evidence count = %d, want %d", len(evidence), workers*perWorker)
	}
	seen := make(map[int]bool)
	for _, e := range evidence {
		if seen[e.ID] {
			t.Fatalf("duplicate evidence id %d", e.ID)
		}
		seen[e.ID] = true
	}
	// 1 topic mutation + workers*perWorker evidence appends.
	if got := r.Version(); got != 1+workers*perWorker {
		t.Errorf("version = %d, want %d", got, 1+workers*perWorker)
	}
}

// --- snapshot / restore ---

func TestSnapshotRoundTrip(t *testing.T) {
	r := newTestState(t)
	root, _ := r.AddTopic("Topic X", 0)
	child, _ := r.AddTopic("Child", root)
	r.SetTopicStatus(root, types.TopicExpanded)
	e1, _ := r.AddEvidence(child, "wikipedia", "snippet", "https://en.wikipedia.org/wiki/X", time.Now().UTC())
	r.AddVerdict(types.Verdict{
		TopicID: child, Claim: "claim", Supporting: []int{e1},
		Confidence: 1, Label: types.VerdictCorroborated,
	})
	r.AddGap("collection", child, "one provider failed")
	r.SetStage("Collecting")

	snap := r.Snapshot()

	restored := Restore(snap)
	if restored.RunID() != "run-1" || restored.RootTopic() != "Topic X" {
		t.Errorf("restored identity = (%q, %q)", restored.RunID(), restored.RootTopic())
	}
	if restored.Version() != r.Version() {
		t.Errorf("restored version = %d, want %d", restored.Version(), r.Version())
	}
	if restored.Stage() != "Collecting" {
		t.Errorf("restored stage = %q, want Collecting", restored.Stage())
	}
	if len(restored.Topics()) != 2 || len(restored.Evidence()) != 1 || len(restored.Verdicts()) != 1 {
		t.Errorf("restored counts: topics=%d evidence=%d verdicts=%d",
			len(restored.Topics()), len(restored.Evidence()), len(restored.Verdicts()))
	}

	// Snapshot must be insulated from later mutations.
	r.AddTopic("Later", root)
	if len(snap.Topics) != 2 {
		t.Errorf("snapshot grew to %d topics after later mutation", len(snap.Topics))
	}
}
