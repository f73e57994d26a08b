// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/internal/reasoning"
	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// narratorEngine returns a fixed narrative JSON, optionally failing for
// prompts containing failFor.
type narratorEngine struct {
	narrative string
	citations []int
	failFor   string
	calls     int
}

func (e *narratorEngine) Complete(_ context.Context, prompt string) (string, error) {
	e.calls++
	if e.failFor != "" && strings.Contains(prompt, e.failFor) {
		return "", fmt.Errorf("%w: backend down", reasoning.ErrUnavailable)
	}
	payload := struct {
		Narrative string `json:"narrative"`
		Citations []int  `json:"citations"`
	}{Narrative: e.narrative, Citations: e.citations}
	out, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func testCfg() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()
	cfg.RetryLimit = 1
	cfg.BackoffBase = time.Millisecond
	return cfg
}

// newVerified builds a state with one verified root node, three evidence
// items, and the given verdicts (TopicID filled in).
func newVerified(t *testing.T, verdicts ...types.Verdict) *state.Research {
	t.Helper()
	st := state.New("run-1", "Topic X")
	id, err := st.AddTopic("Topic X", 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("https://example.com/%d", i+1)
		if _, err := st.AddEvidence(id, "stub", fmt.Sprintf("snippet %d", i+1), url, time.Now().UTC()); err != nil {
			t.Fatal(err)
		}
	}
	for _, v := range verdicts {
		v.TopicID = id
		if _, err := st.AddVerdict(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.SetTopicStatus(id, types.TopicVerified); err != nil {
		t.Fatal(err)
	}
	return st
}

func soleFinding(t *testing.T, st *state.Research) types.Finding {
	t.Helper()
	findings := st.Findings()
	if len(findings) != 1 {
		t.Fatalf("len(findings) = %d, want 1", len(findings))
	}
	return findings[0]
}

func TestRunNarratesCorroboratedClaims(t *testing.T) {
	st := newVerified(t, types.Verdict{
		Claim:      "Claim A.",
		Supporting: []int{1, 2},
		Confidence: 1,
		Label:      types.VerdictCorroborated,
	})
	engine := &narratorEngine{narrative: "A narrative.", citations: []int{1, 2}}

	summary, err := Run(context.Background(), engine, st, testCfg(), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Synthesized != 1 || summary.Partial() {
		t.Errorf("summary = %+v", summary)
	}

	f := soleFinding(t, st)
	if f.Narrative != "A narrative." || f.InsufficientEvidence {
		t.Errorf("finding = %+v", f)
	}
	if !reflect.DeepEqual(f.Citations, []int{1, 2}) {
		t.Errorf("citations = %v, want [1 2]", f.Citations)
	}
}

// TestRunDiscardsCitationsOutsideSupportingSets covers the citation
// validation rule: only ids from corroborated supporting sets survive.
func TestRunDiscardsCitationsOutsideSupportingSets(t *testing.T) {
	st := newVerified(t, types.Verdict{
		Claim:      "Claim A.",
		Supporting: []int{1},
		Confidence: 1,
		Label:      types.VerdictCorroborated,
	})
	// Evidence 3 exists but supports nothing; 99 does not exist at all.
	engine := &narratorEngine{narrative: "A narrative.", citations: []int{1, 3, 99}}

	if _, err := Run(context.Background(), engine, st, testCfg(), io.Discard); err != nil {
		t.Fatal(err)
	}

	f := soleFinding(t, st)
	if !reflect.DeepEqual(f.Citations, []int{1}) {
		t.Errorf("citations = %v, want [1]", f.Citations)
	}
}

// TestRunAllCitationsInvalidFallsBackToSupportingSet pins the non-empty
// citation rule for corroborated findings: when nothing the model cited
// survives validation, the finding cites the corroborated supporting
// evidence instead of shipping with no citations.
func TestRunAllCitationsInvalidFallsBackToSupportingSet(t *testing.T) {
	st := newVerified(t, types.Verdict{
		Claim:      "Claim A.",
		Supporting: []int{1, 2},
		Confidence: 1,
		Label:      types.VerdictCorroborated,
	})
	engine := &narratorEngine{narrative: "A narrative.", citations: []int{99}}

	if _, err := Run(context.Background(), engine, st, testCfg(), io.Discard); err != nil {
		t.Fatal(err)
	}

	f := soleFinding(t, st)
	if f.InsufficientEvidence {
		t.Errorf("finding = %+v, want corroborated", f)
	}
	if !reflect.DeepEqual(f.Citations, []int{1, 2}) {
		t.Errorf("citations = %v, want the supporting set [1 2]", f.Citations)
	}
}

func TestRunDisputedClaimsDroppedByDefault(t *testing.T) {
	st := newVerified(t,
		types.Verdict{Claim: "Claim A.", Supporting: []int{1}, Confidence: 1, Label: types.VerdictCorroborated},
		types.Verdict{Claim: "Claim B.", Contradicting: []int{2, 3}, Confidence: 0, Label: types.VerdictDisputed},
	)
	engine := &narratorEngine{narrative: "A narrative.", citations: []int{1}}

	if _, err := Run(context.Background(), engine, st, testCfg(), io.Discard); err != nil {
		t.Fatal(err)
	}

	f := soleFinding(t, st)
	if len(f.Caveats) != 0 {
		t.Errorf("caveats = %v, want none without include_disputed_claims", f.Caveats)
	}
}

func TestRunDisputedClaimsBecomeCaveatsWhenEnabled(t *testing.T) {
	st := newVerified(t,
		types.Verdict{Claim: "Claim A.", Supporting: []int{1}, Confidence: 1, Label: types.VerdictCorroborated},
		types.Verdict{Claim: "Claim B.", Contradicting: []int{2, 3}, Confidence: 0, Label: types.VerdictDisputed},
	)
	cfg := testCfg()
	cfg.IncludeDisputedClaims = true
	engine := &narratorEngine{narrative: "A narrative.", citations: []int{1}}

	if _, err := Run(context.Background(), engine, st, cfg, io.Discard); err != nil {
		t.Fatal(err)
	}

	f := soleFinding(t, st)
	if len(f.Caveats) != 1 || !strings.Contains(f.Caveats[0], "Claim B.") {
		t.Errorf("caveats = %v, want the disputed claim", f.Caveats)
	}
}

func TestRunZeroCorroboratedIsInsufficientEvidence(t *testing.T) {
	st := newVerified(t, types.Verdict{
		Claim:         "Claim B.",
		Contradicting: []int{1, 2},
		Confidence:    0,
		Label:         types.VerdictDisputed,
	})
	engine := &narratorEngine{narrative: "should not be asked"}

	summary, err := Run(context.Background(), engine, st, testCfg(), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Insufficient != 1 || !summary.Partial() {
		t.Errorf("summary = %+v, want partial with one insufficient", summary)
	}
	if engine.calls != 0 {
		t.Errorf("engine calls = %d, want 0", engine.calls)
	}

	f := soleFinding(t, st)
	if !f.InsufficientEvidence || len(f.Citations) != 0 {
		t.Errorf("finding = %+v, want insufficient-evidence with no citations", f)
	}
}

func TestRunNarrationFailureFallsBackWithGap(t *testing.T) {
	st := newVerified(t, types.Verdict{
		Claim:      "Claim A.",
		Supporting: []int{1},
		Confidence: 1,
		Label:      types.VerdictCorroborated,
	})
	engine := &narratorEngine{failFor: "Research topic: Topic X"}

	summary, err := Run(context.Background(), engine, st, testCfg(), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || !summary.Partial() {
		t.Errorf("summary = %+v", summary)
	}

	f := soleFinding(t, st)
	if !f.InsufficientEvidence {
		t.Errorf("finding = %+v, want insufficient-evidence fallback", f)
	}
	gaps := st.Gaps()
	if len(gaps) != 1 || gaps[0].Stage != StageName {
		t.Errorf("gaps = %+v", gaps)
	}
}

func TestRunSkipsTopicsWithFindings(t *testing.T) {
	st := newVerified(t, types.Verdict{
		Claim:      "Claim A.",
		Supporting: []int{1},
		Confidence: 1,
		Label:      types.VerdictCorroborated,
	})
	if _, err := st.AddFinding(types.Finding{TopicID: 1, Narrative: "Existing.", Citations: []int{1}}); err != nil {
		t.Fatal(err)
	}

	engine := &narratorEngine{narrative: "New narrative."}
	summary, err := Run(context.Background(), engine, st, testCfg(), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Synthesized != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if got := soleFinding(t, st); got.Narrative != "Existing." {
		t.Errorf("finding = %+v, want the pre-existing one only", got)
	}
}

func TestRunNoVerifiedTopicsIsError(t *testing.T) {
	st := state.New("run-1", "Topic X")
	if _, err := st.AddTopic("Topic X", 0); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), &narratorEngine{}, st, testCfg(), io.Discard)
	if !errors.Is(err, ErrNoFindings) {
		t.Errorf("err = %v, want ErrNoFindings", err)
	}
}
