// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// claimsPromptTmpl asks the model for the candidate factual claims made by
// a topic's evidence snippets.
var claimsPromptTmpl = template.Must(template.New("claims").Parse(`You are a research analyst extracting candidate factual claims from collected evidence.

Research topic: {{.Label}}

Evidence snippets:
{{range .Evidence}}[{{.ID}}] ({{.Provider}}) {{.Text}}
{{end}}
List up to {{.MaxClaims}} distinct factual claims these snippets address, most important first. Each claim is one declarative sentence, specific enough to be checked against each snippet individually.

Respond with a JSON object. Do not include any text outside the JSON object.

Example response:
{"claims": ["Surface codes are the leading approach to quantum error correction.", "Logical qubit error rates fell below physical rates in 2024."]}
`))

// stancePromptTmpl asks the model whether one evidence snippet supports or
// contradicts a claim.
var stancePromptTmpl = template.Must(template.New("stance").Parse(`You are a research analyst checking one piece of evidence against a claim.

Claim: {{.Claim}}

Evidence snippet:
({{.Provider}}) {{.Text}}

Does this snippet support the claim, contradict it, or neither? Answer "supporting" only if the snippet affirms the claim, "contradicting" only if it denies or undermines it, and "neutral" if it is unrelated or ambiguous.

Respond with a JSON object. Do not include any text outside the JSON object.

Example response:
{"stance": "supporting"}
`))

func renderClaimsPrompt(label string, evidence []types.EvidenceItem, maxClaims int) (string, error) {
	var buf bytes.Buffer
	err := claimsPromptTmpl.Execute(&buf, struct {
		Label     string
		Evidence  []types.EvidenceItem
		MaxClaims int
	}{Label: label, Evidence: evidence, MaxClaims: maxClaims})
	if err != nil {
		return "", fmt.Errorf("rendering claims prompt: %w", err)
	}
	return buf.String(), nil
}

func renderStancePrompt(claim string, item types.EvidenceItem) (string, error) {
	var buf bytes.Buffer
	err := stancePromptTmpl.Execute(&buf, struct {
		Claim    string
		Provider string
		Text     string
	}{Claim: claim, Provider: item.Provider, Text: item.Text})
	if err != nil {
		return "", fmt.Errorf("rendering stance prompt: %w", err)
	}
	return buf.String(), nil
}
