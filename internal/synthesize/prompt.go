// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// narrativePromptTmpl asks the model to write a short cited narrative for
// one topic from its corroborated claims and supporting evidence.
var narrativePromptTmpl = template.Must(template.New("narrative").Parse(`You are a research writer producing one section of a research report.

Research topic: {{.Label}}

Corroborated claims:
{{range .Claims}}- {{.}}
{{end}}
Supporting evidence:
{{range .Evidence}}[{{.ID}}] ({{.Provider}}) {{.Text}}
{{end}}
Write a concise narrative (2-4 sentences) presenting these claims. Cite evidence by listing the bracketed ids you relied on; cite only ids from the list above.

Respond with a JSON object. Do not include any text outside the JSON object.

Example response:
{"narrative": "Surface codes dominate current error-correction research.", "citations": [3, 7]}
`))

func renderNarrativePrompt(label string, claims []string, evidence []types.EvidenceItem) (string, error) {
	var buf bytes.Buffer
	err := narrativePromptTmpl.Execute(&buf, struct {
		Label    string
		Claims   []string
		Evidence []types.EvidenceItem
	}{Label: label, Claims: claims, Evidence: evidence})
	if err != nil {
		return "", fmt.Errorf("rendering narrative prompt: %w", err)
	}
	return buf.String(), nil
}
