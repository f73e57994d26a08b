// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"bytes"
	"text/template"
)

// discoveryPromptTmpl asks the model for priority-ordered sub-topics of one
// node in the research tree.
var discoveryPromptTmpl = template.Must(template.New("discovery").Parse(`You are a research expert identifying key aspects of a research topic.

Main research topic: {{.RootTopic}}
Aspect to expand: {{.Label}}

Identify up to {{.MaxBreadth}} sub-topics that should be investigated to understand this aspect, ordered from most to least important. Each sub-topic needs a clear, concise title (3-8 words) usable as a search query.

Respond with a JSON object containing a "subtopics" array. Do not include any text outside the JSON object.

Example response:
{"subtopics": [{"title": "History of quantum error correction"}, {"title": "Surface code implementations"}]}
`))

// renderDiscoveryPrompt executes the discovery prompt template.
func renderDiscoveryPrompt(rootTopic, label string, maxBreadth int) (string, error) {
	var buf bytes.Buffer
	err := discoveryPromptTmpl.Execute(&buf, struct {
		RootTopic  string
		Label      string
		MaxBreadth int
	}{RootTopic: rootTopic, Label: label, MaxBreadth: maxBreadth})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
