// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// WriteMarkdown renders the report snapshot as Markdown: title, one heading
// per section with bracketed citation markers, and a references list built
// from the bibliography.
func WriteMarkdown(w io.Writer, snap *types.Snapshot) error {
	bib := Bibliography(snap)

	// Citation markers are renumbered 1..n in bibliography order.
	number := make(map[int]int, len(bib))
	for i, e := range bib {
		number[e.ID] = i + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", snap.RootTopic)
	fmt.Fprintf(&sb, "Run %s\n\n", snap.RunID)

	for _, s := range snap.Sections {
		fmt.Fprintf(&sb, "## %s\n\n%s\n", s.Heading, strings.TrimRight(s.Body, "\n"))
		if len(s.Citations) > 0 {
			var marks []string
			for _, id := range s.Citations {
				if n, ok := number[id]; ok {
					marks = append(marks, fmt.Sprintf("[%d]", n))
				}
			}
			fmt.Fprintf(&sb, "\nSources: %s\n", strings.Join(marks, " "))
		}
		sb.WriteString("\n")
	}

	if len(bib) > 0 {
		sb.WriteString("## References\n\n")
		for i, e := range bib {
			fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, e.ProvenanceURL, e.Provider)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteJSON renders the full report snapshot as indented JSON.
func WriteJSON(w io.Writer, snap *types.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// WriteYAML renders the full report snapshot as YAML.
func WriteYAML(w io.Writer, snap *types.Snapshot) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(snap)
}

// Export writes the snapshot to cfg.OutputDir in the configured format and
// returns the output path. The file name is derived from the run ID.
func Export(snap *types.Snapshot, cfg types.ReportConfig) (string, error) {
	ext := map[types.ReportFormat]string{
		types.ReportMarkdown: "md",
		types.ReportJSON:     "json",
		types.ReportYAML:     "yaml",
	}[cfg.Format]
	if ext == "" {
		return "", fmt.Errorf("unknown report format %q", cfg.Format)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(cfg.OutputDir, fmt.Sprintf("report-%s.%s", snap.RunID, ext))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	switch cfg.Format {
	case types.ReportMarkdown:
		err = WriteMarkdown(f, snap)
	case types.ReportJSON:
		err = WriteJSON(f, snap)
	case types.ReportYAML:
		err = WriteYAML(f, snap)
	}
	if err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
