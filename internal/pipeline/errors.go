// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"

	"github.com/pdiddy/research-assistant/internal/collect"
	"github.com/pdiddy/research-assistant/internal/discover"
	"github.com/pdiddy/research-assistant/internal/provider"
	"github.com/pdiddy/research-assistant/internal/reasoning"
	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/internal/state"
	"github.com/pdiddy/research-assistant/internal/synthesize"
	"github.com/pdiddy/research-assistant/internal/verify"
)

// Class is the orchestrator's failure taxonomy. It decides whether a stage
// error is retried, aborts the run, or reflects external cancellation.
type Class string

const (
	// ClassTransient failures may succeed on retry: network trouble, rate
	// limits, temporary backend outages.
	ClassTransient Class = "transient"

	// ClassInvalid failures are programming or configuration errors. Never
	// retried.
	ClassInvalid Class = "invalid"

	// ClassUnrecoverable failures mean the run cannot produce a report:
	// a stage ended with zero usable output.
	ClassUnrecoverable Class = "unrecoverable"

	// ClassCanceled marks external cancellation. The run stops where it is;
	// its last checkpoint remains resumable.
	ClassCanceled Class = "canceled"
)

// Classify maps a stage error onto the failure taxonomy. Unknown errors are
// treated as unrecoverable rather than retried blindly.
func Classify(err error) Class {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, discover.ErrNoTopics),
		errors.Is(err, collect.ErrNoEvidence),
		errors.Is(err, verify.ErrNoVerdicts),
		errors.Is(err, synthesize.ErrNoFindings),
		errors.Is(err, report.ErrNoSections):
		return ClassUnrecoverable
	case errors.Is(err, state.ErrInvalidMutation), errors.Is(err, state.ErrSealed):
		return ClassInvalid
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, reasoning.ErrUnavailable):
		return ClassTransient
	default:
		return ClassUnrecoverable
	}
}
