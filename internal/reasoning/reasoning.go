// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reasoning defines the text-generation capability the pipeline
// stages use for topic expansion, claim extraction, cross-source judgment,
// and synthesis, plus the Claude Messages backend. Stages depend only on
// the Engine interface; tests supply stubs.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrUnavailable marks a transient backend failure (network, timeout, rate
// limit). Callers may retry with backoff.
var ErrUnavailable = errors.New("reasoning backend unavailable")

// ErrRefused marks a permanent backend failure (invalid request, policy
// refusal). Callers must not retry.
var ErrRefused = errors.New("reasoning backend refused request")

// Engine submits a prompt and returns the completion text.
type Engine interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BackoffBase controls the base duration for exponential backoff between
// retries. Tests override this to avoid real sleeps.
var BackoffBase = time.Second

// CompleteWithRetry calls the engine, retrying up to retryLimit times on
// ErrUnavailable with exponential backoff. ErrRefused and other errors are
// returned immediately.
func CompleteWithRetry(ctx context.Context, engine Engine, prompt string, retryLimit int, backoffBase time.Duration) (string, error) {
	if backoffBase <= 0 {
		backoffBase = BackoffBase
	}

	var lastErr error
	for attempt := 0; attempt <= retryLimit; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := engine.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", retryLimit, lastErr)
}

// ExtractJSON returns the JSON payload of a completion. Models often wrap
// JSON in markdown code fences; this strips a ```json or ``` fence when
// present and otherwise returns the trimmed text.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		rest := trimmed[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+len("```"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	return trimmed
}
